package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"price-analyst/internal/analysis"
	"price-analyst/internal/config"
	"price-analyst/internal/models"
)

type recordingChannel struct {
	sent []Notification
	err  error
}

func (c *recordingChannel) Name() string    { return "recording" }
func (c *recordingChannel) IsEnabled() bool { return true }
func (c *recordingChannel) Send(_ context.Context, n Notification) error {
	c.sent = append(c.sent, n)
	return c.err
}

func TestMultiNotifier_LevelFilter(t *testing.T) {
	tests := []struct {
		level string
		typ   NotificationType
		want  bool
	}{
		{"all", NotificationError, true},
		{"signals_only", NotificationSignal, true},
		{"signals_only", NotificationNotLive, false},
		{"errors_only", NotificationNotLive, true},
		{"errors_only", NotificationSignal, false},
	}
	for _, tt := range tests {
		ch := &recordingChannel{}
		mn := NewMultiNotifier(config.NotificationConfig{Level: tt.level})
		mn.AddChannel(ch)
		if err := mn.Send(context.Background(), Notification{Type: tt.typ}); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		if got := len(ch.sent) == 1; got != tt.want {
			t.Errorf("level %s, type %s: delivered = %v, want %v", tt.level, tt.typ, got, tt.want)
		}
	}
}

func TestMultiNotifier_JoinsChannelErrors(t *testing.T) {
	failing := &recordingChannel{err: errors.New("boom")}
	ok := &recordingChannel{}
	mn := NewMultiNotifier(config.NotificationConfig{})
	mn.AddChannel(failing)
	mn.AddChannel(ok)

	err := mn.Send(context.Background(), Notification{Type: NotificationSignal})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("Send() error = %v, want channel failure", err)
	}
	if len(ok.sent) != 1 {
		t.Error("a failing channel stopped delivery to the next one")
	}
	if ok.sent[0].Timestamp.IsZero() {
		t.Error("timestamp not filled in")
	}
}

func TestNewMultiNotifier_Disabled(t *testing.T) {
	mn := NewMultiNotifier(config.NotificationConfig{
		Enabled: false,
		Webhook: config.WebhookConfig{Enabled: true, URL: "http://localhost"},
	})
	if mn.Enabled() {
		t.Error("Enabled() = true with notifications switched off")
	}
}

func TestWebhookNotifier(t *testing.T) {
	var got Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh := NewWebhookNotifier(config.WebhookConfig{Enabled: true, URL: srv.URL})
	n := Notification{Type: NotificationSignal, Title: "AAPL turned BULLISH", Timestamp: time.Now()}
	if err := wh.Send(context.Background(), n); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got.Title != n.Title || got.Type != NotificationSignal {
		t.Errorf("webhook received %+v", got)
	}
}

func TestTelegramNotifier(t *testing.T) {
	var path string
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["chat_id"] == "bad" {
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	tg := NewTelegramNotifier(config.TelegramConfig{Enabled: true, BotToken: "123:secret", ChatID: "42"})
	tg.baseURL = srv.URL
	if err := tg.Send(context.Background(), Notification{Title: "A<B", Message: "x & y"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if path != "/bot123:secret/sendMessage" {
		t.Errorf("path = %q", path)
	}
	if body["text"] != "<b>A&lt;B</b>\n\nx &amp; y" {
		t.Errorf("text = %q", body["text"])
	}

	tg.chatID = "bad"
	if err := tg.Send(context.Background(), Notification{}); err == nil {
		t.Error("Send() succeeded on a 400")
	}
}

func TestTelegramNotifier_RequestErrorHidesToken(t *testing.T) {
	tg := NewTelegramNotifier(config.TelegramConfig{Enabled: true, BotToken: "123:secret", ChatID: "42"})
	tg.baseURL = "http://127.0.0.1:1"
	err := tg.Send(context.Background(), Notification{})
	if err == nil || strings.Contains(err.Error(), "secret") {
		t.Errorf("Send() error = %v", err)
	}
}

func report(signal analysis.Signal, live bool) *analysis.Report {
	src := "twelvedata"
	if !live {
		src = "placeholder"
	}
	return &analysis.Report{
		Symbol:     "AAPL",
		Range:      models.Range1D,
		Signal:     signal,
		Confidence: 70,
		Pattern:    "Uptrend",
		Source:     src,
		Live:       live,
	}
}

func TestSignalTracker(t *testing.T) {
	tr := NewSignalTracker()

	if got := tr.Observe(report(analysis.SignalNeutral, true)); len(got) != 0 {
		t.Fatalf("first report emitted %+v", got)
	}
	if got := tr.Observe(report(analysis.SignalNeutral, true)); len(got) != 0 {
		t.Errorf("unchanged report emitted %+v", got)
	}

	got := tr.Observe(report(analysis.SignalBullish, true))
	if len(got) != 1 || got[0].Type != NotificationSignal || got[0].Data["from"] != analysis.SignalNeutral {
		t.Fatalf("flip emitted %+v", got)
	}

	got = tr.Observe(report(analysis.SignalBearish, false))
	if len(got) != 1 || got[0].Type != NotificationNotLive {
		t.Errorf("loss of live data emitted %+v", got)
	}

	// Still not live: nothing new to say.
	if got := tr.Observe(report(analysis.SignalBullish, false)); len(got) != 0 {
		t.Errorf("repeated non-live report emitted %+v", got)
	}
}

func TestSignalTracker_IgnoresInsufficientData(t *testing.T) {
	tr := NewSignalTracker()
	tr.Observe(report(analysis.SignalBullish, true))

	rep := report(analysis.SignalNeutral, true)
	rep.Pattern = analysis.PatternInsufficientData
	if got := tr.Observe(rep); len(got) != 0 {
		t.Errorf("insufficient report emitted %+v", got)
	}
}

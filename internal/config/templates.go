package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Price Analyst Configuration

[data]
# Provider order for intraday ranges (1d, 1w)
intraday_order = ["twelvedata", "polygon", "finnhub", "kite"]
# Provider order for daily and longer ranges
daily_order = ["twelvedata", "polygon", "finnhub", "alphavantage", "kite"]
# Try the unauthenticated chart scraper after every keyed provider
scraper = true
# Optional relays for the scraper. "{url}" is replaced with the escaped chart URL,
# otherwise the relay replaces the scheme and host.
yahoo_relays = []
# Deadline for a single provider attempt
attempt_timeout = "10s"
# Market time zone used for session boundaries (e.g. "America/New_York", "Asia/Kolkata")
timezone = "UTC"
# Range used when none is given: 1d, 1w, 1m, 3m, 6m, ytd, 1y, 5y, all
default_range = "3m"

# Requests per minute, overriding the built-in budgets
[data.rate_limits]

[cache]
enabled = true
intraday_ttl = "2m"
daily_ttl = "5m"
capacity = 50

[scan]
# Pause between symbols in a batch scan
delay = "1.5s"
# Benchmark symbol for relative strength (e.g. "SPY", "^NSEI")
benchmark = ""
# Drop results below this confidence
min_confidence = 0

[narrative]
# Ask an LLM for a pattern name and narrative
enabled = false
model = "gpt-4o-mini"
# OpenAI-compatible endpoint; empty for api.openai.com
base_url = ""
timeout = "20s"
max_tokens = 400
temperature = 0.3

[store]
# SQLite database, relative to this directory
path = "analyst.db"
# Keep the last good series per symbol and range as a fallback
archive = true
# Record every report
history = true

[watch]
# Standard five-field cron expression
schedule = "*/15 * * * *"
metrics_addr = ":9108"
symbols = []
range = "1d"

[notifications]
# Alerts sent by "analyst watch" when a signal flips or live data is lost
enabled = false
level = "all"  # all, signals_only, errors_only

[notifications.webhook]
enabled = false
url = ""

[notifications.telegram]
enabled = false
bot_token = ""  # or TELEGRAM_BOT_TOKEN
chat_id = ""

[logging]
level = "info"
console = true
file = true
path = ""
max_size = 50
max_backups = 5
max_age = 14
`

const credentialsTemplate = `# Price Analyst Credentials
# WARNING: Keep this file secure! Do not commit to version control.
# Environment variables and keys saved with "analyst creds set" take precedence.

[twelvedata]
api_key = ""

[polygon]
api_key = ""

[finnhub]
api_key = ""

[alphavantage]
api_key = ""

[kite]
api_key = ""
access_token = ""

[openai]
api_key = ""

[security]
# Seals keys saved with "analyst creds set"
master_key = ""
`

func createTemplate(configDir, name, content string, perm os.FileMode) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name)
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		return fmt.Errorf("writing %s template: %w", name, err)
	}
	return nil
}

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"price-analyst/internal/marketdata"
	"price-analyst/internal/security"
)

func addCredentialCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newCredsCmd(app))
}

// credentialNames are the names accepted by `creds`: every provider that
// takes a key, plus openai.
func credentialNames() []string {
	var names []string
	for _, id := range marketdata.AllProviders() {
		if id != marketdata.Yahoo {
			names = append(names, string(id))
		}
	}
	return append(names, "openai")
}

func parseCredentialName(name string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, known := range credentialNames() {
		if n == known {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q: use one of %s", name, strings.Join(credentialNames(), ", "))
}

func newCredsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "creds",
		Short: "Manage stored API keys",
		Long: `Store provider API keys in the local database. Stored keys take precedence
over credentials.toml and the environment. When security.master_key is set
they are sealed at rest.

Kite expects "api_key:access_token".`,
	}

	setCmd := &cobra.Command{
		Use:   "set <provider> [key]",
		Short: "Save an API key",
		Example: `  analyst creds set polygon pk_xxxxxxxx
  echo "$FINNHUB_KEY" | analyst creds set finnhub`,
		Args: cobra.RangeArgs(1, 2),
		RunE: withApp(app, func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return errors.New("store unavailable: check store.path in config")
			}
			name, err := parseCredentialName(args[0])
			if err != nil {
				return err
			}

			value := ""
			if len(args) == 2 {
				value = args[1]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading key from stdin: %w", err)
				}
				value = line
			}
			value = strings.TrimSpace(value)

			if name == string(marketdata.Kite) && !strings.Contains(value, ":") {
				return errors.New(`kite credential must be "api_key:access_token"`)
			}
			if err := app.Store.SetCredential(cmd.Context(), name, value); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{"provider": name, "key": security.MaskCredential(value)})
			}
			output.Success("✓ Saved %s key %s", name, security.MaskCredential(value))
			if app.Config.Credentials.Security.MasterKey == "" {
				output.Dim("  Stored unsealed. Set security.master_key to seal keys at rest.")
			}
			return nil
		}),
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List configured keys",
		RunE: withApp(app, func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			type entry struct {
				Provider string `json:"provider"`
				Key      string `json:"key"`
				Source   string `json:"source"`
			}
			entries := make(map[string]entry)
			for id, v := range app.Config.ProviderCredentials() {
				entries[string(id)] = entry{Provider: string(id), Key: security.MaskCredential(v), Source: "config"}
			}
			if k := app.Config.Credentials.OpenAI.APIKey; k != "" {
				entries["openai"] = entry{Provider: "openai", Key: security.MaskCredential(k), Source: "config"}
			}

			var readErr error
			if app.Store != nil {
				stored, err := app.Store.Credentials(cmd.Context())
				readErr = err
				for name, v := range stored {
					entries[name] = entry{Provider: name, Key: security.MaskCredential(v), Source: "store"}
				}
			}

			names := make([]string, 0, len(entries))
			for name := range entries {
				names = append(names, name)
			}
			sort.Strings(names)

			if output.IsJSON() {
				list := make([]entry, 0, len(names))
				for _, n := range names {
					list = append(list, entries[n])
				}
				return output.JSON(list)
			}

			table := NewTable(output, "PROVIDER", "KEY", "SOURCE")
			for _, n := range names {
				e := entries[n]
				table.AddRow(e.Provider, e.Key, e.Source)
			}
			table.Render()
			if len(names) == 0 {
				output.Dim("No keys configured. Only the chart scraper will be used.")
			}
			if readErr != nil {
				output.Warning("Some stored keys could not be read: %v", security.RedactError(readErr))
			}
			return nil
		}),
	}

	deleteCmd := &cobra.Command{
		Use:     "delete <provider>",
		Aliases: []string{"rm"},
		Short:   "Delete a stored key",
		Args:    cobra.ExactArgs(1),
		RunE: withApp(app, func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return errors.New("store unavailable: check store.path in config")
			}
			name, err := parseCredentialName(args[0])
			if err != nil {
				return err
			}
			if err := app.Store.DeleteCredential(cmd.Context(), name); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"deleted": name})
			}
			output.Success("✓ Deleted stored %s key", name)
			return nil
		}),
	}

	cmd.AddCommand(setCmd, listCmd, deleteCmd)
	return cmd
}

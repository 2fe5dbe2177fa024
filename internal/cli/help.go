package cli

import (
	"github.com/spf13/cobra"
)

// addHelpCommands adds documentation commands.
func addHelpCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newExamplesCmd())
}

type workflow struct {
	title    string
	commands []string
}

var workflows = []workflow{
	{
		title: "First Run",
		commands: []string{
			"analyst config path              # Where config.toml and credentials.toml live",
			"analyst creds set twelvedata KEY # Save a provider key",
			"analyst creds list               # See which providers are usable",
			"analyst config validate",
		},
	},
	{
		title: "Single Symbol",
		commands: []string{
			"analyst analyze AAPL             # Report over the default range",
			"analyst analyze AAPL -r 1d       # Intraday report",
			"analyst analyze AAPL --ai        # Model-written narrative",
			"analyst fetch AAPL -r 1w --limit 0",
		},
	},
	{
		title: "Indian Markets",
		commands: []string{
			"analyst creds set kite API_KEY:ACCESS_TOKEN",
			"analyst analyze NSE:INFY -r 1y",
			"analyst scan RELIANCE.NS TCS.NS INFY.NS --benchmark ^NSEI",
		},
	},
	{
		title: "Watchlists",
		commands: []string{
			"analyst scan AAPL MSFT NVDA AMD --min-confidence 60",
			"analyst mtf NVDA                 # Agreement across 1d, 1w, 3m and 1y",
			"analyst watch AAPL MSFT --schedule \"*/10 9-16 * * 1-5\"",
			"analyst history AAPL             # Recorded reports",
		},
	},
	{
		title: "Scripting",
		commands: []string{
			"analyst analyze AAPL --json | jq '.report.signal'",
			"analyst scan AAPL MSFT --json | jq '.[] | {symbol, c: .report.confidence}'",
		},
	},
}

func newExamplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "Show common workflow examples",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if output.IsJSON() {
				out := make(map[string][]string, len(workflows))
				for _, w := range workflows {
					out[w.title] = w.commands
				}
				return output.JSON(out)
			}

			output.Bold("Common Workflow Examples")
			output.Println()
			for _, w := range workflows {
				output.Info("%s", w.title)
				for _, c := range w.commands {
					output.Printf("  %s\n", c)
				}
				output.Println()
			}
			return nil
		},
	}
}

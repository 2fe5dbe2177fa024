// Command analyst fetches market price series and prints technical reports.
package main

import (
	"fmt"
	"os"

	_ "time/tzdata"

	"price-analyst/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ctfdump is a small command-line front end over the yactfr decoding
// engine: it opens a trace, compiles its (programmatically-built)
// trace type, and prints the resulting element sequence or its
// compiled procedure tree (§11).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	cliName        = "ctfdump"
	cliDescription = "inspect and dump Common Trace Format element sequences"
)

var rootCmd = &cobra.Command{
	Use:   cliName,
	Short: cliDescription,
}

func init() {
	rootCmd.PersistentFlags().String("trace", "", "path to the trace directory")
	rootCmd.PersistentFlags().String("format", "", "output format: text or json")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("metrics-addr", "", "address to serve Prometheus metrics on, if set")

	rootCmd.AddCommand(newDumpCommand())
	rootCmd.AddCommand(newProcsCommand())
	rootCmd.AddCommand(newVersionCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ctfdump: %s\n", err)
		os.Exit(1)
	}
}

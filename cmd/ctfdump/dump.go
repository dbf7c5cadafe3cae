package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kienanstewart/yactfr"
	"github.com/kienanstewart/yactfr/datasource"
	"github.com/kienanstewart/yactfr/internal/config"
	"github.com/kienanstewart/yactfr/internal/logging"
	"github.com/kienanstewart/yactfr/internal/metrics"
)

func newDumpCommand() *cobra.Command {
	var profile string
	var stream string

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "decode and print a trace's element sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}

			logger, err := loggerForLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			sink := metrics.NewSink()
			maybeServeMetrics(cfg.MetricsAddr, sink, logger)

			tt, err := lookupProfile(profile)
			if err != nil {
				return err
			}

			if stream == "" {
				return fmt.Errorf("--stream is required")
			}
			factory := datasource.NewFileFactory(stream)

			trace, err := yactfr.NewTrace(tt, factory, yactfr.WithLogger(logger), yactfr.WithStatsSink(sink))
			if err != nil {
				return err
			}

			it, err := trace.Begin()
			if err != nil {
				return err
			}
			defer it.Close()

			for e := it.Element(); e != nil; e = it.Element() {
				printElement(os.Stdout, e)
				if err := it.Next(); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&profile, "profile", "demo", "named trace-type profile to decode against")
	cmd.Flags().StringVar(&stream, "stream", "", "path to the raw packet stream file")
	return cmd
}

func printElement(w io.Writer, e *yactfr.Element) {
	switch {
	case e.Member != nil:
		fmt.Fprintf(w, "%-28s %s\n", e.Kind, e.Member.Name)
	default:
		fmt.Fprintf(w, "%-28s\n", e.Kind)
	}
}

func loggerForLevel(level string) (logging.Logger, error) {
	switch level {
	case "debug":
		return logging.NewDevelopment()
	default:
		return logging.NewProduction()
	}
}

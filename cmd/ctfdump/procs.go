package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kienanstewart/yactfr/internal/proc"
)

// debugProcEnv is the environment variable that gates printing the
// compiled procedure tree directly, independent of the procs subcommand,
// matching the core's own debug-toggle contract (§6).
const debugProcEnv = "YACTFR_DEBUG_PROC"

func newProcsCommand() *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "procs",
		Short: "print the compiled procedure tree for a trace-type profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			tt, err := lookupProfile(profile)
			if err != nil {
				return err
			}
			pp, err := proc.Build(tt)
			if err != nil {
				return err
			}
			if os.Getenv(debugProcEnv) == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "set YACTFR_DEBUG_PROC=1 to print the full instruction tree")
			}
			printPacketProc(cmd.OutOrStdout(), pp)
			return nil
		},
	}

	cmd.Flags().StringVar(&profile, "profile", "demo", "named trace-type profile to compile")
	return cmd
}

func printPacketProc(w io.Writer, pp *proc.PacketProc) {
	fmt.Fprintf(w, "packet header preamble: %d instructions\n", len(pp.Preamble.Instrs))
	if os.Getenv(debugProcEnv) != "" {
		printInstrs(w, pp.Preamble, 1)
	}
}

func printInstrs(w io.Writer, p *proc.Proc, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	for _, instr := range p.Instrs {
		fmt.Fprintf(w, "%s%s\n", indent, instr.Kind)
		if instr.Sub != nil {
			printInstrs(w, instr.Sub, depth+1)
		}
	}
}

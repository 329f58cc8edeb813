package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/chazu/trellis/pkg/world"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var cmdSnapshot = &cobra.Command{
	Use:   "snapshot FILE",
	Short: "summarize a snapshot",
	Long:  "decodes a snapshot written by grow --out and prints part counts per template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		s, err := world.DecodeSnapshot(b)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		placed := lo.CountBy(s.Parts, func(p world.PartState) bool { return p.Frozen })
		active := lo.Count(s.RuleActive, true)
		fmt.Fprintf(out, "%d parts (%d placed), %d/%d rules active, scanning %t\n",
			len(s.Parts), placed, active, len(s.RuleActive), s.Scanning)

		counts := lo.CountValuesBy(s.Parts, func(p world.PartState) string { return p.Template })
		names := lo.Keys(counts)
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(out, "  %-20s %d\n", n, counts[n])
		}
		return nil
	},
}

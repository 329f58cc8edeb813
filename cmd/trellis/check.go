package main

import (
	"errors"
	"fmt"

	"github.com/chazu/trellis/pkg/catalog"
	"github.com/chazu/trellis/pkg/catalog/dsl"
	"github.com/spf13/cobra"
)

var checkCatalog string

var cmdCheck = &cobra.Command{
	Use:   "check",
	Short: "validate a catalog",
	Long:  "evaluates a catalog file and prints every evaluation error and validation finding",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadCatalog(cmd, checkCatalog)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		findings := c.Validate()
		for _, f := range findings {
			fmt.Fprintln(out, f.Error())
		}
		if n := len(catalog.Errors(findings)); n > 0 {
			return fmt.Errorf("%s: %d validation errors", checkCatalog, n)
		}
		fmt.Fprintf(out, "%s: %d templates, %d connections, %d rules\n",
			checkCatalog, len(c.Templates), c.ConnectionCount(), len(c.Rules))
		return nil
	},
}

func init() {
	cmdCheck.Flags().StringVar(&checkCatalog, "catalog", "", "catalog file")
	_ = cmdCheck.MarkFlagRequired("catalog")
}

var errEval = errors.New("catalog did not evaluate")

// loadCatalog evaluates path, printing evaluation errors to stderr.
func loadCatalog(cmd *cobra.Command, path string) (*catalog.Catalog, error) {
	c, evalErrs, err := dsl.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", path, e)
		}
		return nil, fmt.Errorf("%s: %w", path, errEval)
	}
	return c, nil
}

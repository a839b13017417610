package cli

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"cmt-backend/internal/schema"
	"cmt-backend/internal/storage"
)

func newCheckTemplateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-template FILE",
		Short: "Validate a template definition (YAML or JSON) before uploading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			var t storage.Template
			if err := yaml.Unmarshal(raw, &t); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			errs := schema.ValidateTemplate(t)
			out := cmd.OutOrStdout()
			if len(errs) == 0 {
				fmt.Fprintf(out, "%s: ok (%d columns, %d KPIs)\n", t.Code, len(t.Schema.Columns), len(t.Rules.KPIs))
				return nil
			}

			tw := newTable(out)
			tw.AppendHeader(table.Row{"Path", "Problem"})
			for _, e := range errs {
				tw.AppendRow(table.Row{e.Path, e.Message})
			}
			tw.Render()

			return fmt.Errorf("template %q has %d problem(s)", t.Code, len(errs))
		},
	}
}

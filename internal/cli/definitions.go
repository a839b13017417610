package cli

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newDefinitionsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "definitions",
		Short: "List the available test definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := opts.catalog()
			if err != nil {
				return err
			}

			tw := newTable(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Code", "Name", "Standard", "Category", "Steps", "Rows"})
			for _, def := range catalog.List() {
				processor := "-"
				if def.Rows != nil {
					processor = def.Rows.Processor
					if processor == "" {
						processor = "plain"
					}
				}
				tw.AppendRow(table.Row{def.Code, def.Name, def.Standard, def.Category, len(def.Steps), processor})
			}
			tw.Render()
			return nil
		},
	}
}

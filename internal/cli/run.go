package cli

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"cmt-backend/internal/service"
	"cmt-backend/internal/testdef"
)

func newRunCmd(opts *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run CODE DATA_FILE",
		Short: "Run a test definition on a YAML or JSON data file",
		Long: `Run the calculation pipeline of a test definition without touching the
database. DATA_FILE holds "values", optional "rows" and "retest_confirmed",
the same shape a report stores.`,
		Example: `  labctl run field_density samples/fdt-1.yaml
  labctl run sieve_analysis sieve.json --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := opts.catalog()
			if err != nil {
				return err
			}
			if _, ok := catalog.Get(args[0]); !ok {
				return fmt.Errorf("unknown test definition %q", args[0])
			}

			data, err := readData(args[1])
			if err != nil {
				return err
			}

			res, err := service.NewDefinitionService(opts.logger(), catalog).Run(args[0], data)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printSummary(cmd, res)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}

// readData decodes a data file. YAML is a superset of JSON; the document is
// round-tripped through JSON so numbers reach the pipeline as float64.
func readData(path string) (testdef.Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return testdef.Data{}, err
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return testdef.Data{}, fmt.Errorf("parse %s: %w", path, err)
	}
	buf, err := json.Marshal(doc)
	if err != nil {
		return testdef.Data{}, fmt.Errorf("parse %s: %w", path, err)
	}

	var data testdef.Data
	if err := json.Unmarshal(buf, &data); err != nil {
		return testdef.Data{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return data, nil
}

func printSummary(cmd *cobra.Command, res service.RunResult) {
	out := cmd.OutOrStdout()
	sum := res.Summary

	fmt.Fprintf(out, "%s (%s)\n", sum.Name, sum.Code)
	if !res.Progress.Done {
		fmt.Fprintf(out, "open step: %s (%d of %d)\n", res.Progress.Step, res.Progress.Index+1, res.Progress.Steps)
	}

	tw := newTable(out)
	tw.AppendHeader(table.Row{"Output", "Value"})
	for _, name := range slices.Sorted(maps.Keys(sum.Values)) {
		tw.AppendRow(table.Row{name, strconv.FormatFloat(sum.Values[name], 'f', -1, 64)})
	}
	tw.Render()

	if len(sum.Errors) > 0 {
		et := newTable(out)
		et.AppendHeader(table.Row{"Step", "Row", "Field", "Reason", "Message"})
		for _, e := range sum.Errors {
			row := ""
			if e.Row != nil {
				row = strconv.Itoa(*e.Row + 1)
			}
			et.AppendRow(table.Row{e.Step, row, e.Field, e.Reason, e.Message})
		}
		et.Render()
	}

	for _, s := range sum.Skipped {
		fmt.Fprintf(out, "skipped %s: %s\n", s.Output, s.Reason)
	}
	for _, w := range sum.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	if sum.Classification != "" {
		fmt.Fprintf(out, "classification: %s\n", sum.Classification)
	}

	status := string(sum.Compliance.Status)
	if sum.Compliance.Reason != "" {
		status += " (" + sum.Compliance.Reason + ")"
	}
	fmt.Fprintf(out, "status: %s\n", status)
}

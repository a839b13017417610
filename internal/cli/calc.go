package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cmt-backend/internal/calc"
)

func newCalcCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "calc FORMULA [NAME=VALUE...]",
		Short: "Evaluate a formula",
		Example: `  labctl calc "(wet - dry) / dry * 100" wet=125 dry=100
  labctl calc "avg(r1, r2, r3)" r1=10 r2=12 r3=11`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}

			v, skip := calc.New(opts.logger()).Evaluate(args[0], values)
			if skip != nil {
				if skip.Detail != "" {
					return fmt.Errorf("skipped: %s (%s)", skip.Reason, skip.Detail)
				}
				return fmt.Errorf("skipped: %s", skip.Reason)
			}

			fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(v, 'f', -1, 64))
			return nil
		},
	}
}

func parseAssignments(args []string) (calc.Values, error) {
	values := calc.Values{}
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("expected NAME=VALUE, got %q", arg)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a number", name, raw)
		}
		values[name] = f
	}
	return values, nil
}

package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rl1809/incoming-qc/internal/core/domain"
)

func newTiersCommand() *cobra.Command {
	var feature string

	cmd := &cobra.Command{
		Use:   "tiers [TIER]",
		Short: "List subscription tiers with their quotas and features",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tiers := domain.Tiers
			if len(args) == 1 {
				t, err := domain.ParseTier(args[0])
				if err != nil {
					return err
				}
				tiers = []domain.Tier{t}
			}

			headers := []string{"Tier", "Part Types", "Inspections/Month", "Users", "Features"}
			aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft}
			if feature != "" {
				headers = append(headers, "Permits "+feature)
				aligns = append(aligns, alignLeft)
			}

			rows := make([][]string, 0, len(tiers))
			for _, t := range tiers {
				limits, err := domain.LimitsFor(t)
				if err != nil {
					return err
				}
				row := []string{
					string(t),
					quota(limits.MaxPartTypes),
					quota(limits.MaxInspectionsPerMonth),
					quota(limits.MaxUsers),
					featureList(limits.Features),
				}
				if feature != "" {
					ok, err := domain.Permits(t, domain.Feature(feature))
					if err != nil {
						return err
					}
					row = append(row, strconv.FormatBool(ok))
				}
				rows = append(rows, row)
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().StringVar(&feature, "feature", "", "Add a column showing whether each tier permits this feature")
	return cmd
}

func quota(n int) string {
	if n == domain.Unlimited {
		return "unlimited"
	}
	return strconv.Itoa(n)
}

func featureList(features map[domain.Feature]bool) string {
	names := make([]string, 0, len(features))
	for f, ok := range features {
		if ok {
			names = append(names, string(f))
		}
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

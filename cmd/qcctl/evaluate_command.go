package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rl1809/incoming-qc/internal/core/domain"
)

func newEvaluateCommand() *cobra.Command {
	var nominal, upper, lower string

	cmd := &cobra.Command{
		Use:     "evaluate VALUE...",
		Short:   "Judge measured values against a tolerance band",
		Example: `  qcctl evaluate --nominal 10.5 --upper 0.05 --lower 0.05 10.54 10.56`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := domain.CharacteristicSpec{Name: "cli", Kind: domain.KindMeasurement}

			var err error
			if spec.Nominal, err = decimal.NewFromString(nominal); err != nil {
				return fmt.Errorf("--nominal: %q is not a number", nominal)
			}
			if spec.UpperTolerance, err = optionalDecimal("--upper", upper); err != nil {
				return err
			}
			if spec.LowerTolerance, err = optionalDecimal("--lower", lower); err != nil {
				return err
			}
			if err := spec.ValidateLimits(); err != nil {
				return err
			}

			lo, hi := spec.Limits()
			rows := make([][]string, 0, len(args))
			for _, v := range args {
				rows = append(rows, []string{v, lo.String(), hi.String(), string(spec.Evaluate(v))})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Value", "Lower", "Upper", "Result"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&nominal, "nominal", "0", "Nominal value")
	cmd.Flags().StringVar(&upper, "upper", "", "Upper tolerance (magnitude)")
	cmd.Flags().StringVar(&lower, "lower", "", "Lower tolerance (magnitude, sign ignored)")
	return cmd
}

func optionalDecimal(flag, v string) (decimal.NullDecimal, error) {
	if v == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%s: %q is not a number", flag, v)
	}
	return decimal.NewNullDecimal(d), nil
}

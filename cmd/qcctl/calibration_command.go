package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rl1809/incoming-qc/internal/core/domain"
)

func newCalibrationCommand() *cobra.Command {
	var calibrated, next, today string
	var interval int

	cmd := &cobra.Command{
		Use:     "calibration",
		Short:   "Show the due date and status of a gage calibration",
		Example: `  qcctl calibration --calibrated 2026-01-01 --interval 90 --today 2026-03-25`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var g domain.Gage
			var err error
			if g.CalibrationDate, err = dateFlag("--calibrated", calibrated); err != nil {
				return err
			}
			if g.NextCalibrationDate, err = dateFlag("--next", next); err != nil {
				return err
			}
			if cmd.Flags().Changed("interval") {
				if interval < 0 {
					return fmt.Errorf("--interval cannot be negative")
				}
				g.CalibrationIntervalDays = &interval
			}

			on := domain.CalendarDate(time.Now())
			if today != "" {
				d, err := dateFlag("--today", today)
				if err != nil {
					return err
				}
				on = *d
			}

			row := []string{orDash(g.CalibrationDate), "-", "-", string(domain.CalibrationUnknown)}
			if due, ok := g.DueDate(); ok {
				row[1] = due.Format(time.DateOnly)
				row[2] = strconv.Itoa(domain.DaysBetween(on, due))
				row[3] = string(domain.Classify(due, on))
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Calibrated", "Due", "Days Until Due", "Status"},
				[][]string{row},
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&calibrated, "calibrated", "", "Last calibration date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&interval, "interval", 0, "Calibration interval in days")
	cmd.Flags().StringVar(&next, "next", "", "Explicit next calibration date (YYYY-MM-DD), overrides --interval")
	cmd.Flags().StringVar(&today, "today", "", "Evaluate as of this date instead of today")
	return cmd
}

func dateFlag(flag, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, fmt.Errorf("%s: expected YYYY-MM-DD, got %q", flag, v)
	}
	return &t, nil
}

func orDash(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}

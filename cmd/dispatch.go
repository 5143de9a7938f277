package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/banjirlab/floodmap/internal/classify"
)

var dispatchAll bool

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Classify pending measurements via the fuzzy-inference service",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("dispatch"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := newStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		d := newDispatcher(st, cfg)

		var report *classify.Report
		if dispatchAll {
			report, err = d.ReclassifyAll(ctx)
		} else {
			report, err = d.Run(ctx)
		}
		if err != nil {
			return err
		}

		fmt.Printf("run %s: %d selected, %d processed, %d failed\n",
			report.RunID, report.Selected, report.Processed, report.Failed)
		for _, f := range report.Failures {
			zap.L().Warn("measurement not classified",
				zap.Int64("measurement_id", f.MeasurementID),
				zap.String("region", f.Region),
				zap.String("error", f.Error),
			)
		}
		return nil
	},
}

func init() {
	dispatchCmd.Flags().BoolVar(&dispatchAll, "all", false, "re-classify every measurement, including processed ones")
	rootCmd.AddCommand(dispatchCmd)
}

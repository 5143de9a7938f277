package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banjirlab/floodmap/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show measurement and classification progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("status"); err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := newStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		pending, err := st.ListUnprocessed(ctx)
		if err != nil {
			return err
		}
		_, total, err := st.ListMeasurements(ctx, store.MeasurementFilter{Limit: 1})
		if err != nil {
			return err
		}
		years, err := st.ListYears(ctx)
		if err != nil {
			return err
		}
		stations, err := st.ListStations(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("measurements: %d total, %d pending classification\n", total, len(pending))
		fmt.Printf("years:        %v\n", years)
		fmt.Printf("stations:     %d\n", len(stations))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/banjirlab/floodmap/internal/importer"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import measurements from a CSV or XLSX file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("import"); err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := newStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		im := importer.New(st)
		path := args[0]

		var summary *importer.Summary
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv":
			summary, err = im.ImportCSV(ctx, path)
		case ".xlsx":
			summary, err = im.ImportXLSX(ctx, path)
		default:
			return eris.Errorf("unsupported file type %q (want .csv or .xlsx)", filepath.Ext(path))
		}
		if err != nil {
			return err
		}

		fmt.Printf("imported %d rows (%d skipped, %d upserted)\n",
			summary.Rows, summary.Skipped, summary.Upserted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}

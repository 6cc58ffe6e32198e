package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sellhub-kr/listing-cli/internal/model"
)

var (
	historySheet   string
	historyProduct string
	historyStatus  string
	historyLimit   int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the usage journal for a sheet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("history"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()

		records, err := st.ListUsage(ctx, model.UsageFilter{
			SheetName:   historySheet,
			ProductCode: historyProduct,
			Status:      model.UploadStatus(historyStatus),
			Limit:       historyLimit,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	},
}

func init() {
	historyCmd.Flags().StringVar(&historySheet, "sheet", "", "sheet name (required)")
	historyCmd.Flags().StringVar(&historyProduct, "product", "", "filter by product code")
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "filter by upload status (SUCCESS or FAILED)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "cap the record count (0 = all)")
	_ = historyCmd.MarkFlagRequired("sheet")
	rootCmd.AddCommand(historyCmd)
}

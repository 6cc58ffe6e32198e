package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sellhub-kr/listing-cli/internal/fetcher"
)

var (
	importXLSXPath string
	importSheet    string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a product catalog from an XLSX export",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("import"); err != nil {
			return err
		}

		sheet := importSheet
		if sheet == "" {
			sheet = cfg.Import.SheetName
		}

		products, skipped, err := fetcher.ReadProducts(importXLSXPath, fetcher.XLSXOptions{SheetName: sheet})
		if err != nil {
			return eris.Wrap(err, "read catalog")
		}
		if len(products) == 0 {
			zap.L().Warn("no products found", zap.String("file", importXLSXPath))
			return nil
		}

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()

		n, err := st.UpsertProducts(ctx, products)
		if err != nil {
			return eris.Wrap(err, "upsert products")
		}

		zap.L().Info("import complete",
			zap.Int("imported", n),
			zap.Int("skipped", skipped),
			zap.String("file", importXLSXPath),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importXLSXPath, "xlsx", "", "path to XLSX catalog (required)")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "workbook sheet name (default first sheet)")
	_ = importCmd.MarkFlagRequired("xlsx")
	rootCmd.AddCommand(importCmd)
}

package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sellhub-kr/listing-cli/internal/export"
	"github.com/sellhub-kr/listing-cli/internal/model"
	"github.com/sellhub-kr/listing-cli/internal/roster"
	"github.com/sellhub-kr/listing-cli/pkg/market"
)

var (
	allocateSheet    string
	allocateRoster   string
	allocateCategory string
	allocateLimit    int
)

var allocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "Assign product combinations to the rostered storefronts",
	Long:  "Loads the store roster and the imported catalog, then runs one allocation per sheet: each storefront gets the next unused (product, image, name) combination, and every outcome is journaled.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("allocate"); err != nil {
			return err
		}

		rosterPath := allocateRoster
		if rosterPath == "" {
			rosterPath = cfg.Export.RosterPath
		}
		r, err := roster.Load(rosterPath)
		if err != nil {
			return err
		}

		sheets := r.Sheets
		if allocateSheet != "" {
			sheet, ok := r.Sheet(allocateSheet)
			if !ok {
				return eris.Errorf("sheet %q not in roster %s", allocateSheet, rosterPath)
			}
			sheets = []roster.Sheet{sheet}
		}

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()

		products, err := st.ListProducts(ctx, model.ProductFilter{
			Category: allocateCategory,
			Status:   model.ProductStatusActive,
			Limit:    allocateLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list products")
		}
		if len(products) == 0 {
			zap.L().Warn("no products to allocate; run import first")
			return nil
		}

		uploader := market.NewDryRun(market.WithRateLimit(cfg.Market.RatePerSecond))

		reqs := make([]export.Request, 0, len(sheets))
		for _, sheet := range sheets {
			reqs = append(reqs, export.Request{
				SheetName:      sheet.Name,
				BusinessNumber: sheet.BusinessNumber,
				Slots:          sheet.Stores,
				Products:       products,
				FlushRetries:   cfg.Export.FlushRetries,
				FlushBackoff:   time.Duration(cfg.Export.FlushBackoffMillis) * time.Millisecond,
			})
		}

		runner := export.NewRunner(st, uploader)
		reports, err := runner.RunAll(ctx, reqs, cfg.Export.MaxConcurrentSheets)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return eris.Wrap(err, "encode reports")
		}

		for _, rep := range reports {
			if rep.Error != "" {
				return eris.Errorf("sheet %s failed: %s", rep.SheetName, rep.Error)
			}
		}
		return nil
	},
}

func init() {
	allocateCmd.Flags().StringVar(&allocateSheet, "sheet", "", "run a single sheet from the roster (default all)")
	allocateCmd.Flags().StringVar(&allocateRoster, "roster", "", "path to roster YAML (default from config)")
	allocateCmd.Flags().StringVar(&allocateCategory, "category", "", "restrict candidates to a category prefix")
	allocateCmd.Flags().IntVar(&allocateLimit, "limit", 0, "cap the candidate product count (0 = all)")
	rootCmd.AddCommand(allocateCmd)
}

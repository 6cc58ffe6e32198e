// Package fetcher ingests product catalogs from the Excel exports the
// naming pipeline produces.
package fetcher

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sellhub-kr/listing-cli/internal/model"
)

// Column headers recognized in catalog exports. The generator tools
// write Korean headers; English aliases cover hand-built sheets.
var headerAliases = map[string]string{
	"상품코드":   "product_code",
	"상품명":    "names",
	"결과상품명":  "names",
	"믹스url":  "mix_url",
	"누끼url":  "nukki_url",
	"카테고리명":  "category",
	"product_code": "product_code",
	"names":        "names",
	"mix_url":      "mix_url",
	"nukki_url":    "nukki_url",
	"category":     "category",
}

// XLSXOptions configures the catalog parser.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ReadProducts reads an XLSX catalog export into products. The first
// row is the header; name variants are newline-separated within one
// cell, ordered best first. Rows with no product code are skipped with
// a warning and counted.
func ReadProducts(path string, opts XLSXOptions) ([]model.Product, int, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, 0, eris.Wrap(err, "fetcher: open xlsx")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, 0, err
	}
	if len(sheet.Rows) == 0 {
		return nil, 0, nil
	}

	cols, err := mapHeader(rowToStrings(sheet.Rows[0]))
	if err != nil {
		return nil, 0, err
	}

	sourceFile := filepath.Base(path)
	now := time.Now().UTC()

	var products []model.Product
	skipped := 0
	for _, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		p := model.Product{
			ProductCode:  cell(cells, col(cols, "product_code")),
			NameVariants: splitNames(cell(cells, col(cols, "names"))),
			MixURL:       cell(cells, col(cols, "mix_url")),
			NukkiURL:     cell(cells, col(cols, "nukki_url")),
			Category:     cell(cells, col(cols, "category")),
			Status:       model.ProductStatusActive,
			SourceFile:   sourceFile,
			ImportedAt:   now,
		}
		if p.ProductCode == "" {
			if len(p.NameVariants) > 0 || p.MixURL != "" || p.NukkiURL != "" {
				skipped++
				zap.L().Warn("fetcher: row without product code skipped",
					zap.String("file", sourceFile),
				)
			}
			continue
		}
		products = append(products, p)
	}
	return products, skipped, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("fetcher: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("fetcher: sheet index %d out of range (%d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

// mapHeader resolves header cells to column positions.
func mapHeader(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(headerAliases))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if canonical, ok := headerAliases[key]; ok {
			if _, dup := cols[canonical]; !dup {
				cols[canonical] = i
			}
		}
	}
	if _, ok := cols["product_code"]; !ok {
		return nil, eris.New("fetcher: header has no product code column")
	}
	if _, ok := cols["names"]; !ok {
		return nil, eris.New("fetcher: header has no product name column")
	}
	return cols, nil
}

func rowToStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		out[i] = c.String()
	}
	return out
}

// col returns the position of a mapped column, -1 when absent.
func col(cols map[string]int, key string) int {
	if idx, ok := cols[key]; ok {
		return idx
	}
	return -1
}

func cell(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}

// splitNames breaks a multi-line name cell into ordered variants.
func splitNames(raw string) []string {
	if raw == "" {
		return nil
	}
	var names []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names
}

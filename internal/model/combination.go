package model

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CombinationKind selects which image column a combination uses.
type CombinationKind string

const (
	KindMix   CombinationKind = "MIX"   // composited scene image
	KindNukki CombinationKind = "NUKKI" // background-removed cutout
)

// Combination is one (product code, image URL, name variant) candidate
// for a listing. Kind orders the catalog and picks the URL column to
// record; it is deliberately absent from the dedup key.
type Combination struct {
	ProductCode string          `json:"product_code"`
	Kind        CombinationKind `json:"kind"`
	URL         string          `json:"url"`
	NameIndex   int             `json:"name_index"`
	NameText    string          `json:"name_text"`
}

// CombinationKey is the identity used to prevent combination reuse
// within a sheet: (product_code, url, name_text). Comparable, so it
// can serve directly as a map key.
type CombinationKey struct {
	ProductCode string
	URL         string
	NameText    string
}

// Key returns the dedup key for the combination. Name text is
// NFC-normalized and trimmed so that visually identical Korean names
// produced by different tools collapse to one key.
func (c Combination) Key() CombinationKey {
	return NewCombinationKey(c.ProductCode, c.URL, c.NameText)
}

// NewCombinationKey builds a normalized dedup key.
func NewCombinationKey(productCode, url, nameText string) CombinationKey {
	return CombinationKey{
		ProductCode: strings.TrimSpace(productCode),
		URL:         strings.TrimSpace(url),
		NameText:    norm.NFC.String(strings.TrimSpace(nameText)),
	}
}

// String renders the key for logging and for the persisted uniqueness
// column. The unit separator keeps field boundaries unambiguous.
func (k CombinationKey) String() string {
	return k.ProductCode + "\x1f" + k.URL + "\x1f" + k.NameText
}

// Strategy is the typed record of how a combination was chosen. It is
// opaque to the allocator and serialized to JSON only at the
// persistence boundary.
type Strategy struct {
	ProductCode string          `json:"product_code"`
	Kind        CombinationKind `json:"kind"`
	NameIndex   int             `json:"name_index"`
	StrategyID  string          `json:"strategy_id"`
}

// NewStrategy derives the strategy for a chosen combination.
func NewStrategy(c Combination) Strategy {
	return Strategy{
		ProductCode: c.ProductCode,
		Kind:        c.Kind,
		NameIndex:   c.NameIndex,
		StrategyID:  fmt.Sprintf("%s_%d_%s", c.ProductCode, c.NameIndex, strings.ToLower(string(c.Kind))),
	}
}

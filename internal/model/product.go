package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ProductStatus marks whether a product is eligible for listing.
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "ACTIVE"
	ProductStatusInactive ProductStatus = "INACTIVE"
)

// Product is one catalog entry as ingested from an Excel export.
// NameVariants is ordered: index 0 is the highest-quality name.
type Product struct {
	ProductCode  string        `json:"product_code"`
	NameVariants []string      `json:"name_variants"`
	MixURL       string        `json:"mix_url,omitempty"`
	NukkiURL     string        `json:"nukki_url,omitempty"`
	Category     string        `json:"category,omitempty"`
	Status       ProductStatus `json:"status"`
	SourceFile   string        `json:"source_file,omitempty"`
	ImportedAt   time.Time     `json:"imported_at,omitempty"`
}

// ErrMalformedProduct marks products that cannot produce any combination.
var ErrMalformedProduct = eris.New("model: malformed product")

// Validate reports whether the product can participate in allocation.
// A product needs a code and at least one name variant; a product with
// no image URL at all cannot produce a usable combination either.
func (p Product) Validate() error {
	if strings.TrimSpace(p.ProductCode) == "" {
		return eris.Wrap(ErrMalformedProduct, "missing product code")
	}
	if len(p.names()) == 0 {
		return eris.Wrapf(ErrMalformedProduct, "%s: no name variants", p.ProductCode)
	}
	if strings.TrimSpace(p.MixURL) == "" && strings.TrimSpace(p.NukkiURL) == "" {
		return eris.Wrapf(ErrMalformedProduct, "%s: no image urls", p.ProductCode)
	}
	return nil
}

// names returns the non-blank name variants in order.
func (p Product) names() []string {
	out := make([]string, 0, len(p.NameVariants))
	for _, n := range p.NameVariants {
		if strings.TrimSpace(n) != "" {
			out = append(out, n)
		}
	}
	return out
}

// ProductFilter narrows ListProducts queries.
type ProductFilter struct {
	Category string        `json:"category,omitempty"` // prefix match on the category path
	Status   ProductStatus `json:"status,omitempty"`
	Limit    int           `json:"limit,omitempty"`
}

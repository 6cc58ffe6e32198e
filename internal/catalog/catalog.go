// Package catalog enumerates the candidate combinations for a product.
package catalog

import (
	"strings"

	"github.com/sellhub-kr/listing-cli/internal/model"
)

// Generate returns every candidate combination for the product, in the
// order allocation must consume them: name index ascending, and for
// each index the MIX image before the NUKKI image. A missing URL drops
// its half of each pair; no name variants means no combinations.
//
// The function is pure: identical input yields an identical sequence,
// which keeps allocation deterministic and restartable.
func Generate(p model.Product) []model.Combination {
	mixURL := strings.TrimSpace(p.MixURL)
	nukkiURL := strings.TrimSpace(p.NukkiURL)

	perName := 0
	if mixURL != "" {
		perName++
	}
	if nukkiURL != "" {
		perName++
	}
	if perName == 0 {
		return nil
	}

	out := make([]model.Combination, 0, perName*len(p.NameVariants))
	for i, name := range p.NameVariants {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if mixURL != "" {
			out = append(out, model.Combination{
				ProductCode: p.ProductCode,
				Kind:        model.KindMix,
				URL:         mixURL,
				NameIndex:   i,
				NameText:    name,
			})
		}
		if nukkiURL != "" {
			out = append(out, model.Combination{
				ProductCode: p.ProductCode,
				Kind:        model.KindNukki,
				URL:         nukkiURL,
				NameIndex:   i,
				NameText:    name,
			})
		}
	}
	return out
}

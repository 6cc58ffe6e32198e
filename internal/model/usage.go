package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// UploadStatus records the outcome of the marketplace delivery attempt.
type UploadStatus string

const (
	UploadStatusSuccess UploadStatus = "SUCCESS"
	UploadStatusFailed  UploadStatus = "FAILED"
)

// UsageRecord is one persisted allocation outcome. Records are append
// only: they are written once by the log writer and never mutated.
// Exactly one of UsedMixURL/UsedNukkiURL is set.
type UsageRecord struct {
	ID               string       `json:"id"`
	SheetName        string       `json:"sheet_name"`
	BusinessNumber   string       `json:"business_number"`
	StoreName        string       `json:"store_name"`
	ProductCode      string       `json:"product_code"`
	UsedMixURL       string       `json:"used_mix_url,omitempty"`
	UsedNukkiURL     string       `json:"used_nukki_url,omitempty"`
	UsedProductName  string       `json:"used_product_name"`
	ProductNameIndex int          `json:"product_name_index"`
	Strategy         Strategy     `json:"strategy"`
	Status           UploadStatus `json:"upload_status"`
	UploadedAt       time.Time    `json:"uploaded_at"`
	Notes            string       `json:"notes,omitempty"`
}

// NewUsageRecord builds the record for an assigned combination after
// the delivery attempt reported its status.
func NewUsageRecord(sheetName string, slot StoreSlot, c Combination, status UploadStatus, notes string) UsageRecord {
	rec := UsageRecord{
		ID:               uuid.New().String(),
		SheetName:        sheetName,
		BusinessNumber:   slot.BusinessNumber,
		StoreName:        slot.Name,
		ProductCode:      c.ProductCode,
		UsedProductName:  c.NameText,
		ProductNameIndex: c.NameIndex,
		Strategy:         NewStrategy(c),
		Status:           status,
		UploadedAt:       time.Now().UTC(),
		Notes:            notes,
	}
	switch c.Kind {
	case KindNukki:
		rec.UsedNukkiURL = c.URL
	default:
		rec.UsedMixURL = c.URL
	}
	return rec
}

// URL returns whichever image URL the record consumed.
func (r UsageRecord) URL() string {
	if r.UsedNukkiURL != "" {
		return r.UsedNukkiURL
	}
	return r.UsedMixURL
}

// Key derives the dedup key the record occupies within its sheet.
func (r UsageRecord) Key() CombinationKey {
	return NewCombinationKey(r.ProductCode, r.URL(), r.UsedProductName)
}

// Validate enforces the one-URL-per-record shape before persistence.
func (r UsageRecord) Validate() error {
	if r.SheetName == "" {
		return eris.New("model: usage record missing sheet name")
	}
	if r.ProductCode == "" {
		return eris.New("model: usage record missing product code")
	}
	if (r.UsedMixURL == "") == (r.UsedNukkiURL == "") {
		return eris.Errorf("model: usage record %s must set exactly one of mix/nukki url", r.ProductCode)
	}
	switch r.Status {
	case UploadStatusSuccess, UploadStatusFailed:
	default:
		return eris.Errorf("model: usage record %s has invalid status %q", r.ProductCode, r.Status)
	}
	return nil
}

// UsageFilter narrows ListUsage queries. SheetName is required; the
// rest are optional.
type UsageFilter struct {
	SheetName   string       `json:"sheet_name"`
	ProductCode string       `json:"product_code,omitempty"`
	Status      UploadStatus `json:"status,omitempty"`
	Limit       int          `json:"limit,omitempty"`
}

package identity

import (
	"strings"

	"github.com/partshop/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ShopSettingsID is the fixed id of the settings row
const ShopSettingsID = "shop"

// ShopSettings holds the shop's profile and document defaults
type ShopSettings struct {
	shared.BaseEntity
	ShopName          string          `json:"shop_name" validate:"required,max=200"`
	OwnerName         string          `json:"owner_name" validate:"max=100"`
	Address           string          `json:"address"`
	Phone             string          `json:"phone" validate:"omitempty,phone"`
	Email             string          `json:"email" validate:"omitempty,email"`
	TaxID             string          `json:"tax_id" validate:"max=50"`
	Currency          string          `json:"currency" validate:"required,len=3,alpha"`
	DefaultTaxPercent decimal.Decimal `json:"default_tax_percent"`
	InvoiceFooter     string          `json:"invoice_footer"`
	LowStockDefault   int             `json:"low_stock_default" validate:"gte=0"`
}

// NewDefaultShopSettings returns the settings created on first access
func NewDefaultShopSettings() *ShopSettings {
	s := &ShopSettings{
		ShopName:          "My Shop",
		Currency:          "INR",
		DefaultTaxPercent: decimal.NewFromInt(18),
		InvoiceFooter:     "Thank you for your business!",
		LowStockDefault:   5,
	}
	s.ID = ShopSettingsID
	return s
}

// Validate checks the settings. Email and phone are optional but must be
// well formed when present.
func (s *ShopSettings) Validate() error {
	s.ShopName = strings.TrimSpace(s.ShopName)
	s.Email = strings.ToLower(strings.TrimSpace(s.Email))
	s.Phone = strings.TrimSpace(s.Phone)
	s.Currency = strings.ToUpper(strings.TrimSpace(s.Currency))
	if err := shared.ValidateContact(s.Email, s.Phone); err != nil {
		return err
	}
	if err := shared.Percentages(map[string]decimal.Decimal{"default_tax_percent": s.DefaultTaxPercent}); err != nil {
		return err
	}
	return shared.ValidateStruct(s)
}

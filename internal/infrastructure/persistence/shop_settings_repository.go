package persistence

import (
	"context"

	"github.com/partshop/backend/internal/domain/identity"
	"gorm.io/gorm"
)

var shopSettingsMapper = Mapper[identity.ShopSettings]{
	Table: "shop_settings",
	Columns: []string{
		"shop_name", "owner_name", "address", "phone", "email", "tax_id", "currency",
		"default_tax_percent", "invoice_footer", "low_stock_default",
	},
	Required: []string{"shop_name", "currency"},
	Decode: func(row Row) (*identity.ShopSettings, error) {
		return &identity.ShopSettings{
			BaseEntity:        row.Base(),
			ShopName:          row.String("shop_name"),
			OwnerName:         row.String("owner_name"),
			Address:           row.String("address"),
			Phone:             row.String("phone"),
			Email:             row.String("email"),
			TaxID:             row.String("tax_id"),
			Currency:          row.String("currency"),
			DefaultTaxPercent: row.Decimal("default_tax_percent"),
			InvoiceFooter:     row.String("invoice_footer"),
			LowStockDefault:   row.Int("low_stock_default"),
		}, nil
	},
	Encode: func(s *identity.ShopSettings) Row {
		row := BaseRow(s.BaseEntity)
		row["shop_name"] = s.ShopName
		row["owner_name"] = s.OwnerName
		row["address"] = s.Address
		row["phone"] = s.Phone
		row["email"] = s.Email
		row["tax_id"] = s.TaxID
		row["currency"] = s.Currency
		row["default_tax_percent"] = Money(s.DefaultTaxPercent)
		row["invoice_footer"] = s.InvoiceFooter
		row["low_stock_default"] = s.LowStockDefault
		return row
	},
}

// ShopSettingsRepository stores the single settings row
type ShopSettingsRepository struct {
	*Repository[identity.ShopSettings]
}

// NewShopSettingsRepository creates a settings repository
func NewShopSettingsRepository(s Session, opts ...RepositoryOption) *ShopSettingsRepository {
	return &ShopSettingsRepository{NewRepository(s, shopSettingsMapper, opts...)}
}

// WithTx returns the repository bound to tx
func (r *ShopSettingsRepository) WithTx(tx *gorm.DB) *ShopSettingsRepository {
	return &ShopSettingsRepository{r.Repository.WithTx(tx)}
}

// GetOrCreateDefault returns the settings, creating the defaults on first access
func (r *ShopSettingsRepository) GetOrCreateDefault(ctx context.Context) (*identity.ShopSettings, error) {
	return ExecuteTransaction(ctx, r.Session(), func(tx *gorm.DB) (*identity.ShopSettings, error) {
		settings := r.Repository.WithTx(tx)
		s, err := settings.FindByID(ctx, identity.ShopSettingsID)
		if err != nil || s != nil {
			return s, err
		}
		return settings.Create(ctx, identity.NewDefaultShopSettings())
	})
}

// Update applies mutate to the settings, creating the defaults first if needed
func (r *ShopSettingsRepository) Update(ctx context.Context, mutate func(*identity.ShopSettings)) (*identity.ShopSettings, error) {
	if _, err := r.GetOrCreateDefault(ctx); err != nil {
		return nil, err
	}
	return r.Repository.Update(ctx, identity.ShopSettingsID, mutate)
}

package persistence

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRow_UnwrapsPointers(t *testing.T) {
	name := "customer_name"
	var boxed any = int64(42)
	var boxedText any = "2026-03-01 09:30:00.123"
	var price any = 12.5
	var flag any = int64(1)
	var missing *string

	row := Row{
		"name":    &name,
		"cid":     &boxed,
		"at":      &boxedText,
		"price":   &price,
		"active":  &flag,
		"missing": missing,
	}

	assert.Equal(t, "customer_name", row.String("name"))
	assert.Equal(t, int64(42), row.Int64("cid"))
	assert.Equal(t, "42", row.String("cid"))
	assert.Equal(t, time.Date(2026, 3, 1, 9, 30, 0, 123000000, time.UTC), row.Time("at"))
	assert.True(t, row.Decimal("price").Equal(decimal.NewFromFloat(12.5)))
	assert.True(t, row.Bool("active"))
	assert.Empty(t, row.String("missing"))
	assert.Nil(t, row.StringPtr("missing"))
}

func TestStorageTime(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 123456789, time.FixedZone("IST", 19800))
	got := StorageTime(at)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, 123000000, got.Nanosecond())

	parsed := Row{"at": FormatTime(at)}.Time("at")
	require.False(t, parsed.IsZero())
	assert.Equal(t, got, parsed)
}

func TestTableColumns(t *testing.T) {
	conn := newTestConnection(t)

	cols, err := tableColumns(rawDB(t, conn), "invoices")
	require.NoError(t, err)
	for _, c := range []string{"id", "invoice_number", "customer", "due_date"} {
		assert.True(t, cols[c], c)
	}
	assert.False(t, cols["customer_name"])

	_, err = tableColumns(rawDB(t, conn), "invoices; DROP TABLE parts")
	assert.Error(t, err)
}

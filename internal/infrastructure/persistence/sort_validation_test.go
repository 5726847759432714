package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string returns DESC", "", "DESC"},
		{"ASC uppercase returns ASC", "ASC", "ASC"},
		{"asc lowercase returns ASC", "asc", "ASC"},
		{"invalid value returns DESC", "INVALID", "DESC"},
		{"sql injection attempt returns DESC", "ASC; DROP TABLE parts;--", "DESC"},
		{"whitespace around ASC returns ASC", "  asc  ", "ASC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateSortOrder(tt.input))
		})
	}
}

func TestValidateSortField(t *testing.T) {
	allowed := columnSet([]string{"name", "quantity"})

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string returns default", "", "created_at"},
		{"table column", "quantity", "quantity"},
		{"base column", "updated_at", "updated_at"},
		{"unknown column returns default", "price", "created_at"},
		{"sql injection attempt returns default", "id; DROP TABLE parts;--", "created_at"},
		{"case sensitive", "NAME", "created_at"},
		{"whitespace around valid field", "  name  ", "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateSortField(tt.input, allowed, "created_at"))
		})
	}
}

func TestValidIdentifier(t *testing.T) {
	assert.True(t, ValidIdentifier("invoice_items"))
	assert.True(t, ValidIdentifier("_hidden"))
	assert.False(t, ValidIdentifier("1col"))
	assert.False(t, ValidIdentifier("name'--"))
	assert.False(t, ValidIdentifier("Name"))
	assert.False(t, ValidIdentifier(""))
}

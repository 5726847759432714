package partner

import (
	"testing"

	"github.com/partshop/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupplierValidate(t *testing.T) {
	t.Run("normalizes contact details", func(t *testing.T) {
		s := NewSupplier(" Bosch Distributors ")
		s.Email = " Sales@Bosch.IN "
		s.Phone = "+91 22 4000 1234"
		require.NoError(t, s.Validate())
		assert.Equal(t, "Bosch Distributors", s.Name)
		assert.Equal(t, "sales@bosch.in", s.Email)
		assert.True(t, s.IsActive)
	})

	t.Run("rejects malformed email", func(t *testing.T) {
		s := NewSupplier("Acme")
		s.Email = "acme"
		err := s.Validate()
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
		assert.Contains(t, err.Error(), "email")
	})

	t.Run("rejects malformed phone", func(t *testing.T) {
		s := NewSupplier("Acme")
		s.Phone = "12"
		assert.True(t, shared.IsValidation(s.Validate()))
	})

	t.Run("requires a name", func(t *testing.T) {
		assert.True(t, shared.IsValidation(NewSupplier("").Validate()))
	})

	t.Run("deactivate", func(t *testing.T) {
		s := NewSupplier("Acme")
		s.Deactivate()
		assert.False(t, s.IsActive)
	})
}

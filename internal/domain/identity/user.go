package identity

import (
	"strings"

	"github.com/partshop/backend/internal/domain/shared"
	"golang.org/x/crypto/bcrypt"
)

// DefaultUserID is the id of the single local user row
const DefaultUserID = "default-user"

// Password cost for bcrypt
const bcryptCost = 12

// UserRole is the role of the local user
type UserRole string

const (
	UserRoleOwner   UserRole = "owner"
	UserRoleManager UserRole = "manager"
	UserRoleStaff   UserRole = "staff"
)

// User is the shop's operator. There is exactly one, stored under DefaultUserID.
type User struct {
	shared.BaseEntity
	Name    string   `json:"name" validate:"required,max=100"`
	Email   string   `json:"email" validate:"omitempty,email"`
	Phone   string   `json:"phone" validate:"omitempty,phone"`
	Role    UserRole `json:"role" validate:"required,oneof=owner manager staff"`
	PINHash string   `json:"-"`
}

// NewDefaultUser returns the user created on first access
func NewDefaultUser() *User {
	u := &User{Name: "Shop Owner", Role: UserRoleOwner}
	u.ID = DefaultUserID
	return u
}

// Validate checks the user's fields. Email and phone are optional but must
// be well formed when present.
func (u *User) Validate() error {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Phone = strings.TrimSpace(u.Phone)
	if err := shared.ValidateContact(u.Email, u.Phone); err != nil {
		return err
	}
	return shared.ValidateStruct(u)
}

// SetPIN hashes and stores a numeric PIN of 4 to 8 digits
func (u *User) SetPIN(pin string) error {
	if err := shared.Validator().Var(pin, "number,min=4,max=8"); err != nil {
		return shared.NewValidationError("pin must be 4 to 8 digits", "pin")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcryptCost)
	if err != nil {
		return err
	}
	u.PINHash = string(hash)
	return nil
}

// HasPIN reports whether a PIN was set
func (u *User) HasPIN() bool {
	return u.PINHash != ""
}

// VerifyPIN reports whether pin matches the stored hash. A user without a PIN never matches.
func (u *User) VerifyPIN(pin string) bool {
	if u.PINHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PINHash), []byte(pin)) == nil
}

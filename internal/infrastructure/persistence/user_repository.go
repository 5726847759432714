package persistence

import (
	"context"

	"github.com/partshop/backend/internal/domain/identity"
	"gorm.io/gorm"
)

var userMapper = Mapper[identity.User]{
	Table:        "users",
	Columns:      []string{"name", "email", "phone", "role", "pin_hash"},
	Required:     []string{"name", "role"},
	SearchFields: []string{"name", "email", "phone"},
	Sensitive:    []string{"pin_hash"},
	Decode: func(row Row) (*identity.User, error) {
		return &identity.User{
			BaseEntity: row.Base(),
			Name:       row.String("name"),
			Email:      row.String("email"),
			Phone:      row.String("phone"),
			Role:       identity.UserRole(row.String("role")),
			PINHash:    row.String("pin_hash"),
		}, nil
	},
	Encode: func(u *identity.User) Row {
		row := BaseRow(u.BaseEntity)
		row["name"] = u.Name
		row["email"] = u.Email
		row["phone"] = u.Phone
		row["role"] = string(u.Role)
		row["pin_hash"] = nullIfEmpty(u.PINHash)
		return row
	},
}

// UserRepository stores the single local user
type UserRepository struct {
	*Repository[identity.User]
}

// NewUserRepository creates a user repository
func NewUserRepository(s Session, opts ...RepositoryOption) *UserRepository {
	return &UserRepository{NewRepository(s, userMapper, opts...)}
}

// WithTx returns the repository bound to tx
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{r.Repository.WithTx(tx)}
}

// GetOrCreateDefault returns the local user, creating it on first access
func (r *UserRepository) GetOrCreateDefault(ctx context.Context) (*identity.User, error) {
	return ExecuteTransaction(ctx, r.Session(), func(tx *gorm.DB) (*identity.User, error) {
		users := r.Repository.WithTx(tx)
		u, err := users.FindByID(ctx, identity.DefaultUserID)
		if err != nil || u != nil {
			return u, err
		}
		return users.Create(ctx, identity.NewDefaultUser())
	})
}

// UpdateProfile applies mutate to the local user. Email and phone are
// validated; the PIN is only changed through SetPIN.
func (r *UserRepository) UpdateProfile(ctx context.Context, mutate func(*identity.User)) (*identity.User, error) {
	if _, err := r.GetOrCreateDefault(ctx); err != nil {
		return nil, err
	}
	return r.Update(ctx, identity.DefaultUserID, func(u *identity.User) {
		hash := u.PINHash
		mutate(u)
		u.PINHash = hash
	})
}

// SetPIN replaces the local user's PIN
func (r *UserRepository) SetPIN(ctx context.Context, pin string) error {
	var hashed identity.User
	if err := hashed.SetPIN(pin); err != nil {
		return err
	}
	if _, err := r.GetOrCreateDefault(ctx); err != nil {
		return err
	}
	_, err := r.Update(ctx, identity.DefaultUserID, func(u *identity.User) {
		u.PINHash = hashed.PINHash
	})
	return err
}

// VerifyPIN reports whether pin matches the local user's PIN
func (r *UserRepository) VerifyPIN(ctx context.Context, pin string) (bool, error) {
	u, err := r.GetOrCreateDefault(ctx)
	if err != nil {
		return false, err
	}
	return u.VerifyPIN(pin), nil
}

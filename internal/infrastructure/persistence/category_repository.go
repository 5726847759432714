package persistence

import (
	"context"

	"github.com/partshop/backend/internal/domain/catalog"
	"github.com/partshop/backend/internal/domain/shared"
	"gorm.io/gorm"
)

var categoryMapper = Mapper[catalog.Category]{
	Table:        "categories",
	Columns:      []string{"name", "description", "parent_id"},
	Required:     []string{"name"},
	SearchFields: []string{"name", "description"},
	Decode: func(row Row) (*catalog.Category, error) {
		return &catalog.Category{
			BaseEntity:  row.Base(),
			Name:        row.String("name"),
			Description: row.String("description"),
			ParentID:    row.StringPtr("parent_id"),
		}, nil
	},
	Encode: func(c *catalog.Category) Row {
		row := BaseRow(c.BaseEntity)
		row["name"] = c.Name
		row["description"] = c.Description
		row["parent_id"] = NullString(c.ParentID)
		return row
	},
}

// CategoryRepository stores the category tree
type CategoryRepository struct {
	*Repository[catalog.Category]
}

// NewCategoryRepository creates a category repository
func NewCategoryRepository(s Session, opts ...RepositoryOption) *CategoryRepository {
	return &CategoryRepository{NewRepository(s, categoryMapper, opts...)}
}

// WithTx returns the repository bound to tx
func (r *CategoryRepository) WithTx(tx *gorm.DB) *CategoryRepository {
	return &CategoryRepository{r.Repository.WithTx(tx)}
}

// FindRoots returns categories without a parent, ordered by name
func (r *CategoryRepository) FindRoots(ctx context.Context) ([]*catalog.Category, error) {
	return r.FindAll(ctx, shared.FindOptions{
		Where:    map[string]any{"parent_id": nil},
		OrderBy:  "name",
		OrderDir: "asc",
	})
}

// FindChildren returns the direct children of parentID, ordered by name
func (r *CategoryRepository) FindChildren(ctx context.Context, parentID string) ([]*catalog.Category, error) {
	return r.FindAll(ctx, shared.FindOptions{
		Where:    map[string]any{"parent_id": parentID},
		OrderBy:  "name",
		OrderDir: "asc",
	})
}

package shared

// FindOptions represents query options shared by every repository.
// Where holds equality filters keyed by column name.
type FindOptions struct {
	Where    map[string]any
	OrderBy  string
	OrderDir string
	Limit    int
	Offset   int
}

// DefaultFindOptions returns options ordered by newest first
func DefaultFindOptions() FindOptions {
	return FindOptions{
		OrderBy:  "created_at",
		OrderDir: "desc",
		Where:    make(map[string]any),
	}
}

// Page sets Limit and Offset from a 1-based page number
func (o FindOptions) Page(page, pageSize int) FindOptions {
	if page < 1 {
		page = 1
	}
	if pageSize > 0 {
		o.Limit = pageSize
		o.Offset = (page - 1) * pageSize
	}
	return o
}

// With returns a copy with an extra equality filter
func (o FindOptions) With(column string, value any) FindOptions {
	where := make(map[string]any, len(o.Where)+1)
	for k, v := range o.Where {
		where[k] = v
	}
	where[column] = value
	o.Where = where
	return o
}

// Paginated represents a paginated result
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginated creates a new paginated result
func NewPaginated[T any](items []T, total int64, page, pageSize int) Paginated[T] {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(total) / pageSize
		if int(total)%pageSize > 0 {
			totalPages++
		}
	}
	return Paginated[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

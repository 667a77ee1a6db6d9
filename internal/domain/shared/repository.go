package shared

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Page holds limit/offset paging options
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps the page to defaults and the max limit
func (p Page) Normalize(maxLimit int) Page {
	if maxLimit <= 0 {
		maxLimit = MaxPageSize
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Paginated represents a paginated result
type Paginated[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// NewPaginated creates a new paginated result, never with nil items
func NewPaginated[T any](items []T, total int64, page Page) Paginated[T] {
	if items == nil {
		items = []T{}
	}
	return Paginated[T]{
		Items:  items,
		Total:  total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}
}

package domain

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// NormalizePage applies the 1-indexed page and limit defaults and caps.
func NormalizePage(page, limit int) (normalizedPage, normalizedLimit int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

// Page is one page of a list result.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Pages int `json:"pages"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// NewPage builds a page. A nil items slice is returned as empty.
func NewPage[T any](items []T, total, page, limit int) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Page[T]{Items: items, Total: total, Pages: pages, Page: page, Limit: limit}
}

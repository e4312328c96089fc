package shared

import (
	"net/url"
	"strconv"

	internalshared "github.com/papeleria/papeleria/internal/shared"
)

// ListFilters represents standard list page filters
type ListFilters struct {
	Page     int
	Limit    int
	Search   string
	SortBy   string
	SortDir  string
	IsActive *bool

	// Entity specific filters
	Category   string
	SupplierID *int64
}

// FiltersFromQuery reads the common list parameters. Listings default to
// active records only; is_active=all lifts that.
func FiltersFromQuery(q url.Values) ListFilters {
	page, limit := internalshared.PageParams(q, DefaultLimit)
	filters := ListFilters{
		Page:     page,
		Limit:    limit,
		Search:   internalshared.CleanString(q.Get("search")),
		SortBy:   q.Get("sort"),
		SortDir:  q.Get("dir"),
		Category: internalshared.CleanString(q.Get("category")),
	}
	switch q.Get("is_active") {
	case "all":
	case "false":
		inactive := false
		filters.IsActive = &inactive
	default:
		active := true
		filters.IsActive = &active
	}
	if v := q.Get("supplier_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filters.SupplierID = &id
		}
	}
	return filters
}

// Page is a listing response envelope.
type Page[T any] struct {
	Items      []T                       `json:"items"`
	Pagination internalshared.Pagination `json:"pagination"`
}

// NewPage wraps items with pagination metadata.
func NewPage[T any](items []T, filters ListFilters, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Pagination: internalshared.NewPagination(filters.Page, filters.Limit, total)}
}

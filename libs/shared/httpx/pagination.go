package httpx

import (
	"net/http"
	"strconv"
)

const (
	DefaultPageSize = 12
	MaxPageSize     = 100
)

// Page is a 1-based page request.
type Page struct {
	Index int
	Size  int
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	return (p.Index - 1) * p.Size
}

// ParsePage reads page and pageSize from the query string, clamping bad values.
func ParsePage(r *http.Request) Page {
	page := Page{Index: 1, Size: DefaultPageSize}
	q := r.URL.Query()
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		page.Index = n
	}
	if n, err := strconv.Atoi(q.Get("pageSize")); err == nil && n > 0 {
		page.Size = n
	}
	if page.Size > MaxPageSize {
		page.Size = MaxPageSize
	}
	return page
}

// Paginated builds the list envelope consumed by the admin tables.
func Paginated(page Page, total int64, rows any) map[string]any {
	pages := int64(0)
	if page.Size > 0 {
		pages = (total + int64(page.Size) - 1) / int64(page.Size)
	}
	if pages == 0 {
		pages = 1
	}
	return map[string]any{
		"pageIndex":  page.Index,
		"pageSize":   page.Size,
		"totalRows":  total,
		"totalPages": pages,
		"rows":       rows,
	}
}

package web

// handlers_common.go holds query parsing helpers shared by the handlers.

import (
	"net/http"
	"strconv"
	"time"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	// maxPage keeps (page-1)*pageSize far from overflow.
	maxPage         = 1 << 20
)

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseDateParam parses a YYYY-MM-DD query parameter. endOfDay moves the
// result to the last second of that day so ranges include it.
func parseDateParam(r *http.Request, name string, endOfDay bool) time.Time {
	val := r.URL.Query().Get(name)
	if val == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.DateOnly, val)
	if err != nil {
		return time.Time{}
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return t
}

// parsePaging reads page and page_size, clamped to their maximums.
func parsePaging(r *http.Request) (page, pageSize int) {
	page = min(parseIntParam(r, "page", 1), maxPage)
	pageSize = min(parseIntParam(r, "page_size", defaultPageSize), maxPageSize)
	return page, pageSize
}

func totalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 1
	}
	pages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if pages < 1 {
		return 1
	}
	return pages
}

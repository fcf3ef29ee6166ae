package api

import (
	"net/http"
	"strconv"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// parsePagination reads ?limit= and ?offset=, ignoring invalid values
func parsePagination(r *http.Request) (int, int) {
	query := r.URL.Query()

	limit := defaultPageSize
	if limitStr := query.Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= maxPageSize {
			limit = parsed
		}
	}

	offset := 0
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return limit, offset
}

// pageNumber is the 1-based page an offset falls on
func pageNumber(limit, offset int) int {
	return offset/limit + 1
}

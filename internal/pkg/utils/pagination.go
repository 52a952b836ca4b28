package utils

import (
	"net/http"
	"strconv"
)

// PageParams contains limit/offset pagination parameters
type PageParams struct {
	Limit  int
	Offset int
}

// PagedResponse wraps one page of items with the total row count
type PagedResponse struct {
	Items  interface{} `json:"items"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// DefaultLimit is the default number of items per page
const DefaultLimit = 20

// MaxLimit is the maximum number of items per page
const MaxLimit = 100

// ParsePageParams parses limit and offset from the query string
func ParsePageParams(r *http.Request) PageParams {
	q := r.URL.Query()
	limit := parseIntQuery(q.Get("limit"), DefaultLimit)
	offset := parseIntQuery(q.Get("offset"), 0)

	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}

	return PageParams{
		Limit:  limit,
		Offset: offset,
	}
}

// NewPagedResponse creates a paged response
func NewPagedResponse(items interface{}, total int64, p PageParams) PagedResponse {
	return PagedResponse{
		Items:  items,
		Total:  total,
		Limit:  p.Limit,
		Offset: p.Offset,
	}
}

func parseIntQuery(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}

package models

// Sort directions accepted by list endpoints.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Pagination defaults for list endpoints.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// PageQuery holds the pagination and sorting parameters of a list request.
// Zero values are replaced by defaults in Normalize.
type PageQuery struct {
	Page    int    `json:"page,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	SortBy  string `json:"sort_by,omitempty"`
	OrderBy string `json:"order_by,omitempty"`
}

// Normalize fills in defaults. Non-positive page and limit are coerced to the
// defaults and limit is capped at MaxLimit.
func (q PageQuery) Normalize(defaultSort string) PageQuery {
	if q.Page <= 0 {
		q.Page = DefaultPage
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.SortBy == "" {
		q.SortBy = defaultSort
	}
	if q.OrderBy == "" {
		q.OrderBy = OrderDesc
	}
	return q
}

// Offset returns the number of rows to skip for the requested page.
func (q PageQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Pagination describes the page returned by a list endpoint.
// TotalData comes from a count query run before the page fetch and may be
// stale relative to concurrent inserts.
type Pagination struct {
	Page      int `json:"page"`
	Limit     int `json:"limit"`
	TotalData int `json:"total_data"`
	TotalPage int `json:"total_page"`
}

// NewPagination computes total_page = ceil(total / limit).
func NewPagination(q PageQuery, total int) Pagination {
	totalPage := 0
	if q.Limit > 0 {
		totalPage = (total + q.Limit - 1) / q.Limit
	}
	return Pagination{
		Page:      q.Page,
		Limit:     q.Limit,
		TotalData: total,
		TotalPage: totalPage,
	}
}

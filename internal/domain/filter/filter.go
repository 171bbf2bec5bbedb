// Package filter holds shared list-query parameters.
package filter

// ListParams is the common shape of catalog list queries.
type ListParams struct {
	Search   string
	Limit    uint64
	Offset   uint64
	SortBy   string
	SortDesc bool
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Normalize clamps paging values and returns the params for chaining.
func (p ListParams) Normalize() ListParams {
	if p.Limit == 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// OrderClause builds "column direction" from an allow-list; falls back to the
// provided default when SortBy is absent or not allowed.
func (p ListParams) OrderClause(allowed map[string]string, def string) string {
	col, ok := allowed[p.SortBy]
	if !ok {
		return def
	}
	if p.SortDesc {
		return col + " DESC"
	}
	return col + " ASC"
}

package roster

import "github.com/nextlevelbuilder/botlink/pkg/protocol"

// StatusFilter narrows the roster by activation status.
type StatusFilter int

const (
	StatusAny StatusFilter = iota
	StatusActive
	StatusInactive
)

func (s StatusFilter) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusInactive:
		return "inactive"
	}
	return "any"
}

// ParseStatus maps CLI words to a filter. Unknown words mean StatusAny.
func ParseStatus(s string) StatusFilter {
	switch s {
	case "active", "true":
		return StatusActive
	case "inactive", "not-active", "false":
		return StatusInactive
	}
	return StatusAny
}

// Query is what the roster should currently show.
type Query struct {
	Page     int
	PageSize int
	Search   string // empty means no search
	Status   StatusFilter
}

// QueryPatch changes selected fields of a Query; nil fields keep their value.
// A non-nil empty Search clears the search.
type QueryPatch struct {
	Page     *int
	PageSize *int
	Search   *string
	Status   *StatusFilter
}

// merge applies p to q. Changing the search or the status filter moves back to
// page 1, overriding any page in the same patch.
func (q Query) merge(p QueryPatch) Query {
	out := q
	if p.Page != nil && *p.Page > 0 {
		out.Page = *p.Page
	}
	if p.PageSize != nil && *p.PageSize > 0 {
		out.PageSize = *p.PageSize
	}
	filterChanged := false
	if p.Search != nil && *p.Search != q.Search {
		out.Search = *p.Search
		filterChanged = true
	}
	if p.Status != nil && *p.Status != q.Status {
		out.Status = *p.Status
		filterChanged = true
	}
	if filterChanged {
		out.Page = 1
	}
	return out
}

func (q Query) params() protocol.UsersParams {
	p := protocol.UsersParams{Page: q.Page, PerPage: q.PageSize, Search: q.Search}
	switch q.Status {
	case StatusActive:
		v := true
		p.Status = &v
	case StatusInactive:
		v := false
		p.Status = &v
	}
	return p
}

// Pages returns how many pages total rows span at the query's page size.
func (q Query) Pages(total int) int {
	if q.PageSize <= 0 || total <= 0 {
		return 1
	}
	return (total + q.PageSize - 1) / q.PageSize
}

package timetable

// DefaultPageSize is the number of rows a view page holds.
const DefaultPageSize = 10

// Page is one slice of an ordered sequence.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// Paginate returns items[(page-1)*size : page*size] clamped to the sequence.
// Out of range pages yield an empty slice.
func Paginate[T any](items []T, page, size int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	out := Page[T]{
		Items:      []T{},
		Page:       page,
		PageSize:   size,
		TotalCount: len(items),
		TotalPages: PageCount(len(items), size),
	}
	if page < 1 {
		return out
	}
	start := (page - 1) * size
	if start >= len(items) {
		return out
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	out.Items = items[start:end]
	return out
}

// PageCount is the number of pages needed for total items.
func PageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// PageTracker holds the current page of a derived view and resets it to 1
// whenever the identity of the upstream set changes.
type PageTracker struct {
	Identity string `json:"identity"`
	Current  int    `json:"current"`
}

// Sync records the identity of the set being paged and reports whether the
// page was reset.
func (p *PageTracker) Sync(identity string) bool {
	if p.Current < 1 {
		p.Current = 1
	}
	if identity == p.Identity {
		return false
	}
	p.Identity = identity
	p.Current = 1
	return true
}

// Set moves to the requested page. Values below 1 are ignored.
func (p *PageTracker) Set(page int) {
	if page >= 1 {
		p.Current = page
	}
}

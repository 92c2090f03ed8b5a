package sugar

import "fmt"

// Page is one limit/offset window of a paged listing call.
type Page struct {
	Offset uint64
	Limit  uint64
}

// SplitPages covers [0, total) with windows of at most pageSize entries.
func SplitPages(total, pageSize uint64) ([]Page, error) {
	if pageSize == 0 {
		return nil, fmt.Errorf("page size must be greater than zero")
	}

	pages := make([]Page, 0, (total+pageSize-1)/pageSize)
	for offset := uint64(0); offset < total; offset += pageSize {
		limit := pageSize
		if remaining := total - offset; remaining < limit {
			limit = remaining
		}
		pages = append(pages, Page{Offset: offset, Limit: limit})
	}
	return pages, nil
}

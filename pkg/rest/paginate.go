package rest

import (
	"context"
	"iter"
	"strconv"

	"github.com/datazip-inc/airlake/utils/logger"
)

// PageFunc fetches one page starting at cursor ("" for the first page) and
// returns its items with the cursor of the next page, "" when done
type PageFunc[T any] func(ctx context.Context, cursor string) (items []T, next string, err error)

// Paginate lazily walks all pages; a page is only requested once every item
// of the previous page was consumed
func Paginate[T any](ctx context.Context, fetch PageFunc[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		cursor := ""
		seen := map[string]bool{}
		for {
			items, next, err := fetch(ctx, cursor)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}

			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}

			if next == "" {
				return
			}
			// guards against APIs echoing the same cursor forever
			if seen[next] {
				logger.Warnf("Pagination stopped, cursor[%s] was already requested", next)
				return
			}
			seen[next] = true
			cursor = next
		}
	}
}

// NextOffset returns the offset of the following page for offset based APIs,
// or "" when the current page was the last one
func NextOffset(cursor string, pageSize int, more bool) string {
	if !more {
		return ""
	}
	offset, _ := strconv.Atoi(cursor)
	return strconv.Itoa(offset + pageSize)
}

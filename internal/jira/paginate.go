package jira

import "context"

// Page is one response of an offset-paged endpoint.
type Page[T any] struct {
	Items []T
	// Total is the server-reported total, or -1 when the endpoint only reports IsLast.
	Total  int
	IsLast bool
}

// PageFunc fetches the page starting at startAt.
type PageFunc[T any] func(ctx context.Context, startAt, maxResults int) (Page[T], error)

// Paginate walks an offset-paged endpoint until it is exhausted and concatenates the pages.
// A short read of zero items always ends the walk, even when the reported total says otherwise.
func Paginate[T any](ctx context.Context, pageSize int, fetch PageFunc[T]) ([]T, error) {
	if pageSize <= 0 {
		pageSize = 100
	}

	var all []T
	offset := 0
	for {
		page, err := fetch(ctx, offset, pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		offset += len(page.Items)

		if len(page.Items) == 0 || page.IsLast {
			return all, nil
		}
		if page.Total >= 0 && offset >= page.Total {
			return all, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

func totalOrUnknown(total *int) int {
	if total == nil {
		return -1
	}
	return *total
}

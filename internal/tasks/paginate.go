package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/rsc/internal/models"
)

// PageFetcher fetches the page at url.
type PageFetcher[T any] func(ctx context.Context, url string) (*models.Page[T], error)

// Paginate fetches pages starting at startURL and following each page's Next link until it is empty.
//
// Every fetch goes through [Retry] with policy. onPage runs synchronously, exactly once per page and
// in page order, before the following page is requested. The first terminal failure stops pagination.
func Paginate[T any](ctx context.Context, policy RetryPolicy, startURL string, fetch PageFetcher[T], onPage func(items []T, offset, total int)) error {
	next := startURL
	for n := 0; next != ""; n++ {
		url := next
		page, err := Retry(ctx, policy, func(ctx context.Context) (*models.Page[T], error) {
			return fetch(ctx, url)
		})
		if err != nil {
			return fmt.Errorf("page %d: %w", n+1, err)
		}
		if page == nil {
			return fmt.Errorf("page %d: empty response", n+1)
		}

		if onPage != nil {
			onPage(page.Items, page.Offset, page.Total)
		}

		if page.Next == url {
			return fmt.Errorf("page %d: next link does not advance", n+1)
		}
		next = page.Next
	}
	return nil
}

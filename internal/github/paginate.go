// internal/github/paginate.go
package github

import (
	"context"

	"github.com/shurcooL/githubv4"

	"github.com/DylanCa/ideaboard-api-sub001/internal/model"
)

// pageFunc fetches one page of a cursor-paginated collection. A nil cursor
// requests the first page.
type pageFunc[T any] func(ctx context.Context, cursor *githubv4.String) ([]T, model.PageInfo, error)

// fetchAll drives fetch across every page of a collection and returns the
// items in page order. Only PageInfo.HasNextPage terminates the loop: a page
// with zero items but a continuation flag keeps going, since server-side
// filtering can thin out individual pages. Any page error aborts the whole
// walk; accumulated items are discarded.
func fetchAll[T any](ctx context.Context, fetch pageFunc[T]) ([]T, error) {
	var all []T
	var cursor *githubv4.String
	for {
		items, info, err := fetch(ctx, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if !info.HasNextPage {
			return all, nil
		}
		cursor = githubv4.NewString(githubv4.String(info.EndCursor))
	}
}

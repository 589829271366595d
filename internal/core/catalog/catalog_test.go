package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallerpro/checkup/internal/core/checklist"
)

type countingFetcher struct {
	calls int
	tmpl  checklist.Template
	err   error
}

func (f *countingFetcher) FetchTemplate(_ context.Context, _ string) (checklist.Template, error) {
	f.calls++
	if f.err != nil {
		return checklist.Template{}, f.err
	}
	return f.tmpl, nil
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()

	t.Run("fetches once per category", func(t *testing.T) {
		fetcher := &countingFetcher{tmpl: checklist.Template{ID: "tmpl-1", Category: "brakes"}}
		cat := New(fetcher)

		first, err := cat.Get(ctx, "brakes")
		require.NoError(t, err)
		second, err := cat.Get(ctx, "brakes")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, 1, fetcher.calls)
	})

	t.Run("sorts items by display order", func(t *testing.T) {
		fetcher := &countingFetcher{tmpl: checklist.Template{
			ID: "tmpl-1",
			Items: []checklist.Item{
				{ID: "c", DisplayOrder: 3},
				{ID: "a", DisplayOrder: 1},
				{ID: "b", DisplayOrder: 2},
			},
		}}
		cat := New(fetcher)

		tmpl, err := cat.Get(ctx, "brakes")
		require.NoError(t, err)
		require.Len(t, tmpl.Items, 3)
		assert.Equal(t, "a", tmpl.Items[0].ID)
		assert.Equal(t, "b", tmpl.Items[1].ID)
		assert.Equal(t, "c", tmpl.Items[2].ID)
	})

	t.Run("fetch errors are not cached", func(t *testing.T) {
		fetcher := &countingFetcher{err: errors.New("boom")}
		cat := New(fetcher)

		_, err := cat.Get(ctx, "brakes")
		require.Error(t, err)

		fetcher.err = nil
		fetcher.tmpl = checklist.Template{ID: "tmpl-1"}
		tmpl, err := cat.Get(ctx, "brakes")
		require.NoError(t, err)
		assert.Equal(t, "tmpl-1", tmpl.ID)
		assert.Equal(t, 2, fetcher.calls)
	})

	t.Run("invalidate forces refetch", func(t *testing.T) {
		fetcher := &countingFetcher{tmpl: checklist.Template{ID: "tmpl-1"}}
		cat := New(fetcher)

		_, err := cat.Get(ctx, "brakes")
		require.NoError(t, err)
		cat.Invalidate("brakes")
		_, err = cat.Get(ctx, "brakes")
		require.NoError(t, err)

		assert.Equal(t, 2, fetcher.calls)
	})
}

package rest

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginate(t *testing.T) {
	pages := map[string][]int{"": {1, 2}, "p2": {3}, "p3": {4, 5}}
	next := map[string]string{"": "p2", "p2": "p3", "p3": ""}

	var requested []string
	var items []int
	for item, err := range Paginate(context.Background(), func(_ context.Context, cursor string) ([]int, string, error) {
		requested = append(requested, cursor)
		return pages[cursor], next[cursor], nil
	}) {
		require.NoError(t, err)
		items = append(items, item)
	}

	assert.Equal(t, []int{1, 2, 3, 4, 5}, items)
	assert.Equal(t, []string{"", "p2", "p3"}, requested)
}

func TestPaginate_StopsEarly(t *testing.T) {
	fetches := 0
	for item := range Paginate(context.Background(), func(_ context.Context, cursor string) ([]int, string, error) {
		fetches++
		offset, _ := strconv.Atoi(cursor)
		return []int{offset, offset + 1}, strconv.Itoa(offset + 2), nil
	}) {
		if item == 1 {
			break
		}
	}
	assert.Equal(t, 1, fetches)
}

func TestPaginate_Error(t *testing.T) {
	var gotErr error
	count := 0
	for _, err := range Paginate(context.Background(), func(_ context.Context, cursor string) ([]string, string, error) {
		if cursor == "" {
			return []string{"a"}, "next", nil
		}
		return nil, "", errors.New("page failed")
	}) {
		if err != nil {
			gotErr = err
			break
		}
		count++
	}
	assert.Equal(t, 1, count)
	assert.EqualError(t, gotErr, "page failed")
}

func TestPaginate_RepeatedCursor(t *testing.T) {
	fetches := 0
	for range Paginate(context.Background(), func(_ context.Context, _ string) ([]int, string, error) {
		fetches++
		return []int{1}, "same", nil
	}) {
	}
	assert.Equal(t, 2, fetches)
}

func TestNextOffset(t *testing.T) {
	assert.Equal(t, "100", NextOffset("", 100, true))
	assert.Equal(t, "300", NextOffset("200", 100, true))
	assert.Equal(t, "", NextOffset("200", 100, false))
}

package id

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsSortedAndUnique(t *testing.T) {
	seen := map[string]bool{}
	var ids []string
	for i := 0; i < 500; i++ {
		s := New()
		require.Len(t, s, 26)
		require.False(t, seen[s], "duplicate id %s", s)
		seen[s] = true
		ids = append(ids, s)
	}
	assert.True(t, sort.StringsAreSorted(ids))
}

func TestNewAtRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	got, err := Time(NewAt(at))
	require.NoError(t, err)
	assert.Equal(t, at, got)

	assert.Less(t, NewAt(at), NewAt(at.Add(time.Second)))

	_, err = Time("not-an-id")
	assert.Error(t, err)
}

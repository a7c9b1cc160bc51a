package relation

import (
	"context"
	"errors"
	"testing"

	"mindlog/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapResolver struct {
	titles  map[uint]string
	err     error
	calls   int
	viewers []uint
}

func (r *mapResolver) TitlesByID(_ context.Context, viewerID uint, ids []uint) (map[uint]string, error) {
	r.calls++
	r.viewers = append(r.viewers, viewerID)
	if r.err != nil {
		return nil, r.err
	}
	out := make(map[uint]string, len(ids))
	for _, id := range ids {
		if t, ok := r.titles[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		self uint
		in   []uint
		want []uint
	}{
		{"dedupes keeping order", 1, []uint{3, 2, 3, 2, 4}, []uint{3, 2, 4}},
		{"drops self", 2, []uint{2, 3, 2}, []uint{3}},
		{"drops zero", 0, []uint{0, 5, 0}, []uint{5}},
		{"empty", 1, nil, []uint{}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Normalize(tt.self, tt.in))
		})
	}
}

func TestResolveTitles_MissingFallback(t *testing.T) {
	r := &mapResolver{titles: map[uint]string{2: "Foo"}}
	titles, err := ResolveTitles(context.Background(), r, 1, []uint{2, 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"Foo", MissingTitle}, titles)
	assert.Equal(t, "Unknown/Deleted Log", titles[1])
}

func TestResolveTitles_BlankTitle(t *testing.T) {
	r := &mapResolver{titles: map[uint]string{2: "  "}}
	titles, err := ResolveTitles(context.Background(), r, 1, []uint{2})
	require.NoError(t, err)
	assert.Equal(t, []string{UntitledTitle}, titles)
}

func TestResolveTitles_EmptySkipsLookup(t *testing.T) {
	r := &mapResolver{}
	titles, err := ResolveTitles(context.Background(), r, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, titles)
	assert.Zero(t, r.calls)
}

func TestApply(t *testing.T) {
	r := &mapResolver{titles: map[uint]string{2: "Foo", 1: "Self"}}
	l := &models.Log{ID: 1, OwnerID: 7, RelatedLogIDs: []uint{9}, RelatedLogTitles: []string{"old"}}

	require.NoError(t, Apply(context.Background(), r, l, []uint{2, 1, 3, 2}))
	assert.Equal(t, []uint{2, 3}, l.RelatedLogIDs)
	assert.Equal(t, []string{"Foo", MissingTitle}, l.RelatedLogTitles)
	assert.NotContains(t, l.RelatedLogIDs, l.ID)
	assert.Equal(t, []uint{7}, r.viewers, "titles resolve as the owner sees them")
}

func TestApply_ResolverErrorLeavesLogUntouched(t *testing.T) {
	r := &mapResolver{err: errors.New("db down")}
	l := &models.Log{ID: 1, RelatedLogIDs: []uint{9}, RelatedLogTitles: []string{"old"}}

	err := Apply(context.Background(), r, l, []uint{2})
	require.Error(t, err)
	assert.Equal(t, []uint{9}, l.RelatedLogIDs)
	assert.Equal(t, []string{"old"}, l.RelatedLogTitles)
}

func TestStale(t *testing.T) {
	assert.False(t, Stale([]string{"a"}, []string{"a"}))
	assert.True(t, Stale([]string{"a"}, []string{"b"}))
	assert.True(t, Stale(nil, []string{"b"}))
	assert.False(t, Stale(nil, []string{}))
}

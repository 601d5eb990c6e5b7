package site

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	r := NewRegistry(&CounterAllocator{})
	r.AddMain("/", []byte("icon"))
	return r
}

func TestRegistry_AddThenFind(t *testing.T) {
	r := newTestRegistry()

	for _, u := range []string{
		"https://example.com",
		"https://music.youtube.com/watch?v=1",
		"https://例子.测试/路径",
		"http://localhost:8080",
	} {
		s, err := r.Add(u)
		require.NoError(t, err)

		found, err := r.Find(s.ID)
		require.NoError(t, err)
		assert.Equal(t, u, found.URL)
		assert.Equal(t, StatusUninitialized, found.Status)
		assert.False(t, found.Main)
	}
}

func TestRegistry_AddTrimsSurroundingWhitespace(t *testing.T) {
	r := newTestRegistry()

	s, err := r.Add("  https://example.com/app \n")
	require.NoError(t, err)

	found, err := r.Find(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/app", found.URL)
	assert.Equal(t, []string{"https://example.com/app"}, r.VisibleURLs())
}

func TestRegistry_MainFirstAndUnique(t *testing.T) {
	r := NewRegistry(&CounterAllocator{})
	a, err := r.Add("https://a.example")
	require.NoError(t, err)

	m := r.AddMain("/", nil)
	again := r.AddMain("/other", nil)
	assert.Same(t, m, again)

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, MainID, all[0].ID)
	assert.Equal(t, a.ID, all[1].ID)
}

func TestRegistry_FindUnknown(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Find("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRegistry_AddRejectsInvalidURL(t *testing.T) {
	r := newTestRegistry()
	for _, u := range []string{"", "   ", "ftp://example.com", "example.com", "https://"} {
		_, err := r.Add(u)
		assert.ErrorIs(t, err, ErrInvalidURL, u)
	}
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_VisibleExcludesMainAndDeleted(t *testing.T) {
	r := newTestRegistry()
	a, _ := r.Add("https://a.example")
	b, _ := r.Add("https://b.example")
	c, _ := r.Add("https://c.example")

	b.Status = StatusExited
	c.Status = StatusDeleted

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, r.VisibleURLs())

	_, err := r.Find(c.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	r.Remove(a.ID)
	assert.Equal(t, []string{"https://b.example"}, r.VisibleURLs())
	_, err = r.Find(a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

type repeatingAllocator struct{ ids []string }

func (r *repeatingAllocator) NextID() string {
	id := r.ids[0]
	if len(r.ids) > 1 {
		r.ids = r.ids[1:]
	}
	return id
}

func TestRegistry_NeverDuplicatesIDs(t *testing.T) {
	r := NewRegistry(&repeatingAllocator{ids: []string{"x", "x", "main", "y"}})
	r.AddMain("/", nil)

	first, err := r.Add("https://a.example")
	require.NoError(t, err)
	second, err := r.Add("https://b.example")
	require.NoError(t, err)

	assert.Equal(t, "x", first.ID)
	assert.Equal(t, "y", second.ID)

	// 分配器只会给出重复 ID 时放弃
	_, err = r.Add("https://c.example")
	assert.Error(t, err)
}

func TestUUIDAllocator_Unique(t *testing.T) {
	var a UUIDAllocator
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := a.NextID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}

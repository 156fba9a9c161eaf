package memstore

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   int64
	Tags []string
}

func newItemStore() *Store[item] {
	return New(func(it *item, id int64) { it.ID = id }, func(it item) item {
		it.Tags = append([]string(nil), it.Tags...)
		return it
	})
}

func TestInsertAssignsSequentialIDs(t *testing.T) {
	s := newItemStore()
	a := s.Insert(item{})
	b := s.Insert(item{})
	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)
	assert.Equal(t, 2, s.Len())
}

func TestRecordsAreIsolatedFromCallers(t *testing.T) {
	s := newItemStore()
	tags := []string{"a"}
	stored := s.Insert(item{Tags: tags})
	tags[0] = "mutated"

	got, ok := s.Get(stored.ID)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, got.Tags)

	got.Tags[0] = "changed"
	again, _ := s.Get(stored.ID)
	assert.Equal(t, []string{"a"}, again.Tags)
}

func TestReplaceAndDeleteUnknownIDs(t *testing.T) {
	s := newItemStore()
	assert.False(t, s.Replace(5, item{}))
	assert.False(t, s.Delete(5))

	it := s.Insert(item{})
	assert.True(t, s.Replace(it.ID, item{Tags: []string{"x"}}))
	got, _ := s.Get(it.ID)
	assert.Equal(t, it.ID, got.ID)
	assert.Equal(t, []string{"x"}, got.Tags)

	assert.True(t, s.Delete(it.ID))
	_, ok := s.Get(it.ID)
	assert.False(t, ok)
}

func TestListFiltersAndOrders(t *testing.T) {
	s := newItemStore()
	for i := 0; i < 5; i++ {
		s.Insert(item{})
	}
	odd := s.List(func(it item) bool { return it.ID%2 == 1 })
	require.Len(t, odd, 3)
	assert.Equal(t, []int64{1, 3, 5}, []int64{odd[0].ID, odd[1].ID, odd[2].ID})
	assert.Len(t, s.List(nil), 5)
}

func TestConcurrentInserts(t *testing.T) {
	s := newItemStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Insert(item{})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
	assert.Len(t, s.List(nil), 50)
}

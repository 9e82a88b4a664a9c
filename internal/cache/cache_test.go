package cache

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/memorialmap/internal/region"
)

func TestMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	_, ok, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 0))
	got, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(0)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))

	now = now.Add(59 * time.Second)
	_, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestMemory_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2)

	require.NoError(t, m.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, m.Set(ctx, "c", []byte("3"), 0))

	assert.Equal(t, 2, m.Len())
	_, ok, _ := m.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = m.Get(ctx, "c")
	assert.True(t, ok)
}

func TestMemory_CopiesValue(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	v := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", v, 0))
	v[0] = 'x'

	got, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
}

func TestRegions_CachesHitsAndMisses(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	search := func(keyword string) (region.Match, error) {
		calls.Add(1)
		if keyword == "강북구" {
			return region.Match{Lat: 37.64, Lng: 127.02, Zoom: region.DistrictZoom, Type: region.TypeDistrict, Name: "강북구", Features: 1}, nil
		}
		return region.Match{}, region.ErrNoMatch
	}
	r := NewRegions(NewMemory(0), search, 0, nil)

	m, cached, err := r.Search(ctx, "강북구")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "강북구", m.Name)

	m, cached, err = r.Search(ctx, " 강북구 ")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, region.DistrictZoom, m.Zoom)

	_, _, err = r.Search(ctx, "없는동")
	assert.ErrorIs(t, err, region.ErrNoMatch)
	_, cached, err = r.Search(ctx, "없는동")
	assert.ErrorIs(t, err, region.ErrNoMatch)
	assert.True(t, cached)

	assert.Equal(t, int32(2), calls.Load())
}

func TestRegions_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	var calls atomic.Int32
	r := NewRegions(NewMemory(0), func(string) (region.Match, error) {
		calls.Add(1)
		return region.Match{}, boom
	}, time.Hour, nil)

	_, _, err := r.Search(ctx, "수유동")
	assert.ErrorIs(t, err, boom)
	_, _, err = r.Search(ctx, "수유동")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRegions_ConcurrentSearch(t *testing.T) {
	ctx := context.Background()
	r := NewRegions(NewMemory(0), func(keyword string) (region.Match, error) {
		return region.Match{Name: keyword, Features: 1}, nil
	}, 0, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, _, err := r.Search(ctx, "인수동")
			assert.NoError(t, err)
			assert.Equal(t, "인수동", m.Name)
		}()
	}
	wg.Wait()
}

// TestRedis runs against a live server when MEMORIALMAP_TEST_REDIS is set.
func TestRedis(t *testing.T) {
	addr := os.Getenv("MEMORIALMAP_TEST_REDIS")
	if addr == "" {
		t.Skip("MEMORIALMAP_TEST_REDIS not set")
	}
	ctx := context.Background()
	r := NewRedis(OpenRedis(addr, "", 0), "memorialmap-test:")
	defer r.Close()
	require.NoError(t, r.Ping(ctx))

	require.NoError(t, r.Set(ctx, "k", []byte("v"), time.Minute))
	got, ok, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(got))

	_, ok, err = r.Get(ctx, "never-set")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenRedis_EmptyAddr(t *testing.T) {
	assert.Nil(t, OpenRedis("", "", 0))
}

package watchlist

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrySharesStorePerOwner(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	reg := NewRegistry(repo, 0, nil)

	a1, release, err := reg.Acquire(ctx, "alice")
	require.NoError(t, err)
	defer release()
	a2, release2, err := reg.Acquire(ctx, "alice")
	require.NoError(t, err)
	release2()
	assert.Same(t, a1, a2)

	b, releaseB, err := reg.Acquire(ctx, "bob")
	require.NoError(t, err)
	releaseB()
	assert.NotSame(t, a1, b)

	_, err = a1.Add(ctx, 1, "Cowboy Bebop")
	require.NoError(t, err)
	assert.Equal(t, 0, b.Len())

	reg.Forget("alice")
	again, release3, err := reg.Acquire(ctx, "alice")
	require.NoError(t, err)
	release3()
	assert.Same(t, a1, again, "a held store is not forgotten")

	release()
	reg.Forget("alice")
	reloaded, release4, err := reg.Acquire(ctx, "alice")
	require.NoError(t, err)
	defer release4()
	assert.NotSame(t, a1, reloaded)
	assert.Equal(t, []int{1}, catalogIDs(reloaded.Entries()))
}

func TestRegistryEvictsIdleStores(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(CSVDir{Dir: t.TempDir()}, 2, nil)

	pinned, releasePinned, err := reg.Acquire(ctx, "pinned")
	require.NoError(t, err)

	for i := range 10 {
		_, release, err := reg.Acquire(ctx, fmt.Sprintf("session-%d", i))
		require.NoError(t, err)
		release()
		assert.LessOrEqual(t, reg.Len(), 2)
	}

	again, release, err := reg.Acquire(ctx, "pinned")
	require.NoError(t, err)
	release()
	assert.Same(t, pinned, again, "held stores survive eviction")

	releasePinned()
	releasePinned()
	for i := range 3 {
		_, release, err := reg.Acquire(ctx, fmt.Sprintf("late-%d", i))
		require.NoError(t, err)
		release()
	}
	assert.Equal(t, 2, reg.Len())

	reopened, release, err := reg.Acquire(ctx, "pinned")
	require.NoError(t, err)
	defer release()
	assert.NotSame(t, pinned, reopened)
}

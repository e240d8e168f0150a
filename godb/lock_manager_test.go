package godb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockManagerSharedLocksCoexist(t *testing.T) {
	lm := newLockManager()
	pid := PageID{TableID: 1, PageNumber: 0}
	t1, t2 := NewTID(), NewTID()

	granted, err := lm.acquire(t1, pid, Shared)
	require.NoError(t, err)
	require.True(t, granted)

	granted, err = lm.acquire(t2, pid, Shared)
	require.NoError(t, err)
	require.True(t, granted)

	require.True(t, lm.isHolding(t1, pid))
	require.True(t, lm.isHolding(t2, pid))
}

func TestLockManagerExclusiveIsExclusive(t *testing.T) {
	lm := newLockManager()
	pid := PageID{TableID: 1, PageNumber: 0}
	t1, t2 := NewTID(), NewTID()

	granted, err := lm.acquire(t1, pid, Exclusive)
	require.NoError(t, err)
	require.True(t, granted)

	granted, err = lm.acquire(t2, pid, Shared)
	require.NoError(t, err)
	require.False(t, granted, "a second transaction must not get any lock while an exclusive holder exists")

	granted, err = lm.acquire(t2, pid, Exclusive)
	require.NoError(t, err)
	require.False(t, granted)
}

// Both t1 and t2 hold Shared; t1's upgrade request must abort, not deadlock
// silently.
func TestLockManagerUpgradeDeniedWhenNotSoleHolder(t *testing.T) {
	lm := newLockManager()
	pid := PageID{TableID: 1, PageNumber: 0}
	t1, t2 := NewTID(), NewTID()

	_, err := lm.acquire(t1, pid, Shared)
	require.NoError(t, err)
	_, err = lm.acquire(t2, pid, Shared)
	require.NoError(t, err)

	_, err = lm.acquire(t1, pid, Exclusive)
	require.Error(t, err)
	kind, ok := Kind(err)
	require.True(t, ok)
	require.Equal(t, TransactionAbort, kind)
}

func TestLockManagerUpgradeGrantedWhenSoleHolder(t *testing.T) {
	lm := newLockManager()
	pid := PageID{TableID: 1, PageNumber: 0}
	t1 := NewTID()

	_, err := lm.acquire(t1, pid, Shared)
	require.NoError(t, err)

	granted, err := lm.acquire(t1, pid, Exclusive)
	require.NoError(t, err)
	require.True(t, granted)
}

func TestLockManagerReleaseAllDropsEveryHeldLock(t *testing.T) {
	lm := newLockManager()
	pidA := PageID{TableID: 1, PageNumber: 0}
	pidB := PageID{TableID: 1, PageNumber: 1}
	t1 := NewTID()

	lm.acquire(t1, pidA, Shared)
	lm.acquire(t1, pidB, Exclusive)
	lm.releaseAll(t1)

	require.False(t, lm.isHolding(t1, pidA))
	require.False(t, lm.isHolding(t1, pidB))
}

package godb

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// seedOnePage inserts one tuple (under its own committed transaction) so
// the heap file has a page 0 to read before the real test transactions
// start.
func seedOnePage(t *testing.T, hf *HeapFile, bp *BufferPool, desc TupleDesc) {
	t.Helper()
	tid := NewTID()
	require.NoError(t, bp.BeginTransaction(tid))
	require.NoError(t, hf.insertTuple(intTuple(desc, 0), tid))
	require.NoError(t, bp.CommitTransaction(tid))
}

// NO-STEAL eviction: capacity=2; tid1 dirties page A; tid2 reads B then C,
// forcing an eviction that must take the clean LRU page (B), never the
// dirty one (A).
func TestBufferPoolNoStealEviction(t *testing.T) {
	desc := intTupleDesc()
	bp, err := NewBufferPool(2)
	require.NoError(t, err)

	fileA := tempHeapFile(t, desc, bp)
	fileB := tempHeapFile(t, desc, bp)
	fileC := tempHeapFile(t, desc, bp)
	seedOnePage(t, fileA, bp, desc)
	seedOnePage(t, fileB, bp, desc)
	seedOnePage(t, fileC, bp, desc)

	pidA := PageID{TableID: fileA.TableID(), PageNumber: 0}
	pidB := PageID{TableID: fileB.TableID(), PageNumber: 0}
	pidC := PageID{TableID: fileC.TableID(), PageNumber: 0}

	tid1 := NewTID()
	require.NoError(t, bp.BeginTransaction(tid1))
	require.NoError(t, fileA.insertTuple(intTuple(desc, 1), tid1)) // dirties A via tid1

	tid2 := NewTID()
	require.NoError(t, bp.BeginTransaction(tid2))
	_, err = bp.GetPage(fileB, pidB, tid2, ReadOnly)
	require.NoError(t, err)
	_, err = bp.GetPage(fileC, pidC, tid2, ReadOnly) // forces eviction at capacity 2
	require.NoError(t, err)

	// A (dirty) must still be cached; B must have been the one evicted.
	_, stillCached := bp.cache.get(pidA)
	require.True(t, stillCached, "dirty page A must not have been evicted")

	// The on-disk copy of A must still be the pre-insert version.
	before, err := fileA.readPage(0)
	require.NoError(t, err)
	beforeHP := before.(*HeapPage)
	require.Equal(t, 1, countOccupied(beforeHP)) // only the seed tuple, not tid1's insert

	require.NoError(t, bp.CommitTransaction(tid1))
	bp.AbortTransaction(tid2)

	after, err := fileA.readPage(0)
	require.NoError(t, err)
	afterHP := after.(*HeapPage)
	require.Equal(t, 2, countOccupied(afterHP)) // seed tuple + tid1's committed insert
}

func countOccupied(hp *HeapPage) int {
	n := 0
	it := hp.TupleIterator()
	for {
		tup, _ := it()
		if tup == nil {
			return n
		}
		n++
	}
}

// Rollback re-reads the page from the heap file and replaces the cached
// copy in place; it does not evict the page from the cache. Pin that the
// page stays cached (with pre-transaction contents) right after
// an abort, rather than being freed from the cache.
func TestBufferPoolAbortReplacesCachedPageInPlace(t *testing.T) {
	desc := intTupleDesc()
	bp, err := NewBufferPool(4)
	require.NoError(t, err)
	hf := tempHeapFile(t, desc, bp)
	seedOnePage(t, hf, bp, desc)
	pid := PageID{TableID: hf.TableID(), PageNumber: 0}

	tid := NewTID()
	require.NoError(t, bp.BeginTransaction(tid))
	require.NoError(t, hf.insertTuple(intTuple(desc, 1), tid))

	dirtied, ok := bp.cache.get(pid)
	require.True(t, ok)
	_, isDirty := dirtied.(*HeapPage).IsDirty()
	require.True(t, isDirty)

	bp.AbortTransaction(tid)

	reloaded, stillCached := bp.cache.get(pid)
	require.True(t, stillCached, "rollback must replace the cached page, not discard it")
	_, isDirty = reloaded.(*HeapPage).IsDirty()
	require.False(t, isDirty, "the reloaded page must be clean")
	require.Equal(t, 1, countOccupied(reloaded.(*HeapPage)), "only the pre-abort seed tuple should remain")

	// The replaced page must now be the LRU-most-recent entry.
	victims := bp.cache.victims()
	require.Equal(t, pid, victims[len(victims)-1])
}

// Eviction of an all-dirty cache fails, surfaced as a BufferPoolFullError
// GoDBError.
func TestBufferPoolEvictionFailsWhenAllDirty(t *testing.T) {
	desc := intTupleDesc()
	bp, err := NewBufferPool(1)
	require.NoError(t, err)

	fileA := tempHeapFile(t, desc, bp)
	fileB := tempHeapFile(t, desc, bp)
	seedOnePage(t, fileA, bp, desc)
	seedOnePage(t, fileB, bp, desc)

	tid := NewTID()
	require.NoError(t, bp.BeginTransaction(tid))
	require.NoError(t, fileA.insertTuple(intTuple(desc, 1), tid)) // dirties the only cached page

	pidB := PageID{TableID: fileB.TableID(), PageNumber: 0}
	_, err = bp.GetPage(fileB, pidB, tid, ReadOnly)
	require.Error(t, err)
	kind, ok := Kind(err)
	require.True(t, ok)
	require.Equal(t, BufferPoolFullError, kind)
}

// A lock held by one transaction times out a conflicting request from
// another within ~LockWaitTimeout.
func TestBufferPoolLockWaitTimeout(t *testing.T) {
	desc := intTupleDesc()
	bp, err := NewBufferPool(4)
	require.NoError(t, err)
	hf := tempHeapFile(t, desc, bp)
	seedOnePage(t, hf, bp, desc)
	pid := PageID{TableID: hf.TableID(), PageNumber: 0}

	oldTimeout := LockWaitTimeout
	LockWaitTimeout = 100 * time.Millisecond
	defer func() { LockWaitTimeout = oldTimeout }()

	tid1 := NewTID()
	require.NoError(t, bp.BeginTransaction(tid1))
	_, err = bp.GetPage(hf, pid, tid1, ReadWrite)
	require.NoError(t, err)

	tid2 := NewTID()
	require.NoError(t, bp.BeginTransaction(tid2))

	start := time.Now()
	_, err = bp.GetPage(hf, pid, tid2, ReadOnly)
	elapsed := time.Since(start)

	require.Error(t, err)
	kind, ok := Kind(err)
	require.True(t, ok)
	require.Equal(t, TransactionAbort, kind)
	require.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	require.Less(t, elapsed, 500*time.Millisecond)

	bp.AbortTransaction(tid1)
}

// flushPage then readPage observes the same bytes.
func TestHeapFileWritePageRoundTrip(t *testing.T) {
	desc := intTupleDesc()
	bp, err := NewBufferPool(4)
	require.NoError(t, err)
	hf := tempHeapFile(t, desc, bp)
	seedOnePage(t, hf, bp, desc)

	p, err := hf.readPage(0)
	require.NoError(t, err)
	data1, err := p.PageData()
	require.NoError(t, err)

	require.NoError(t, hf.flushPage(p))
	p2, err := hf.readPage(0)
	require.NoError(t, err)
	data2, err := p2.PageData()
	require.NoError(t, err)

	require.Equal(t, data1, data2)
}

// Repeated get_page(tid, pid, R) returns the cache's same in-memory page.
func TestBufferPoolGetPageIsCached(t *testing.T) {
	desc := intTupleDesc()
	bp, err := NewBufferPool(4)
	require.NoError(t, err)
	hf := tempHeapFile(t, desc, bp)
	seedOnePage(t, hf, bp, desc)
	pid := PageID{TableID: hf.TableID(), PageNumber: 0}

	tid := NewTID()
	require.NoError(t, bp.BeginTransaction(tid))
	p1, err := bp.GetPage(hf, pid, tid, ReadOnly)
	require.NoError(t, err)
	p2, err := bp.GetPage(hf, pid, tid, ReadOnly)
	require.NoError(t, err)
	require.Same(t, p1, p2)
	bp.AbortTransaction(tid)
}

// Once every existing page is full, insertTuple appends a new page and
// NumPages grows by exactly 1.
func TestHeapFileGrowsOnFullInsert(t *testing.T) {
	origPageSize := PageSize
	PageSize = 68 // small enough that a 1-int-field page holds a handful of slots
	defer func() { PageSize = origPageSize }()

	desc := intTupleDesc()
	bp, err := NewBufferPool(8)
	require.NoError(t, err)
	hf := tempHeapFile(t, desc, bp)

	tid := NewTID()
	require.NoError(t, bp.BeginTransaction(tid))

	numSlots, _ := computeNumSlots(desc.bytesPerTuple())
	for i := 0; i < numSlots; i++ {
		require.NoError(t, hf.insertTuple(intTuple(desc, int64(i)), tid))
	}
	require.Equal(t, 1, hf.NumPages())

	require.NoError(t, hf.insertTuple(intTuple(desc, int64(numSlots)), tid))
	require.Equal(t, 2, hf.NumPages())

	require.NoError(t, bp.CommitTransaction(tid))
}

// The iterator caches the page count at open. An iterator opened before a
// concurrent transaction appends a page must not observe that page, even
// though it commits (and the underlying file grows) before the scan ends.
func TestHeapFileIteratorSnapshotsPageCountAtOpen(t *testing.T) {
	desc := intTupleDesc()
	bp, err := NewBufferPool(8)
	require.NoError(t, err)
	hf := tempHeapFile(t, desc, bp)
	seedOnePage(t, hf, bp, desc) // page 0 exists with one tuple

	scanTid := NewTID()
	require.NoError(t, bp.BeginTransaction(scanTid))
	it, err := hf.Iterator(scanTid)
	require.NoError(t, err)

	// Drain page 0's one tuple so the scan is positioned at the page
	// boundary, mirroring fetchNext's "pageIter == nil" re-check point.
	first, err := it()
	require.NoError(t, err)
	require.NotNil(t, first)

	// A second, concurrent transaction appends and fills a new page after
	// the scan opened, then commits.
	pageNo, err := hf.appendEmptyPage()
	require.NoError(t, err)
	require.Equal(t, 1, pageNo)

	growTid := NewTID()
	require.NoError(t, bp.BeginTransaction(growTid))
	newPid := PageID{TableID: hf.TableID(), PageNumber: pageNo}
	newPage, err := bp.GetPage(hf, newPid, growTid, ReadWrite)
	require.NoError(t, err)
	_, err = newPage.(*HeapPage).InsertTuple(intTuple(desc, 99))
	require.NoError(t, err)
	newPage.MarkDirty(growTid, true)
	require.NoError(t, bp.CommitTransaction(growTid))
	require.Equal(t, 2, hf.NumPages())

	// The already-open scan must still see only page 0's tuples -- its
	// cached numPages was 1 as of Open(), before the append landed.
	next, err := it()
	require.NoError(t, err)
	require.Nil(t, next, "scan opened before the append must not observe the new page")

	bp.AbortTransaction(scanTid)
}

// The page map and the LRU list carry identical PageID sets at every
// quiescent instant.
func TestBufferPoolLRUConsistency(t *testing.T) {
	desc := intTupleDesc()
	bp, err := NewBufferPool(4)
	require.NoError(t, err)

	var files []*HeapFile
	for i := 0; i < 3; i++ {
		f := tempHeapFile(t, desc, bp)
		seedOnePage(t, f, bp, desc)
		files = append(files, f)
	}

	tid := NewTID()
	require.NoError(t, bp.BeginTransaction(tid))
	for _, f := range files {
		pid := PageID{TableID: f.TableID(), PageNumber: 0}
		_, err := bp.GetPage(f, pid, tid, ReadOnly)
		require.NoError(t, err)
	}

	mapKeys := make(map[PageID]struct{})
	for pid := range bp.cache.nodes {
		mapKeys[pid] = struct{}{}
	}
	listKeys := make(map[PageID]struct{})
	for _, pid := range bp.cache.victims() { // walks the linked list itself
		listKeys[pid] = struct{}{}
	}
	require.Equal(t, mapKeys, listKeys)

	bp.AbortTransaction(tid)
}

// Sanity check that concurrent readers on distinct pages make progress
// without blocking each other.
func TestBufferPoolConcurrentReadersDoNotBlock(t *testing.T) {
	desc := intTupleDesc()
	bp, err := NewBufferPool(8)
	require.NoError(t, err)

	var files []*HeapFile
	for i := 0; i < 4; i++ {
		f := tempHeapFile(t, desc, bp)
		seedOnePage(t, f, bp, desc)
		files = append(files, f)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(files))
	for i, f := range files {
		wg.Add(1)
		go func(i int, f *HeapFile) {
			defer wg.Done()
			tid := NewTID()
			if err := bp.BeginTransaction(tid); err != nil {
				errs[i] = err
				return
			}
			pid := PageID{TableID: f.TableID(), PageNumber: 0}
			if _, err := bp.GetPage(f, pid, tid, ReadOnly); err != nil {
				errs[i] = err
				return
			}
			bp.AbortTransaction(tid)
		}(i, f)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
}

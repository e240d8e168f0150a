package godb

// BufferPool caches pages read from heap files and is the sole place
// page-level locking and NO-STEAL/FORCE transaction semantics are enforced.
// Locking is delegated to lockManager and eviction order to lruList;
// deadlocks are broken by a lock-wait timeout rather than cycle detection.

import (
	"sync"
	"time"
)

// Permission is the access mode requested when fetching a page.
type Permission int

const (
	ReadOnly Permission = iota
	ReadWrite
)

// LockWaitTimeout bounds how long GetPage will retry an ungrantable lock
// before aborting the requesting transaction. Only _test.go files may
// mutate it.
var LockWaitTimeout = 2000 * time.Millisecond

const lockPollInterval = 5 * time.Millisecond

// dbFile is the subset of HeapFile the buffer pool needs to read/write pages
// without importing a concrete type cycle; HeapFile satisfies it directly.
type dbFile interface {
	readPage(pageNo int) (Page, error)
	flushPage(p Page) error
}

type BufferPool struct {
	capacity int

	mu    sync.Mutex
	cache *lruList
	files map[PageID]dbFile // which file a cached/locked page belongs to

	locks *lockManager

	txMu    sync.Mutex
	running map[TransactionID]struct{}
}

// NewBufferPool creates a BufferPool that caches at most numPages pages.
func NewBufferPool(numPages int) (*BufferPool, error) {
	return &BufferPool{
		capacity: numPages,
		cache:    newLRUList(),
		files:    make(map[PageID]dbFile),
		locks:    newLockManager(),
		running:  make(map[TransactionID]struct{}),
	}, nil
}

// BeginTransaction registers tid as active. Returns an error if tid is
// already running.
func (bp *BufferPool) BeginTransaction(tid TransactionID) error {
	bp.txMu.Lock()
	defer bp.txMu.Unlock()
	if _, ok := bp.running[tid]; ok {
		return newErr(DbError, "transaction %v is already running", tid)
	}
	bp.running[tid] = struct{}{}
	return nil
}

func permissionToLockMode(perm Permission) LockMode {
	if perm == ReadWrite {
		return Exclusive
	}
	return Shared
}

// GetPage fetches the page identified by pid from file, acquiring a lock of
// the requested permission on behalf of tid first. The lock is acquired
// before the page cache is consulted, and the retry loop that waits for an
// ungrantable lock runs outside the cache mutex so other transactions can
// make progress while this one waits.
func (bp *BufferPool) GetPage(file dbFile, pid PageID, tid TransactionID, perm Permission) (Page, error) {
	deadline := time.Now().Add(LockWaitTimeout)
	mode := permissionToLockMode(perm)
	for {
		granted, err := bp.locks.acquire(tid, pid, mode)
		if err != nil {
			bp.AbortTransaction(tid)
			return nil, err
		}
		if granted {
			break
		}
		if time.Now().After(deadline) {
			bp.AbortTransaction(tid)
			return nil, newErr(TransactionAbort, "timed out waiting for lock on %v", pid)
		}
		time.Sleep(lockPollInterval)
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	if page, ok := bp.cache.get(pid); ok {
		bp.cache.touch(pid, page)
		return page, nil
	}

	if bp.cache.len() >= bp.capacity {
		if err := bp.evictLocked(); err != nil {
			return nil, err
		}
	}

	page, err := file.readPage(pid.PageNumber)
	if err != nil {
		return nil, err
	}
	bp.files[pid] = file
	bp.cache.touch(pid, page)
	return page, nil
}

// evictLocked removes the least-recently-used clean page from the cache.
// Caller must hold bp.mu. Never evicts a dirty page (NO-STEAL).
func (bp *BufferPool) evictLocked() error {
	for _, pid := range bp.cache.victims() {
		page, _ := bp.cache.get(pid)
		if _, dirty := page.IsDirty(); dirty {
			continue
		}
		bp.cache.remove(pid)
		delete(bp.files, pid)
		return nil
	}
	return newErr(BufferPoolFullError, "buffer pool full of dirty pages")
}

// unsafeReleasePage releases tid's lock on pid without flushing or otherwise
// ending the transaction. Used only by HeapFile.insertTuple's sanctioned
// early release of a page found full mid-scan.
func (bp *BufferPool) unsafeReleasePage(tid TransactionID, pid PageID) {
	bp.locks.release(tid, pid)
}

// HoldsLock reports whether tid currently holds a lock on pid.
func (bp *BufferPool) HoldsLock(tid TransactionID, pid PageID) bool {
	return bp.locks.isHolding(tid, pid)
}

// CommitTransaction flushes every page tid dirtied, then releases all of
// tid's locks.
func (bp *BufferPool) CommitTransaction(tid TransactionID) error {
	return bp.transactionComplete(tid, true)
}

// AbortTransaction re-reads every page tid dirtied from disk, replacing the
// cached copy with the pre-transaction bytes, and releases all of tid's
// locks. Safe under NO-STEAL because a dirty page is never written to disk
// before commit.
func (bp *BufferPool) AbortTransaction(tid TransactionID) {
	_ = bp.transactionComplete(tid, false)
}

func (bp *BufferPool) transactionComplete(tid TransactionID, commit bool) error {
	bp.mu.Lock()
	// Scan the whole cache rather than tid's held locks: HeapFile.insertTuple
	// may have released its lock on a page tid dirtied before finding it full.
	pages := bp.cache.all()
	var firstErr error
	for _, pid := range pages {
		page, ok := bp.cache.get(pid)
		if !ok {
			continue
		}
		dirtyTid, dirty := page.IsDirty()
		if !dirty || dirtyTid != tid {
			continue
		}
		file := bp.files[pid]
		if commit {
			if err := file.flushPage(page); err != nil && firstErr == nil {
				firstErr = err
			}
			page.MarkDirty(tid, false)
		} else {
			// Rollback: re-read the page from the heap file and replace the
			// cached copy, moving it to the LRU head, rather than discarding
			// it outright. NO-STEAL guarantees the on-disk bytes are still
			// pre-transaction.
			reloaded, err := file.readPage(pid.PageNumber)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				bp.cache.remove(pid)
				delete(bp.files, pid)
				continue
			}
			bp.cache.touch(pid, reloaded)
		}
	}
	bp.mu.Unlock()

	bp.locks.releaseAll(tid)

	bp.txMu.Lock()
	delete(bp.running, tid)
	bp.txMu.Unlock()

	return firstErr
}

// FlushAllPages force-writes every dirty cached page to its backing file and
// clears its dirty bit. Test-only: not safe to call concurrently with
// running transactions.
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for _, pid := range bp.cache.all() {
		page, _ := bp.cache.get(pid)
		if _, dirty := page.IsDirty(); !dirty {
			continue
		}
		file := bp.files[pid]
		if err := file.flushPage(page); err != nil {
			return err
		}
		page.MarkDirty(TransactionID{}, false)
	}
	return nil
}

// FlushPage force-writes a single cached page, if dirty.
func (bp *BufferPool) FlushPage(pid PageID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	page, ok := bp.cache.get(pid)
	if !ok {
		return nil
	}
	if _, dirty := page.IsDirty(); !dirty {
		return nil
	}
	file := bp.files[pid]
	if err := file.flushPage(page); err != nil {
		return err
	}
	page.MarkDirty(TransactionID{}, false)
	return nil
}

// DiscardPage evicts pid from the cache without flushing it, regardless of
// dirty state.
func (bp *BufferPool) DiscardPage(pid PageID) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.cache.remove(pid)
	delete(bp.files, pid)
}

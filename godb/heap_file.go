package godb

// HeapFile is an unordered, on-disk collection of fixed-width tuples backed
// by a single OS file, one HeapPage per PageSize-byte region. Page fullness
// is always re-checked through the buffer pool rather than cached, so it is
// never stale; tuples are addressed with the typed RecordID from ids.go.

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// HeapFile is a public type: callers construct one per backing file and
// register it with a Catalog.
type HeapFile struct {
	backingFile string
	tableID     int
	desc        *TupleDesc
	bp          *BufferPool

	growMu sync.Mutex // serializes file-extension across concurrent inserters
}

// NewHeapFile opens (or prepares to create) a HeapFile backed by fromFile.
// fromFile may not yet exist; it is created lazily as pages are written.
func NewHeapFile(fromFile string, desc *TupleDesc, bp *BufferPool) (*HeapFile, error) {
	return &HeapFile{
		backingFile: fromFile,
		tableID:     TableIDForPath(fromFile),
		desc:        desc,
		bp:          bp,
	}, nil
}

func (f *HeapFile) BackingFile() string { return f.backingFile }
func (f *HeapFile) Descriptor() *TupleDesc { return f.desc }
func (f *HeapFile) TableID() int { return f.tableID }

// NumPages returns how many PageSize-byte pages the backing file currently
// holds, 0 if it does not yet exist.
func (f *HeapFile) NumPages() int {
	info, err := os.Stat(f.backingFile)
	if err != nil {
		return 0
	}
	size := info.Size()
	numPages := int(size / int64(PageSize))
	if size%int64(PageSize) != 0 {
		numPages++
	}
	return numPages
}

// readPage reads page pageNo from disk and constructs a HeapPage. Returns an
// InvalidPage error if pageNo is out of bounds.
func (f *HeapFile) readPage(pageNo int) (Page, error) {
	if pageNo < 0 || pageNo >= f.NumPages() {
		return nil, newErr(InvalidPage, "page %d out of range for %s", pageNo, f.backingFile)
	}
	file, err := os.Open(f.backingFile)
	if err != nil {
		return nil, newErr(IoFailure, "opening %s: %v", f.backingFile, err)
	}
	defer file.Close()

	if _, err := file.Seek(int64(pageNo)*int64(PageSize), io.SeekStart); err != nil {
		return nil, newErr(IoFailure, "seeking in %s: %v", f.backingFile, err)
	}
	buf := make([]byte, PageSize)
	if _, err := io.ReadFull(file, buf); err != nil {
		return nil, newErr(IoFailure, "reading page %d of %s: %v", pageNo, f.backingFile, err)
	}

	pid := PageID{TableID: f.tableID, PageNumber: pageNo}
	return initHeapPageFromBuffer(pid, f.desc, buf)
}

// flushPage writes p back to its offset in the backing file. Called by the
// buffer pool when it commits a dirty page or is asked to flush one; eviction
// never writes a page.
func (f *HeapFile) flushPage(p Page) error {
	hp, ok := p.(*HeapPage)
	if !ok {
		return newErr(IoFailure, "flushPage: not a HeapPage")
	}
	file, err := os.OpenFile(f.backingFile, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return newErr(IoFailure, "opening %s: %v", f.backingFile, err)
	}
	defer file.Close()

	if _, err := file.Seek(int64(hp.id.PageNumber)*int64(PageSize), io.SeekStart); err != nil {
		return newErr(IoFailure, "seeking in %s: %v", f.backingFile, err)
	}
	data, err := hp.PageData()
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		return newErr(IoFailure, "writing page %d of %s: %v", hp.id.PageNumber, f.backingFile, err)
	}
	return nil
}

// appendEmptyPage extends the backing file by one all-empty page and returns
// its page number.
func (f *HeapFile) appendEmptyPage() (int, error) {
	f.growMu.Lock()
	defer f.growMu.Unlock()

	pageNo := f.NumPages()
	data, err := createEmptyPageData(f.desc)
	if err != nil {
		return 0, err
	}
	file, err := os.OpenFile(f.backingFile, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return 0, newErr(IoFailure, "opening %s: %v", f.backingFile, err)
	}
	defer file.Close()
	if _, err := file.Seek(int64(pageNo)*int64(PageSize), io.SeekStart); err != nil {
		return 0, newErr(IoFailure, "seeking in %s: %v", f.backingFile, err)
	}
	if _, err := file.Write(data); err != nil {
		return 0, newErr(IoFailure, "extending %s: %v", f.backingFile, err)
	}
	return pageNo, nil
}

// insertTuple searches pages 0..NumPages()-1 for one with a free slot,
// acquiring ReadWrite through the buffer pool and releasing the lock
// immediately on any page found full. This early release is the one
// deliberate break from strict two-phase locking: holding exclusive locks on
// every full page scanned would starve concurrent inserters. If no page has
// room, the file is extended with a new empty page and the insert lands
// there.
func (f *HeapFile) insertTuple(t *Tuple, tid TransactionID) error {
	numPages := f.NumPages()
	for pageNo := 0; pageNo < numPages; pageNo++ {
		pid := PageID{TableID: f.tableID, PageNumber: pageNo}
		page, err := f.bp.GetPage(f, pid, tid, ReadWrite)
		if err != nil {
			return err
		}
		hp := page.(*HeapPage)
		if hp.NumEmptySlots() == 0 {
			f.bp.unsafeReleasePage(tid, pid)
			continue
		}
		if _, err := hp.InsertTuple(t); err != nil {
			return err
		}
		hp.MarkDirty(tid, true)
		return nil
	}

	pageNo, err := f.appendEmptyPage()
	if err != nil {
		return err
	}
	pid := PageID{TableID: f.tableID, PageNumber: pageNo}
	page, err := f.bp.GetPage(f, pid, tid, ReadWrite)
	if err != nil {
		return err
	}
	hp := page.(*HeapPage)
	if _, err := hp.InsertTuple(t); err != nil {
		return err
	}
	hp.MarkDirty(tid, true)
	return nil
}

// deleteTuple removes t using the RecordID it was read with.
func (f *HeapFile) deleteTuple(t *Tuple, tid TransactionID) error {
	if t.Rid == nil {
		return newErr(DbError, "deleteTuple: tuple has no RecordID")
	}
	rid := *t.Rid
	page, err := f.bp.GetPage(f, rid.Page, tid, ReadWrite)
	if err != nil {
		return err
	}
	hp := page.(*HeapPage)
	if err := hp.DeleteTuple(rid); err != nil {
		return err
	}
	hp.MarkDirty(tid, true)
	return nil
}

// LoadFromCSV populates the heap file from a CSV file, one transaction per
// load.
func (f *HeapFile) LoadFromCSV(file *os.File, hasHeader bool, sep string, skipLastField bool) error {
	scanner := bufio.NewScanner(file)
	lineNo := 0
	tid := NewTID()
	f.bp.BeginTransaction(tid)

	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Split(line, sep)
		if skipLastField {
			fields = fields[:len(fields)-1]
		}
		lineNo++
		if lineNo == 1 && hasHeader {
			continue
		}
		if len(fields) != len(f.desc.Fields) {
			f.bp.AbortTransaction(tid)
			return newErr(MalformedDataError, "line %d: expected %d fields, got %d", lineNo, len(f.desc.Fields), len(fields))
		}
		values := make([]DBValue, len(fields))
		for i, raw := range fields {
			switch f.desc.Fields[i].Ftype {
			case IntType:
				v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
				if err != nil {
					f.bp.AbortTransaction(tid)
					return newErr(TypeMismatchError, "line %d: %q is not an int", lineNo, raw)
				}
				values[i] = IntField{Value: v}
			case StringType:
				if len(raw) > StringLength {
					raw = raw[:StringLength]
				}
				values[i] = StringField{Value: raw}
			}
		}
		t := &Tuple{Desc: *f.desc, Fields: values}
		if err := f.insertTuple(t, tid); err != nil {
			f.bp.AbortTransaction(tid)
			return err
		}
	}
	return f.bp.CommitTransaction(tid)
}

// HeapFileIterator walks every tuple of a HeapFile through the buffer pool,
// acquiring ReadOnly page locks. Open caches numPages so the scan is a
// snapshot of the file's page count as of open; a page appended by a
// concurrent insert after open is not picked up mid-scan.
type HeapFileIterator struct {
	file     *HeapFile
	tid      TransactionID
	pageNo   int
	numPages int
	pageIter func() (*Tuple, error)
	peeked   *Tuple
	opened   bool
}

// newHeapFileIterator returns a fresh, unopened HeapFileIterator for tid.
func (f *HeapFile) newHeapFileIterator(tid TransactionID) *HeapFileIterator {
	return &HeapFileIterator{file: f, tid: tid}
}

// Iterator satisfies the Operator/DBFile contract: it opens a
// HeapFileIterator and returns a closure over it that yields successive
// tuples and a final (nil, nil) once the file is exhausted.
func (f *HeapFile) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	it := f.newHeapFileIterator(tid)
	if err := it.Open(); err != nil {
		return nil, err
	}
	return func() (*Tuple, error) {
		has, err := it.HasNext()
		if err != nil {
			return nil, err
		}
		if !has {
			return nil, nil
		}
		return it.Next()
	}, nil
}

func (it *HeapFileIterator) Open() error {
	it.pageNo = 0
	it.numPages = it.file.NumPages()
	it.pageIter = nil
	it.peeked = nil
	it.opened = true
	return nil
}

func (it *HeapFileIterator) Close() error {
	it.opened = false
	it.pageIter = nil
	it.peeked = nil
	return nil
}

// Rewind resets the iterator to the start of the file.
func (it *HeapFileIterator) Rewind() error {
	return it.Open()
}

func (it *HeapFileIterator) fetchNext() (*Tuple, error) {
	for {
		if it.pageIter == nil {
			if it.pageNo >= it.numPages {
				return nil, nil
			}
			pid := PageID{TableID: it.file.tableID, PageNumber: it.pageNo}
			page, err := it.file.bp.GetPage(it.file, pid, it.tid, ReadOnly)
			if err != nil {
				return nil, err
			}
			it.pageIter = page.(*HeapPage).TupleIterator()
		}
		t, err := it.pageIter()
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
		it.pageIter = nil
		it.pageNo++
	}
}

// HasNext reports whether Next would succeed.
func (it *HeapFileIterator) HasNext() (bool, error) {
	if !it.opened {
		return false, newErr(DbError, "iterator is not open")
	}
	if it.peeked == nil {
		t, err := it.fetchNext()
		if err != nil {
			return false, err
		}
		it.peeked = t
	}
	return it.peeked != nil, nil
}

// Next returns the next tuple, or a DbError if the iterator is exhausted.
func (it *HeapFileIterator) Next() (*Tuple, error) {
	has, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, newErr(DbError, "no such element: heap file iterator exhausted")
	}
	t := it.peeked
	it.peeked = nil
	return t, nil
}

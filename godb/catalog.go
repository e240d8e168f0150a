package godb

import "sync"

// Catalog maps table ids and names to their HeapFiles. There is no
// process-wide singleton: a Catalog instance is threaded through
// constructors, so tests can build an isolated one per case.
type Catalog struct {
	mu      sync.Mutex
	byID    map[int]*HeapFile
	byName  map[string]int
	bufPool *BufferPool
}

// NewCatalog constructs an empty Catalog. Tables it registers share bp for
// all page access, so every SeqScan/InsertOp/DeleteOp built against those
// tables observes the same buffer pool's cache and locks.
func NewCatalog(bp *BufferPool) *Catalog {
	return &Catalog{
		byID:    make(map[int]*HeapFile),
		byName:  make(map[string]int),
		bufPool: bp,
	}
}

// AddTable registers the HeapFile backed by path under name, creating it if
// needed. Returns the table's id, a deterministic hash of the absolute
// backing path.
func (c *Catalog) AddTable(name, path string, desc *TupleDesc) (int, error) {
	hf, err := NewHeapFile(path, desc, c.bufPool)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[hf.TableID()] = hf
	c.byName[name] = hf.TableID()
	return hf.TableID(), nil
}

// GetDBFile resolves tableID to its registered HeapFile.
func (c *Catalog) GetDBFile(tableID int) (*HeapFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hf, ok := c.byID[tableID]
	if !ok {
		return nil, newErr(DbError, "no table registered with id %d", tableID)
	}
	return hf, nil
}

// GetTableID resolves a table name to the id AddTable assigned it.
func (c *Catalog) GetTableID(name string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.byName[name]
	if !ok {
		return 0, newErr(DbError, "no table registered with name %q", name)
	}
	return id, nil
}

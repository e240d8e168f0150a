package godb

// Operator is the pipeline-stage contract every query operator in this
// package satisfies. Descriptor reports the schema of the tuples an operator
// produces; Iterator returns a closure that yields successive tuples and a
// final (nil, nil) once exhausted. There is no separate open/close: calling
// Iterator constructs and opens a fresh pass. Aggregator additionally caches
// across repeat calls, so a second Iterator call replays the materialized
// result instead of redoing work.
type Operator interface {
	Descriptor() *TupleDesc
	Iterator(tid TransactionID) (func() (*Tuple, error), error)
}

// DBFile is the on-disk table contract InsertOp, DeleteOp, and SeqScan use
// to reach a table's tuples and pages without depending on
// HeapFile concretely. HeapFile implements it; readPage/flushPage
// additionally satisfy the buffer pool's own narrower dbFile interface
// (buffer_pool.go).
type DBFile interface {
	Operator
	insertTuple(t *Tuple, tid TransactionID) error
	deleteTuple(t *Tuple, tid TransactionID) error
	readPage(pageNo int) (Page, error)
	flushPage(p Page) error
	TableID() int
}

// drainChild consumes iter to exhaustion, applying visit to each tuple, and
// returns how many tuples were visited. The first error from either the
// iterator or visit stops the drain.
func drainChild(iter func() (*Tuple, error), visit func(*Tuple) error) (int64, error) {
	var count int64
	for {
		t, err := iter()
		if err != nil {
			return count, err
		}
		if t == nil {
			return count, nil
		}
		if err := visit(t); err != nil {
			return count, err
		}
		count++
	}
}

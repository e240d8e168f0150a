package godb

import "os"

// intTupleDesc returns a one-column INT schema, named "a".
func intTupleDesc() TupleDesc {
	return TupleDesc{Fields: []FieldType{{Fname: "a", Ftype: IntType}}}
}

// groupedTupleDesc returns a two-column (STRING "g", INT "a") schema, used
// by the grouped-aggregation tests.
func groupedTupleDesc() TupleDesc {
	return TupleDesc{Fields: []FieldType{
		{Fname: "g", Ftype: StringType},
		{Fname: "a", Ftype: IntType},
	}}
}

func intTuple(desc TupleDesc, v int64) *Tuple {
	return &Tuple{Desc: desc, Fields: []DBValue{IntField{v}}}
}

func groupedTuple(desc TupleDesc, g string, v int64) *Tuple {
	return &Tuple{Desc: desc, Fields: []DBValue{StringField{g}, IntField{v}}}
}

// sliceOp is a fixed, in-memory Operator: it plays the role of a child
// stream without needing a real heap file, for operator tests that only
// care about consuming a stream (Aggregator, Filter, Project, ...).
type sliceOp struct {
	desc   TupleDesc
	tuples []*Tuple
}

func newSliceOp(desc TupleDesc, tuples []*Tuple) *sliceOp {
	return &sliceOp{desc: desc, tuples: tuples}
}

func (s *sliceOp) Descriptor() *TupleDesc { return &s.desc }

func (s *sliceOp) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	pos := 0
	return func() (*Tuple, error) {
		if pos >= len(s.tuples) {
			return nil, nil
		}
		t := s.tuples[pos]
		pos++
		return t, nil
	}, nil
}

// tempHeapFile creates a fresh HeapFile backed by a temp file that is
// removed during test cleanup.
func tempHeapFile(t testingT, desc TupleDesc, bp *BufferPool) *HeapFile {
	f, err := os.CreateTemp("", "godb-heapfile-*.dat")
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	path := f.Name()
	f.Close()
	os.Remove(path) // HeapFile creates it lazily; start from nothing.
	t.Cleanup(func() { os.Remove(path) })

	hf, err := NewHeapFile(path, &desc, bp)
	if err != nil {
		t.Fatalf("NewHeapFile: %v", err)
	}
	return hf
}

// testingT is the subset of *testing.T this file's helpers need, so they
// can be shared with *testing.B if ever needed without importing testing
// here.
type testingT interface {
	Fatalf(format string, args ...any)
	Cleanup(func())
}

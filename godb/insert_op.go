package godb

// InsertOp drains its child operator into insertFile and reports how many
// tuples were inserted.
type InsertOp struct {
	insertFile DBFile
	child      Operator
	desc       *TupleDesc
}

// countDesc is the output schema shared by InsertOp and DeleteOp: a single
// integer column named "count".
func countDesc() *TupleDesc {
	return &TupleDesc{Fields: []FieldType{{Fname: "count", Ftype: IntType}}}
}

func countTuple(desc *TupleDesc, n int64) *Tuple {
	return &Tuple{Desc: *desc, Fields: []DBValue{IntField{n}}}
}

// NewInsertOp constructs an insert operator that inserts every tuple child
// produces into insertFile.
func NewInsertOp(insertFile DBFile, child Operator) *InsertOp {
	return &InsertOp{insertFile: insertFile, child: child, desc: countDesc()}
}

func (op *InsertOp) Descriptor() *TupleDesc {
	return op.desc
}

// Iterator drains the child on its first call, inserting each tuple into
// insertFile, then yields the count tuple once and (nil, nil) thereafter.
func (op *InsertOp) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	childIter, err := op.child.Iterator(tid)
	if err != nil {
		return nil, err
	}
	done := false
	return func() (*Tuple, error) {
		if done {
			return nil, nil
		}
		count, err := drainChild(childIter, func(t *Tuple) error {
			return op.insertFile.insertTuple(t, tid)
		})
		if err != nil {
			return nil, err
		}
		done = true
		return countTuple(op.desc, count), nil
	}, nil
}

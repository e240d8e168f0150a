package godb

// DeleteOp drains its child operator, deleting each tuple it produces from
// deleteFile, and reports how many were deleted.
type DeleteOp struct {
	deleteFile DBFile
	child      Operator
	desc       *TupleDesc
}

// NewDeleteOp constructs a delete operator that removes every tuple child
// produces from deleteFile.
func NewDeleteOp(deleteFile DBFile, child Operator) *DeleteOp {
	return &DeleteOp{deleteFile: deleteFile, child: child, desc: countDesc()}
}

func (op *DeleteOp) Descriptor() *TupleDesc {
	return op.desc
}

// Iterator drains the child on its first call, deleting each tuple from
// deleteFile, then yields the count tuple once and (nil, nil) thereafter.
func (op *DeleteOp) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
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
			return op.deleteFile.deleteTuple(t, tid)
		})
		if err != nil {
			return nil, err
		}
		done = true
		return countTuple(op.desc, count), nil
	}, nil
}

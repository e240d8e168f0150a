package godb

// LimitOp caps its child stream at the first N tuples, where N is the value
// of limitTups evaluated once per Iterator call.
type LimitOp struct {
	child     Operator
	limitTups Expr
}

// NewLimitOp constructs a limit operator returning at most lim tuples from
// child.
func NewLimitOp(lim Expr, child Operator) *LimitOp {
	return &LimitOp{
		child:     child,
		limitTups: lim,
	}
}

func (l *LimitOp) Descriptor() *TupleDesc {
	return l.child.Descriptor()
}

func (l *LimitOp) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	count := 0
	expr, err := l.limitTups.EvalExpr(nil)
	if err != nil {
		return nil, err
	}
	child_iter, err := l.child.Iterator(tid)
	if err != nil {
		return nil, err
	}

	return func() (*Tuple, error) {
		for {
			tuple, err := child_iter()
			if err != nil {
				return nil, err
			}
			if tuple == nil || count >= int(expr.(IntField).Value) {
				return nil, nil
			}
			count += 1
			return tuple, nil
		}
	}, nil
}

package godb

import (
	"sort"
)

// OrderBy sorts its child's tuples by one or more expressions, each with its
// own ascending/descending direction, materializing the full result before
// the first tuple is returned.
type OrderBy struct {
	orderBy        []Expr
	child          Operator
	ascending_list []bool
}

// NewOrderBy constructs an order-by operator sorting child's tuples by
// orderByFields in order, each direction given by the matching entry of
// ascending.
func NewOrderBy(orderByFields []Expr, child Operator, ascending []bool) (*OrderBy, error) {
	return &OrderBy{
		orderBy:        orderByFields,
		child:          child,
		ascending_list: ascending,
	}, nil

}

// Descriptor returns the child's schema: ordering changes row order, not the
// fields emitted.
func (o *OrderBy) Descriptor() *TupleDesc {
	return o.child.Descriptor()
}

func (o *OrderBy) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	child_iter, err := o.child.Iterator(tid)
	if err != nil {
		return nil, err
	}
	res := make([]*Tuple, 0)
	for {
		tuple, err := child_iter()
		if err != nil {
			return nil, err
		}
		if tuple == nil {
			break
		}
		res = append(res, tuple)
	}
	count := 0
	sort.Sort(sortTuples{orderBy: o.orderBy, ascending_list: o.ascending_list, all: res})

	return func() (*Tuple, error) {
		if count >= len(res) {
			return nil, nil
		}

		tuple := res[count]
		count += 1
		return tuple, nil
	}, nil
}

type sortTuples struct {
	orderBy        []Expr
	ascending_list []bool
	all            []*Tuple
}

func (s sortTuples) Less(a, b int) bool {
	tupleA := s.all[a]
	tupleB := s.all[b]

	for index := 0; index < len(s.orderBy); index++ {
		expr := s.orderBy[index]

		valA, _ := expr.EvalExpr(tupleA)
		valB, _ := expr.EvalExpr(tupleB)

		// If the values are equal, move to the next expression
		if valA.EvalPred(valB, OpEq) {
			continue
		}

		if s.ascending_list[index] {
			return valA.EvalPred(valB, OpLt) // Ascending order
		} else {
			return !valA.EvalPred(valB, OpLt) // Descending order
		}
	}

	return false // If all values are equal
}

func (s sortTuples) Swap(a, b int) {
	temp := s.all[a]
	s.all[a] = s.all[b]
	s.all[b] = temp
}

func (s sortTuples) Len() int {
	return len(s.all)
}

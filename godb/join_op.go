package godb

import (
	"sort"
)

// EqualityJoin equi-joins two operators' streams on leftField == rightField.
// Both sides are materialized with their join keys precomputed, sorted by
// key, and merged: each run of equal keys on the left is cross-producted
// with the matching run on the right. maxBufferSize is accepted for
// interface parity but the sort-merge strategy does not spill.
type EqualityJoin struct {
	leftField, rightField Expr

	left, right Operator

	maxBufferSize int
}

// NewJoin constructs an equality join of left and right on leftField/
// rightField, which must share a type.
func NewJoin(left Operator, leftField Expr, right Operator, rightField Expr, maxBufferSize int) (*EqualityJoin, error) {
	if leftField.GetExprType().Ftype != rightField.GetExprType().Ftype {
		return nil, newErr(IllegalArg, "join fields have mismatched types")
	}
	return &EqualityJoin{leftField, rightField, left, right, maxBufferSize}, nil
}

// Descriptor returns the union of the left and right operators' schemas.
func (j *EqualityJoin) Descriptor() *TupleDesc {
	return j.left.Descriptor().merge(j.right.Descriptor())
}

// keyedTuples is one materialized join side: each tuple paired with its
// evaluated join-key value, so the key expression runs once per tuple
// rather than once per comparison.
type keyedTuples struct {
	tuples []*Tuple
	keys   []DBValue
}

// materializeKeyed drains op, evaluating field over each tuple, and returns
// the side sorted by key.
func materializeKeyed(op Operator, field Expr, tid TransactionID) (*keyedTuples, error) {
	iter, err := op.Iterator(tid)
	if err != nil {
		return nil, err
	}
	side := &keyedTuples{}
	for {
		t, err := iter()
		if err != nil {
			return nil, err
		}
		if t == nil {
			break
		}
		key, err := field.EvalExpr(t)
		if err != nil {
			return nil, err
		}
		side.tuples = append(side.tuples, t)
		side.keys = append(side.keys, key)
	}
	sort.Sort(side)
	return side, nil
}

func (kt *keyedTuples) Len() int { return len(kt.tuples) }

func (kt *keyedTuples) Less(i, j int) bool {
	return orderValues(kt.keys[i], kt.keys[j]) == OrderedLessThan
}

func (kt *keyedTuples) Swap(i, j int) {
	kt.tuples[i], kt.tuples[j] = kt.tuples[j], kt.tuples[i]
	kt.keys[i], kt.keys[j] = kt.keys[j], kt.keys[i]
}

// runEnd returns the index just past the run of keys equal to keys[start].
func (kt *keyedTuples) runEnd(start int) int {
	end := start + 1
	for end < len(kt.keys) && orderValues(kt.keys[end], kt.keys[start]) == OrderedEqual {
		end++
	}
	return end
}

// orderValues orders two key values of the same type.
func orderValues(a, b DBValue) orderByState {
	switch {
	case a.EvalPred(b, OpLt):
		return OrderedLessThan
	case a.EvalPred(b, OpGt):
		return OrderedGreaterThan
	default:
		return OrderedEqual
	}
}

// Iterator materializes and sorts both child streams by their join key,
// merges them run by run, and yields the joined tuples.
func (j *EqualityJoin) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	left, err := materializeKeyed(j.left, j.leftField, tid)
	if err != nil {
		return nil, err
	}
	right, err := materializeKeyed(j.right, j.rightField, tid)
	if err != nil {
		return nil, err
	}

	var joined []*Tuple
	li, ri := 0, 0
	for li < left.Len() && ri < right.Len() {
		switch orderValues(left.keys[li], right.keys[ri]) {
		case OrderedLessThan:
			li++
		case OrderedGreaterThan:
			ri++
		default:
			lEnd, rEnd := left.runEnd(li), right.runEnd(ri)
			for l := li; l < lEnd; l++ {
				for r := ri; r < rEnd; r++ {
					joined = append(joined, joinTuples(left.tuples[l], right.tuples[r]))
				}
			}
			li, ri = lEnd, rEnd
		}
	}

	pos := 0
	return func() (*Tuple, error) {
		if pos >= len(joined) {
			return nil, nil
		}
		t := joined[pos]
		pos++
		return t, nil
	}, nil
}

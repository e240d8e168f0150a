package godb

import (
	"fmt"

	"golang.org/x/exp/maps"
)

// AggType identifies one of the supported aggregate operators.
type AggType int

const (
	CountAgg AggType = iota
	SumAgg
	AvgAgg
	MaxAgg
	MinAgg
)

func (t AggType) String() string {
	switch t {
	case CountAgg:
		return "COUNT"
	case SumAgg:
		return "SUM"
	case AvgAgg:
		return "AVG"
	case MaxAgg:
		return "MAX"
	case MinAgg:
		return "MIN"
	}
	return "?"
}

// noGroupKey is the sentinel map key used when there is no group-by column.
// It is never exposed to callers.
type noGroupKey struct{}

func (noGroupKey) EvalPred(DBValue, BoolOp) bool { return false }

// Aggregator consumes a child tuple stream, groups it by an optional key
// column, and applies one aggregate operator per group. It is a pure
// consumer of its child and never touches the buffer pool directly.
type Aggregator struct {
	child      Operator
	aggField   Expr
	groupField Expr // nil means no grouping
	op         AggType

	outDesc *TupleDesc

	results []*Tuple // materialized on first Iterator call; cached thereafter
}

// NewAggregator constructs an Aggregator over child. groupField may be nil
// when no grouping is wanted. Construction fails with UnsupportedOp if
// aggField is string-typed and op is not COUNT.
func NewAggregator(child Operator, aggField Expr, groupField Expr, op AggType) (*Aggregator, error) {
	if aggField.GetExprType().Ftype == StringType && op != CountAgg {
		return nil, newErr(UnsupportedOp, "aggregate op %v is not supported over a STRING column", op)
	}

	alias := fmt.Sprintf("%s(%s)", op, aggField.GetExprType().Fname)
	var outFields []FieldType
	if groupField != nil {
		outFields = append(outFields, groupField.GetExprType())
	}
	outFields = append(outFields, FieldType{Fname: alias, Ftype: IntType})

	return &Aggregator{
		child:      child,
		aggField:   aggField,
		groupField: groupField,
		op:         op,
		outDesc:    &TupleDesc{Fields: outFields},
	}, nil
}

// Descriptor returns the aggregate's output schema: a single int column
// when ungrouped, or [group column, int aggregate column] when grouped.
func (a *Aggregator) Descriptor() *TupleDesc {
	return a.outDesc
}

func (a *Aggregator) newState() (AggState, error) {
	var st AggState
	switch a.op {
	case CountAgg:
		st = &CountAggState{}
	case SumAgg:
		st = &SumAggState{}
	case AvgAgg:
		st = &AvgAggState{}
	case MaxAgg:
		st = &MaxAggState{}
	case MinAgg:
		st = &MinAggState{}
	default:
		return nil, newErr(UnsupportedOp, "unknown aggregate op %v", a.op)
	}
	if err := st.Init(a.outDesc.Fields[len(a.outDesc.Fields)-1].Fname, a.aggField); err != nil {
		return nil, err
	}
	return st, nil
}

// drain consumes the child stream exactly once, building one AggState per
// group key (or a single ungrouped AggState), then materializes the result
// tuples. Result order follows map iteration order and is not guaranteed.
func (a *Aggregator) drain(tid TransactionID) error {
	childIter, err := a.child.Iterator(tid)
	if err != nil {
		return err
	}

	groups := make(map[DBValue]AggState)
	if a.groupField == nil {
		// The ungrouped case must still produce a result row (e.g. COUNT of
		// an empty stream is 0, not "no rows"), so seed it up front instead
		// of lazily on first tuple.
		st, err := a.newState()
		if err != nil {
			return err
		}
		groups[noGroupKey{}] = st
	}

	for {
		t, err := childIter()
		if err != nil {
			return err
		}
		if t == nil {
			break
		}

		var key DBValue
		if a.groupField == nil {
			key = noGroupKey{}
		} else {
			key, err = a.groupField.EvalExpr(t)
			if err != nil {
				return err
			}
		}

		st, ok := groups[key]
		if !ok {
			st, err = a.newState()
			if err != nil {
				return err
			}
			groups[key] = st
		}
		st.AddTuple(t)
	}

	results := make([]*Tuple, 0, len(groups))
	for _, key := range maps.Keys(groups) {
		st := groups[key]
		agg := st.Finalize()
		var fields []DBValue
		if a.groupField != nil {
			fields = append(fields, key)
		}
		fields = append(fields, agg.Fields...)
		results = append(results, &Tuple{Desc: *a.outDesc, Fields: fields})
	}
	a.results = results
	return nil
}

// Iterator drains the child stream on its first call and returns a closure
// over the materialized results. A second call to Iterator replays the same
// materialized list without re-draining the child.
func (a *Aggregator) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	if a.results == nil {
		if err := a.drain(tid); err != nil {
			return nil, err
		}
	}
	results := a.results
	pos := 0
	return func() (*Tuple, error) {
		if pos >= len(results) {
			return nil, nil
		}
		t := results[pos]
		pos++
		return t, nil
	}, nil
}

package godb

// AggState is the per-group running accumulator an Aggregator maintains for
// each distinct group key. One concrete type per operator: COUNT, SUM, MIN,
// MAX, AVG.
type AggState interface {
	// Init prepares a fresh accumulator. expr extracts the aggregate
	// column's value from an input tuple; alias names the output column.
	Init(alias string, expr Expr) error

	// Copy returns an independent accumulator in the same state.
	Copy() AggState

	// AddTuple folds one input tuple into the running aggregate.
	AddTuple(t *Tuple)

	// Finalize returns the current aggregate value as a single-field tuple.
	Finalize() *Tuple

	// GetTupleDesc describes the tuple Finalize returns.
	GetTupleDesc() *TupleDesc
}

// CountAggState counts tuples seen, regardless of their value. It is the
// only aggregate that works over a string column.
type CountAggState struct {
	alias string
	expr  Expr
	count int64
}

func (a *CountAggState) Copy() AggState {
	return &CountAggState{a.alias, a.expr, a.count}
}

func (a *CountAggState) Init(alias string, expr Expr) error {
	a.alias = alias
	a.expr = expr
	a.count = 0
	return nil
}

func (a *CountAggState) AddTuple(t *Tuple) {
	a.count++
}

func (a *CountAggState) GetTupleDesc() *TupleDesc {
	return &TupleDesc{Fields: []FieldType{{Fname: a.alias, Ftype: IntType}}}
}

func (a *CountAggState) Finalize() *Tuple {
	return &Tuple{Desc: *a.GetTupleDesc(), Fields: []DBValue{IntField{a.count}}}
}

// SumAggState sums the aggregate column's integer values.
type SumAggState struct {
	alias string
	expr  Expr
	sum   int64
}

func (a *SumAggState) Copy() AggState {
	return &SumAggState{a.alias, a.expr, a.sum}
}

func (a *SumAggState) Init(alias string, expr Expr) error {
	a.alias = alias
	a.expr = expr
	a.sum = 0
	return nil
}

func (a *SumAggState) AddTuple(t *Tuple) {
	v, err := a.expr.EvalExpr(t)
	if err != nil {
		return
	}
	if iv, ok := v.(IntField); ok {
		a.sum += iv.Value
	}
}

func (a *SumAggState) GetTupleDesc() *TupleDesc {
	return &TupleDesc{Fields: []FieldType{{Fname: a.alias, Ftype: IntType}}}
}

func (a *SumAggState) Finalize() *Tuple {
	return &Tuple{Desc: *a.GetTupleDesc(), Fields: []DBValue{IntField{a.sum}}}
}

// AvgAggState maintains a running (sum, count) and finalizes to their
// integer quotient, truncated toward zero. Aggregator never constructs a
// group's AggState without immediately feeding it the tuple that created
// the group, so count is nonzero by the time Finalize runs for a grouped
// aggregate.
type AvgAggState struct {
	alias string
	expr  Expr
	sum   int64
	count int64
}

func (a *AvgAggState) Copy() AggState {
	return &AvgAggState{a.alias, a.expr, a.sum, a.count}
}

func (a *AvgAggState) Init(alias string, expr Expr) error {
	a.alias = alias
	a.expr = expr
	a.sum = 0
	a.count = 0
	return nil
}

func (a *AvgAggState) AddTuple(t *Tuple) {
	v, err := a.expr.EvalExpr(t)
	if err != nil {
		return
	}
	if iv, ok := v.(IntField); ok {
		a.sum += iv.Value
		a.count++
	}
}

func (a *AvgAggState) GetTupleDesc() *TupleDesc {
	return &TupleDesc{Fields: []FieldType{{Fname: a.alias, Ftype: IntType}}}
}

func (a *AvgAggState) Finalize() *Tuple {
	var avg int64
	if a.count != 0 {
		avg = a.sum / a.count // Go integer division already truncates toward zero.
	}
	return &Tuple{Desc: *a.GetTupleDesc(), Fields: []DBValue{IntField{avg}}}
}

// MaxAggState tracks the running maximum of the aggregate column.
//
// The running maximum seeds at 0, not -infinity: a group whose values are
// all negative reports 0 instead of its true maximum.
type MaxAggState struct {
	alias   string
	expr    Expr
	maximum int64
}

func (a *MaxAggState) Copy() AggState {
	return &MaxAggState{a.alias, a.expr, a.maximum}
}

func (a *MaxAggState) Init(alias string, expr Expr) error {
	a.alias = alias
	a.expr = expr
	a.maximum = 0
	return nil
}

func (a *MaxAggState) AddTuple(t *Tuple) {
	v, err := a.expr.EvalExpr(t)
	if err != nil {
		return
	}
	iv, ok := v.(IntField)
	if !ok {
		return
	}
	if iv.Value > a.maximum {
		a.maximum = iv.Value
	}
}

func (a *MaxAggState) GetTupleDesc() *TupleDesc {
	return &TupleDesc{Fields: []FieldType{{Fname: a.alias, Ftype: IntType}}}
}

func (a *MaxAggState) Finalize() *Tuple {
	return &Tuple{Desc: *a.GetTupleDesc(), Fields: []DBValue{IntField{a.maximum}}}
}

// MinAggState tracks the running minimum of the aggregate column, seeded
// from the first value seen.
type MinAggState struct {
	alias   string
	expr    Expr
	minimum int64
	seen    bool
}

func (a *MinAggState) Copy() AggState {
	return &MinAggState{a.alias, a.expr, a.minimum, a.seen}
}

func (a *MinAggState) Init(alias string, expr Expr) error {
	a.alias = alias
	a.expr = expr
	a.minimum = 0
	a.seen = false
	return nil
}

func (a *MinAggState) AddTuple(t *Tuple) {
	v, err := a.expr.EvalExpr(t)
	if err != nil {
		return
	}
	iv, ok := v.(IntField)
	if !ok {
		return
	}
	if !a.seen || iv.Value < a.minimum {
		a.minimum = iv.Value
		a.seen = true
	}
}

func (a *MinAggState) GetTupleDesc() *TupleDesc {
	return &TupleDesc{Fields: []FieldType{{Fname: a.alias, Ftype: IntType}}}
}

func (a *MinAggState) Finalize() *Tuple {
	return &Tuple{Desc: *a.GetTupleDesc(), Fields: []DBValue{IntField{a.minimum}}}
}

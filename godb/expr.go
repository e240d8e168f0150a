package godb

// BoolOp is a comparison predicate operator, used by Filter, OrderBy,
// EqualityJoin, and the histogram's estimator.
type BoolOp int

const (
	OpEq BoolOp = iota
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
)

// Expr extracts a DBValue from a Tuple. FieldExpr and ConstExpr are the two
// concrete cases (a named field, or a fixed value).
type Expr interface {
	EvalExpr(t *Tuple) (DBValue, error)
	GetExprType() FieldType
}

// FieldExpr evaluates to the named field of whatever tuple it is applied to.
type FieldExpr struct {
	Field FieldType
}

func (e *FieldExpr) EvalExpr(t *Tuple) (DBValue, error) {
	idx, err := t.Desc.fieldIndex(e.Field.Fname)
	if err != nil {
		return nil, err
	}
	return t.Fields[idx], nil
}

func (e *FieldExpr) GetExprType() FieldType {
	return e.Field
}

// ConstExpr evaluates to a fixed value regardless of the tuple supplied.
type ConstExpr struct {
	Value DBValue
	Ftype DBType
}

func (e *ConstExpr) EvalExpr(t *Tuple) (DBValue, error) {
	return e.Value, nil
}

func (e *ConstExpr) GetExprType() FieldType {
	return FieldType{Fname: "", Ftype: e.Ftype}
}

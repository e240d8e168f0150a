package godb

// This file defines the field/tuple value model: DBType, FieldType,
// TupleDesc, DBValue, and Tuple.

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// DBType is the type of a tuple field.
type DBType int

const (
	IntType DBType = iota
	StringType
)

func (t DBType) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	}
	return "unknown"
}

// StringLength is the fixed on-disk width of a STRING field, in bytes.
var StringLength = 32

// FieldType names a field's position in a TupleDesc.
type FieldType struct {
	Fname string
	Ftype DBType
}

// TupleDesc is the ordered schema of a Tuple.
type TupleDesc struct {
	Fields []FieldType
}

func (d1 *TupleDesc) equals(d2 *TupleDesc) bool {
	if len(d1.Fields) != len(d2.Fields) {
		return false
	}
	for i := range d1.Fields {
		if d1.Fields[i] != d2.Fields[i] {
			return false
		}
	}
	return true
}

func (td *TupleDesc) copy() *TupleDesc {
	fields := make([]FieldType, len(td.Fields))
	copy(fields, td.Fields)
	return &TupleDesc{Fields: fields}
}

// merge returns the concatenation of desc's fields followed by desc2's,
// as a new TupleDesc (does not mutate either input).
func (desc *TupleDesc) merge(desc2 *TupleDesc) *TupleDesc {
	fields := make([]FieldType, 0, len(desc.Fields)+len(desc2.Fields))
	fields = append(fields, desc.Fields...)
	fields = append(fields, desc2.Fields...)
	return &TupleDesc{Fields: fields}
}

func (td *TupleDesc) fieldIndex(name string) (int, error) {
	for i, f := range td.Fields {
		if f.Fname == name {
			return i, nil
		}
	}
	return -1, newErr(IllegalArg, "field %q not found", name)
}

// bytesPerTuple returns the fixed on-disk size of a tuple matching td.
func (td *TupleDesc) bytesPerTuple() int {
	size := 0
	for _, f := range td.Fields {
		switch f.Ftype {
		case IntType:
			size += 8
		case StringType:
			size += StringLength
		}
	}
	return size
}

// ================== DBValue / fields ======================

// DBValue is the interface implemented by concrete field values.
type DBValue interface {
	EvalPred(v DBValue, op BoolOp) bool
}

// IntField is an INT field value.
type IntField struct {
	Value int64
}

// StringField is a STRING field value.
type StringField struct {
	Value string
}

func (f IntField) EvalPred(v DBValue, op BoolOp) bool {
	other, ok := v.(IntField)
	if !ok {
		return false
	}
	return evalIntPred(f.Value, other.Value, op)
}

func (f StringField) EvalPred(v DBValue, op BoolOp) bool {
	other, ok := v.(StringField)
	if !ok {
		return false
	}
	return evalStringPred(f.Value, other.Value, op)
}

func evalIntPred(a, b int64, op BoolOp) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNeq:
		return a != b
	case OpLt:
		return a < b
	case OpLte:
		return a <= b
	case OpGt:
		return a > b
	case OpGte:
		return a >= b
	}
	return false
}

func evalStringPred(a, b string, op BoolOp) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNeq:
		return a != b
	case OpLt:
		return a < b
	case OpLte:
		return a <= b
	case OpGt:
		return a > b
	case OpGte:
		return a >= b
	}
	return false
}

// ================== Tuple ======================

// Tuple carries a value for every field in Desc, plus the RecordID it was
// read from (nil for a tuple that has not yet been placed on a page).
type Tuple struct {
	Desc   TupleDesc
	Fields []DBValue
	Rid    *RecordID
}

func (t *Tuple) equals(t2 *Tuple) bool {
	if t == nil || t2 == nil {
		return t == t2
	}
	if len(t.Fields) != len(t2.Fields) || !t.Desc.equals(&t2.Desc) {
		return false
	}
	for i := range t.Fields {
		if t.Fields[i] != t2.Fields[i] {
			return false
		}
	}
	return true
}

// joinTuples concatenates t1's fields with t2's, producing a merged TupleDesc.
func joinTuples(t1, t2 *Tuple) *Tuple {
	if t1 == nil {
		return t2
	}
	if t2 == nil {
		return t1
	}
	return &Tuple{
		Desc:   *t1.Desc.merge(&t2.Desc),
		Fields: append(append([]DBValue{}, t1.Fields...), t2.Fields...),
	}
}

// project returns a new Tuple containing just the named fields, in order.
func (t *Tuple) project(fields []FieldType) (*Tuple, error) {
	out := &Tuple{Desc: TupleDesc{}, Fields: []DBValue{}}
	for _, field := range fields {
		idx, err := t.Desc.fieldIndex(field.Fname)
		if err != nil {
			return nil, err
		}
		out.Fields = append(out.Fields, t.Fields[idx])
		out.Desc.Fields = append(out.Desc.Fields, t.Desc.Fields[idx])
	}
	return out, nil
}

type orderByState int

const (
	OrderedLessThan orderByState = iota
	OrderedEqual
	OrderedGreaterThan
)

func (t *Tuple) compareField(t2 *Tuple, field Expr) (orderByState, error) {
	v1, err := field.EvalExpr(t)
	if err != nil {
		return OrderedEqual, err
	}
	v2, err := field.EvalExpr(t2)
	if err != nil {
		return OrderedEqual, err
	}
	switch {
	case v1.EvalPred(v2, OpLt):
		return OrderedLessThan, nil
	case v1.EvalPred(v2, OpGt):
		return OrderedGreaterThan, nil
	default:
		return OrderedEqual, nil
	}
}

// tupleKey computes a hashable key for t's current field values, usable in a
// map as a dedup/grouping key.
func (t *Tuple) tupleKey() any {
	var buf bytes.Buffer
	_ = t.writeTo(&buf)
	return buf.String()
}

func writeStringField(b *bytes.Buffer, f StringField) error {
	padded := make([]byte, StringLength)
	copy(padded, []byte(f.Value))
	return binary.Write(b, binary.LittleEndian, padded)
}

func writeIntField(b *bytes.Buffer, f IntField) error {
	return binary.Write(b, binary.LittleEndian, f.Value)
}

func (t *Tuple) writeTo(b *bytes.Buffer) error {
	for _, field := range t.Fields {
		switch v := field.(type) {
		case StringField:
			if err := writeStringField(b, v); err != nil {
				return err
			}
		case IntField:
			if err := writeIntField(b, v); err != nil {
				return err
			}
		default:
			return newErr(IoFailure, "unsupported field type %T", field)
		}
	}
	return nil
}

func readStringField(b *bytes.Buffer) (StringField, error) {
	raw := make([]byte, StringLength)
	if err := binary.Read(b, binary.LittleEndian, raw); err != nil {
		return StringField{}, err
	}
	return StringField{Value: strings.TrimRight(string(raw), "\x00")}, nil
}

func readIntField(b *bytes.Buffer) (IntField, error) {
	var v int64
	if err := binary.Read(b, binary.LittleEndian, &v); err != nil {
		return IntField{}, err
	}
	return IntField{Value: v}, nil
}

func readTupleFrom(b *bytes.Buffer, desc *TupleDesc) (*Tuple, error) {
	t := &Tuple{Desc: *desc}
	for _, fd := range desc.Fields {
		switch fd.Ftype {
		case StringType:
			f, err := readStringField(b)
			if err != nil {
				return nil, err
			}
			t.Fields = append(t.Fields, f)
		default:
			f, err := readIntField(b)
			if err != nil {
				return nil, err
			}
			t.Fields = append(t.Fields, f)
		}
	}
	return t, nil
}

// PrettyPrintString renders t for debugging/CLI output.
func (t *Tuple) PrettyPrintString() string {
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		switch v := f.(type) {
		case IntField:
			parts[i] = strconv.FormatInt(v.Value, 10)
		case StringField:
			parts[i] = v.Value
		}
	}
	return strings.Join(parts, ", ")
}

func (d *TupleDesc) String() string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = fmt.Sprintf("%s(%s)", f.Fname, f.Ftype)
	}
	return strings.Join(names, ", ")
}

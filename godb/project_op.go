package godb

import (
	boom "github.com/tylertreat/BoomFilters"
)

// distinctBloomCapacity/FPRate size the probable-new check Project's
// DISTINCT path runs ahead of its exact dedup map (see Iterator below).
const (
	distinctBloomCapacity = 1 << 16
	distinctBloomFPRate   = 0.01
)

// Project evaluates selectFields against each child tuple and renames the
// results to outputNames, optionally deduplicating the output.
type Project struct {
	selectFields []Expr
	outputNames  []string
	child        Operator
	distinct     bool
}

// NewProjectOp constructs a projection operator over child. selectFields and
// outputNames must have the same length.
func NewProjectOp(selectFields []Expr, outputNames []string, distinct bool, child Operator) (Operator, error) {
	if len(selectFields) != len(outputNames) {
		return nil, newErr(IllegalArg, "selectFields and outputNames must have the same length")
	}

	return &Project{
		selectFields: selectFields,
		outputNames:  outputNames,
		distinct:     distinct,
		child:        child,
	}, nil
}

func (p *Project) Descriptor() *TupleDesc {
	proj_desc := &TupleDesc{
		Fields: make([]FieldType, len(p.selectFields)),
	}

	for i := 0; i < len(p.selectFields); i++ {
		get := p.selectFields[i].GetExprType()
		get.Fname = p.outputNames[i]
		proj_desc.Fields[i] = get
	}

	return proj_desc
}

// Project operator implementation: iterates the child, projecting out the
// selected fields from each tuple. When distinct is set, duplicates are
// dropped using a probable-new check ahead of an exact dedup map: a Bloom
// filter answers "definitely new" without a map probe, and only a possible
// (and possibly false) hit falls through to the exact seenKeys check, so a
// wide distinct scan pays the cheap negative case far more often than the
// full map lookup.
func (p *Project) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	child_iter, err := p.child.Iterator(tid)
	if err != nil {
		return nil, err
	}
	proj_desc := *p.Descriptor()
	var seenKeys map[string]struct{}
	var bloom *boom.BloomFilter
	if p.distinct {
		seenKeys = make(map[string]struct{})
		bloom = boom.NewBloomFilter(distinctBloomCapacity, distinctBloomFPRate)
	}

	return func() (*Tuple, error) {
		for {
			tuple, err := child_iter()
			if err != nil {
				return nil, err
			}
			if tuple == nil {
				return nil, nil
			}

			new := &Tuple{
				Desc:   proj_desc,
				Fields: make([]DBValue, len(p.selectFields)),
			}

			for i := 0; i < len(p.selectFields); i++ {
				field := p.selectFields[i]
				temp, err := field.EvalExpr(tuple)
				if err != nil {
					return nil, err
				}
				new.Fields[i] = temp
			}

			if p.distinct {
				tupleKey := new.tupleKey().(string)
				if bloom.TestAndAdd([]byte(tupleKey)) {
					// Bloom filter says "possibly seen" -- confirm against
					// the exact set before trusting it (it can false-positive).
					if _, exists := seenKeys[tupleKey]; exists {
						continue
					}
				}
				seenKeys[tupleKey] = struct{}{}
			}

			return new, nil
		}
	}, nil
}

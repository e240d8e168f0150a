package godb

import "os"

// SumIntField loads a comma-delimited, headered CSV file into a scratch
// HeapFile matching td and sums its sumField column. Used by callers that
// just need a one-shot aggregate over flat CSV data without standing up a
// Catalog-backed table.
func SumIntField(bp *BufferPool, fileName string, td TupleDesc, sumField string) (int, error) {
	index, err := td.fieldIndex(sumField)
	if err != nil {
		return 0, err
	}

	scratch, err := os.CreateTemp("", "godb-csvsum-*.dat")
	if err != nil {
		return 0, err
	}
	scratchPath := scratch.Name()
	scratch.Close()
	os.Remove(scratchPath)
	defer os.Remove(scratchPath)

	heapFile, err := NewHeapFile(scratchPath, &td, bp)
	if err != nil {
		return 0, err
	}

	file, err := os.Open(fileName)
	if err != nil {
		return 0, err
	}
	defer file.Close()
	if err := heapFile.LoadFromCSV(file, true, ",", false); err != nil {
		return 0, err
	}

	tid := NewTID()
	if err := bp.BeginTransaction(tid); err != nil {
		return 0, err
	}
	iterator, err := heapFile.Iterator(tid)
	if err != nil {
		bp.AbortTransaction(tid)
		return 0, err
	}

	sum := 0
	for {
		t, err := iterator()
		if err != nil {
			bp.AbortTransaction(tid)
			return 0, err
		}
		if t == nil {
			return sum, bp.CommitTransaction(tid)
		}
		valToAdd, ok := t.Fields[index].(IntField)
		if !ok {
			bp.AbortTransaction(tid)
			return 0, newErr(TypeMismatchError, "field %q is not an int", sumField)
		}
		sum += int(valToAdd.Value)
	}
}

package godb

// SeqScan is the minimal source operator a query pipeline needs: it wraps a
// DBFile's tuple iterator behind the Operator contract so it composes with
// Filter/Project/Aggregator like any other pipeline stage.
type SeqScan struct {
	file  DBFile
	alias string
}

// NewSeqScan constructs a sequential scan over file, labeled alias (used by
// callers that need to disambiguate which table a field came from after a
// join; this package does not itself qualify field names with it).
func NewSeqScan(file DBFile, alias string) *SeqScan {
	return &SeqScan{file: file, alias: alias}
}

func (s *SeqScan) Alias() string { return s.alias }

func (s *SeqScan) Descriptor() *TupleDesc {
	return s.file.Descriptor()
}

func (s *SeqScan) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	return s.file.Iterator(tid)
}

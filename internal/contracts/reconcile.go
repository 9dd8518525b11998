package contracts

// Columns appended to unmatched rows
const (
	SourceColumn    = "source"
	DuplicateColumn = "is_duplicate"
)

// ReconciliationResult is the outcome of comparing two datasets on a key
type ReconciliationResult struct {
	Matching    *Dataset `json:"matching"`     // key columns only
	NonMatching *Dataset `json:"non_matching"` // key columns + source + is_duplicate
}

// HasDiscrepancy reports whether any row was found on one side only
func (r *ReconciliationResult) HasDiscrepancy() bool {
	return r != nil && !r.NonMatching.Empty()
}

// SourceLabel is the provenance tag of an unmatched row
func SourceLabel(datasetName string) string {
	return "found in " + datasetName
}

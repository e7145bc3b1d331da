package reconcile

// ReconcileResult represents the reconciliation output for a single related object.
// It contains presence flags for each source and any detected mismatches.
type ReconcileResult struct {
	// ID is the object identifier ("Class|uuid").
	ID string `json:"id"`

	// SnapshotPresent indicates whether the object is in the stored snapshot.
	SnapshotPresent bool `json:"snapshot_present"`

	// LivePresent indicates whether the object is in the freshly loaded data.
	LivePresent bool `json:"live_present"`

	// Mismatch contains descriptions of differences between both sources,
	// e.g. "position: snapshot=0 live=2".
	Mismatch []string `json:"mismatch"`
}

// ReconcileReport contains the per-object results of one end-point.
type ReconcileReport struct {
	// EndPoint is the virtual end-point both sources describe.
	EndPoint string `json:"endpoint"`

	// Results contains one entry per object in either source, ordered by ID.
	Results []ReconcileResult `json:"results"`

	// Summary provides aggregate counts.
	Summary ReportSummary `json:"summary"`
}

// ReportSummary provides aggregate statistics for a reconcile report.
type ReportSummary struct {
	// TotalItems is the number of unique objects.
	TotalItems int `json:"total_items"`

	// MissingSnapshot counts objects that appeared since the snapshot.
	MissingSnapshot int `json:"missing_snapshot"`

	// MissingLive counts objects that disappeared since the snapshot.
	MissingLive int `json:"missing_live"`

	// Mismatches counts objects present in both sources with differences.
	Mismatches int `json:"mismatches"`
}

// InSync reports whether both sources agree.
func (s ReportSummary) InSync() bool {
	return s.MissingSnapshot == 0 && s.MissingLive == 0 && s.Mismatches == 0
}

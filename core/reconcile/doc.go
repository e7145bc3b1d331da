// Package reconcile compares two views of the items of one virtual relation end-point:
// the items recorded in a stored snapshot and the items loaded from the database now.
//
// The engine builds an index per source, computes the union of keys and reports for
// each object whether it is present in each source and whether its position changed.
//
// # Usage Example
//
//	report := reconcile.Reconcile(id, snapshotItems, liveItems)
//	if !report.Summary.InSync() {
//	    log.Warn("relation drifted", zap.Int("missing_live", report.Summary.MissingLive))
//	}
package reconcile

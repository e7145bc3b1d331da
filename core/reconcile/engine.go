package reconcile

import (
	"fmt"
	"sort"

	"relation-manager/core/endpoint"
)

// Reconcile compares the items of an end-point recorded in a snapshot with the items
// loaded now. Both lists are in data order.
func Reconcile(id endpoint.EndPointID, snapshot, live []endpoint.ObjectID) ReconcileReport {
	snapshotIndex := buildIndex(snapshot)
	liveIndex := buildIndex(live)

	// Build union of all keys
	union := make(map[endpoint.ObjectID]struct{}, len(snapshotIndex)+len(liveIndex))
	for key := range snapshotIndex {
		union[key] = struct{}{}
	}
	for key := range liveIndex {
		union[key] = struct{}{}
	}

	report := ReconcileReport{
		EndPoint: id.String(),
		Results:  make([]ReconcileResult, 0, len(union)),
	}
	for key := range union {
		result := buildResult(key, snapshotIndex, liveIndex)
		report.Results = append(report.Results, result)

		switch {
		case !result.SnapshotPresent:
			report.Summary.MissingSnapshot++
		case !result.LivePresent:
			report.Summary.MissingLive++
		case len(result.Mismatch) > 0:
			report.Summary.Mismatches++
		}
	}
	report.Summary.TotalItems = len(report.Results)

	// Sort results by key for deterministic output
	sort.Slice(report.Results, func(i, j int) bool {
		return report.Results[i].ID < report.Results[j].ID
	})

	return report
}

// buildIndex maps each item to its position.
func buildIndex(items []endpoint.ObjectID) map[endpoint.ObjectID]int {
	index := make(map[endpoint.ObjectID]int, len(items))
	for i, item := range items {
		index[item] = i
	}
	return index
}

// buildResult creates a ReconcileResult for a single key.
func buildResult(key endpoint.ObjectID, snapshotIndex, liveIndex map[endpoint.ObjectID]int) ReconcileResult {
	snapshotPos, snapshotPresent := snapshotIndex[key]
	livePos, livePresent := liveIndex[key]

	result := ReconcileResult{
		ID:              key.String(),
		SnapshotPresent: snapshotPresent,
		LivePresent:     livePresent,
		Mismatch:        []string{},
	}

	if snapshotPresent && livePresent && snapshotPos != livePos {
		result.Mismatch = append(result.Mismatch, fmt.Sprintf("position: snapshot=%d live=%d", snapshotPos, livePos))
	}

	return result
}

package relations

import (
	"context"

	"relation-manager/core/endpoint"
)

// Report describes one virtual end-point as seen by a transaction.
type Report struct {
	// Relation is the relation name.
	Relation string `json:"relation"`
	// EndPoint is the virtual end-point identity.
	EndPoint string `json:"endpoint"`
	// Cardinality is "one" or "many".
	Cardinality string `json:"cardinality"`
	// Complete indicates whether the data is loaded.
	Complete bool `json:"complete"`
	// Synchronized is the end-point sync state.
	Synchronized string `json:"synchronized"`
	// Changed indicates whether the current data differs from the original data.
	Changed bool `json:"changed"`
	// Items is the current data.
	Items []string `json:"items"`
	// OriginalItems is the committed data.
	OriginalItems []string `json:"original_items"`
	// ItemsWithoutEndPoint are loaded items no real end-point backs.
	ItemsWithoutEndPoint []string `json:"items_without_endpoint"`
	// Unsynchronized are real end-points that reference the owner but are not in the data.
	Unsynchronized []string `json:"unsynchronized"`
	// Policy is the sync policy the commit ran under.
	Policy string `json:"policy,omitempty"`
	// CommitError is set when the commit was rejected.
	CommitError string `json:"commit_error,omitempty"`
	// Summary provides aggregate counts.
	Summary Summary `json:"summary"`
}

// Summary provides aggregate counts for a report.
type Summary struct {
	Items                int `json:"items"`
	ItemsWithoutEndPoint int `json:"items_without_endpoint"`
	Unsynchronized       int `json:"unsynchronized"`
}

// collectionItems and objectItems flatten end-point data into a list.
func collectionItems(items []endpoint.ObjectID) []endpoint.ObjectID { return items }

func objectItems(item endpoint.ObjectID) []endpoint.ObjectID {
	if item.IsNil() {
		return nil
	}
	return []endpoint.ObjectID{item}
}

// describe builds the report of ep without loading it.
func describe[T any](ctx context.Context, def endpoint.RelationDefinition, ep *endpoint.VirtualEndPoint[T], items func(T) []endpoint.ObjectID) (*Report, []endpoint.ObjectID, error) {
	report := &Report{
		Relation:             def.Name,
		EndPoint:             ep.ID().String(),
		Cardinality:          def.Cardinality.String(),
		Complete:             ep.IsDataComplete(),
		Synchronized:         ep.IsSynchronized().String(),
		Items:                []string{},
		OriginalItems:        []string{},
		ItemsWithoutEndPoint: objectStrings(ep.ItemsWithoutEndPoint()),
		Unsynchronized:       []string{},
	}
	for _, r := range ep.UnsynchronizedOppositeEndPoints() {
		report.Unsynchronized = append(report.Unsynchronized, r.ObjectID().String())
	}

	var current []endpoint.ObjectID
	if report.Complete {
		// Data and OriginalData do not load a complete end-point.
		data, err := ep.Data(ctx)
		if err != nil {
			return nil, nil, err
		}
		original, err := ep.OriginalData(ctx)
		if err != nil {
			return nil, nil, err
		}
		current = items(data)
		report.Items = objectStrings(current)
		report.OriginalItems = objectStrings(items(original))
		report.Changed = ep.HasChanged()
	}

	report.Summary = Summary{
		Items:                len(report.Items),
		ItemsWithoutEndPoint: len(report.ItemsWithoutEndPoint),
		Unsynchronized:       len(report.Unsynchronized),
	}
	return report, current, nil
}

func objectStrings(ids []endpoint.ObjectID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

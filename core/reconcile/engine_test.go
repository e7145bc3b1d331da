package reconcile

import (
	"testing"

	"relation-manager/core/endpoint"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(t *testing.T) endpoint.ObjectID {
	t.Helper()
	id, err := endpoint.NewObjectID("OrderItem", uuid.New())
	require.NoError(t, err)
	return id
}

func TestReconcile(t *testing.T) {
	owner, err := endpoint.NewObjectID("Order", uuid.New())
	require.NoError(t, err)
	id := endpoint.EndPointID{ObjectID: owner, Relation: "Order.Items", Direction: endpoint.DirectionVirtual}
	a, b, c, d := item(t), item(t), item(t), item(t)

	tests := []struct {
		name     string
		snapshot []endpoint.ObjectID
		live     []endpoint.ObjectID
		want     ReportSummary
	}{
		{
			name:     "In Sync",
			snapshot: []endpoint.ObjectID{a, b},
			live:     []endpoint.ObjectID{a, b},
			want:     ReportSummary{TotalItems: 2},
		},
		{
			name:     "Added And Removed",
			snapshot: []endpoint.ObjectID{a, b},
			live:     []endpoint.ObjectID{a, c},
			want:     ReportSummary{TotalItems: 3, MissingSnapshot: 1, MissingLive: 1},
		},
		{
			name:     "Reordered",
			snapshot: []endpoint.ObjectID{a, b, d},
			live:     []endpoint.ObjectID{b, a, d},
			want:     ReportSummary{TotalItems: 3, Mismatches: 2},
		},
		{
			name: "Empty",
			want: ReportSummary{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Reconcile(id, tt.snapshot, tt.live)
			assert.Equal(t, id.String(), report.EndPoint)
			assert.Equal(t, tt.want, report.Summary)
			assert.Equal(t, tt.want == ReportSummary{TotalItems: tt.want.TotalItems}, report.Summary.InSync())
		})
	}
}

func TestReconcile_Results(t *testing.T) {
	owner, err := endpoint.NewObjectID("Order", uuid.New())
	require.NoError(t, err)
	id := endpoint.EndPointID{ObjectID: owner, Relation: "Order.Items", Direction: endpoint.DirectionVirtual}
	a, b := item(t), item(t)

	report := Reconcile(id, []endpoint.ObjectID{a, b}, []endpoint.ObjectID{b})
	require.Len(t, report.Results, 2)

	byID := map[string]ReconcileResult{}
	for _, r := range report.Results {
		byID[r.ID] = r
	}
	assert.True(t, report.Results[0].ID < report.Results[1].ID)
	assert.Equal(t, ReconcileResult{ID: a.String(), SnapshotPresent: true, Mismatch: []string{}}, byID[a.String()])
	assert.Equal(t, []string{"position: snapshot=1 live=0"}, byID[b.String()].Mismatch)
}

package relations

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"relation-manager/core/endpoint"
	"relation-manager/core/storage"
	"relation-manager/core/storage/mocks"
	"relation-manager/core/transaction"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	orderItems = endpoint.RelationDefinition{Name: "Order.Items", RealClass: "OrderItem", VirtualClass: "Order", Cardinality: endpoint.CardinalityMany}
	profile    = endpoint.RelationDefinition{Name: "Customer.Profile", RealClass: "Profile", VirtualClass: "Customer", Cardinality: endpoint.CardinalityOne}
)

type fakeSource struct {
	mu      sync.Mutex
	related map[endpoint.ObjectID][]endpoint.ObjectID
	err     error
}

func (s *fakeSource) LoadRelatedObjects(ctx context.Context, relation endpoint.RelationDefinition, owner endpoint.ObjectID) ([]endpoint.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]endpoint.ObjectID(nil), s.related[owner]...), nil
}

func (s *fakeSource) set(owner endpoint.ObjectID, items ...endpoint.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.related[owner] = items
}

func object(class string) endpoint.ObjectID {
	return endpoint.ObjectID{ClassID: class, Value: uuid.New()}
}

func newSource() *fakeSource {
	return &fakeSource{related: map[endpoint.ObjectID][]endpoint.ObjectID{}}
}

// memoryClient wires a mocks.Client to an in-memory object map.
func memoryClient(t *testing.T) *mocks.Client {
	t.Helper()
	objects := map[string][]byte{}
	client := new(mocks.Client)
	client.On("PutObject", mock.Anything, "snapshots", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			data, err := io.ReadAll(args.Get(3).(io.Reader))
			require.NoError(t, err)
			objects[args.String(2)] = data
		}).
		Return(minio.UploadInfo{}, nil)
	getCall := client.On("GetObject", mock.Anything, "snapshots", mock.Anything, mock.Anything)
	getCall.Run(func(args mock.Arguments) {
		data, ok := objects[args.String(2)]
		if !ok {
			getCall.ReturnArguments = mock.Arguments{nil, minio.ErrorResponse{Code: "NoSuchKey"}}
			return
		}
		getCall.ReturnArguments = mock.Arguments{io.NopCloser(bytes.NewReader(data)), nil}
	})
	client.On("RemoveObject", mock.Anything, "snapshots", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			delete(objects, args.String(2))
		}).
		Return(nil)
	return client
}

func newTestService(t *testing.T, source *fakeSource, policy transaction.SyncPolicy, withStore bool) *Service {
	t.Helper()
	var store *storage.SnapshotStore
	if withStore {
		store = storage.NewSnapshotStore(memoryClient(t), "snapshots")
	}
	return NewService(source, []endpoint.RelationDefinition{orderItems, profile}, policy, store, zap.NewNop())
}

func TestService_Check(t *testing.T) {
	source := newSource()
	order := object("Order")
	a, b := object("OrderItem"), object("OrderItem")
	source.set(order, a, b)
	svc := newTestService(t, source, transaction.SyncPolicyTolerate, false)

	report, err := svc.Check(context.Background(), CheckRequest{Relation: orderItems.Name, Owner: order})
	require.NoError(t, err)

	assert.True(t, report.Complete)
	assert.Equal(t, "many", report.Cardinality)
	assert.Equal(t, "synchronized", report.Synchronized)
	assert.Equal(t, []string{a.String(), b.String()}, report.Items)
	assert.Equal(t, report.Items, report.OriginalItems)
	assert.Empty(t, report.Unsynchronized)
	assert.Empty(t, report.CommitError)
	assert.Equal(t, "tolerate", report.Policy)
	assert.Equal(t, Summary{Items: 2}, report.Summary)
}

func TestService_CheckClaims(t *testing.T) {
	source := newSource()
	order := object("Order")
	a, claimed := object("OrderItem"), object("OrderItem")
	source.set(order, a)

	t.Run("Rejected", func(t *testing.T) {
		svc := newTestService(t, source, transaction.SyncPolicyReject, false)
		report, err := svc.Check(context.Background(), CheckRequest{Relation: orderItems.Name, Owner: order, Claimed: []endpoint.ObjectID{claimed}})
		require.NoError(t, err)

		assert.Equal(t, []string{a.String()}, report.Items)
		assert.Equal(t, []string{claimed.String()}, report.Unsynchronized)
		assert.Contains(t, report.CommitError, "unsynchronized")
	})

	t.Run("Synchronized", func(t *testing.T) {
		svc := newTestService(t, source, transaction.SyncPolicyReject, false)
		report, err := svc.Check(context.Background(), CheckRequest{
			Relation:    orderItems.Name,
			Owner:       order,
			Claimed:     []endpoint.ObjectID{claimed},
			Synchronize: true,
		})
		require.NoError(t, err)

		assert.Equal(t, []string{a.String(), claimed.String()}, report.Items)
		assert.Empty(t, report.Unsynchronized)
		assert.Empty(t, report.CommitError)
	})

	t.Run("Wrong Class", func(t *testing.T) {
		svc := newTestService(t, source, transaction.SyncPolicyReject, false)
		_, err := svc.Check(context.Background(), CheckRequest{Relation: orderItems.Name, Owner: order, Claimed: []endpoint.ObjectID{object("Profile")}})
		assert.ErrorIs(t, err, endpoint.ErrInvalidArgument)
	})
}

func TestService_CheckObject(t *testing.T) {
	source := newSource()
	customer := object("Customer")
	p := object("Profile")
	source.set(customer, p)
	svc := newTestService(t, source, transaction.SyncPolicyTolerate, false)

	report, err := svc.Check(context.Background(), CheckRequest{Relation: profile.Name, Owner: customer})
	require.NoError(t, err)
	assert.Equal(t, "one", report.Cardinality)
	assert.Equal(t, []string{p.String()}, report.Items)

	empty, err := svc.Check(context.Background(), CheckRequest{Relation: profile.Name, Owner: object("Customer")})
	require.NoError(t, err)
	assert.Empty(t, empty.Items)
}

func TestService_CheckErrors(t *testing.T) {
	source := newSource()
	svc := newTestService(t, source, transaction.SyncPolicyTolerate, false)

	_, err := svc.Check(context.Background(), CheckRequest{Relation: "Nope", Owner: object("Order")})
	assert.ErrorIs(t, err, transaction.ErrUnknownRelation)

	_, err = svc.Check(context.Background(), CheckRequest{Relation: orderItems.Name, Owner: object("Customer")})
	assert.ErrorIs(t, err, endpoint.ErrInvalidArgument)

	source.err = errors.New("database down")
	_, err = svc.Check(context.Background(), CheckRequest{Relation: orderItems.Name, Owner: object("Order")})
	assert.ErrorContains(t, err, "database down")
}

func TestService_CheckMany(t *testing.T) {
	source := newSource()
	owners := make([]endpoint.ObjectID, 6)
	for i := range owners {
		owners[i] = object("Order")
		source.set(owners[i], object("OrderItem"))
	}
	svc := newTestService(t, source, transaction.SyncPolicyTolerate, false)

	reports, err := svc.CheckMany(context.Background(), orderItems.Name, owners)
	require.NoError(t, err)
	require.Len(t, reports, len(owners))
	for i, report := range reports {
		assert.Equal(t, orderItems.EndPointID(owners[i], endpoint.DirectionVirtual).String(), report.EndPoint)
	}

	_, err = svc.CheckMany(context.Background(), "Nope", owners)
	assert.ErrorIs(t, err, transaction.ErrUnknownRelation)
}

func TestService_SnapshotRestoreDrift(t *testing.T) {
	source := newSource()
	order := object("Order")
	a, b, c := object("OrderItem"), object("OrderItem"), object("OrderItem")
	source.set(order, a, b)
	svc := newTestService(t, source, transaction.SyncPolicyTolerate, true)
	ctx := context.Background()

	stored, key, err := svc.Snapshot(ctx, orderItems.Name, order)
	require.NoError(t, err)
	assert.Equal(t, SnapshotKey(orderItems.EndPointID(order, endpoint.DirectionVirtual)), key)
	assert.Equal(t, []string{a.String(), b.String()}, stored.Items)

	// The database changes after the snapshot.
	source.set(order, b, c)

	restored, err := svc.Restore(ctx, orderItems.Name, order)
	require.NoError(t, err)
	assert.Equal(t, stored.Items, restored.Items)
	assert.True(t, restored.Complete)

	drift, err := svc.Drift(ctx, orderItems.Name, order)
	require.NoError(t, err)
	assert.Equal(t, 3, drift.Summary.TotalItems)
	assert.Equal(t, 1, drift.Summary.MissingSnapshot)
	assert.Equal(t, 1, drift.Summary.MissingLive)
	assert.Equal(t, 1, drift.Summary.Mismatches)

	require.NoError(t, svc.DeleteSnapshot(ctx, orderItems.Name, order))
	_, err = svc.Restore(ctx, orderItems.Name, order)
	assert.ErrorIs(t, err, storage.ErrSnapshotNotFound)
}

func TestService_SnapshotObject(t *testing.T) {
	source := newSource()
	customer := object("Customer")
	p := object("Profile")
	source.set(customer, p)
	svc := newTestService(t, source, transaction.SyncPolicyTolerate, true)

	_, _, err := svc.Snapshot(context.Background(), profile.Name, customer)
	require.NoError(t, err)
	restored, err := svc.Restore(context.Background(), profile.Name, customer)
	require.NoError(t, err)
	assert.Equal(t, []string{p.String()}, restored.Items)
}

func TestService_SnapshotsDisabled(t *testing.T) {
	svc := newTestService(t, newSource(), transaction.SyncPolicyTolerate, false)
	ctx := context.Background()
	order := object("Order")

	_, _, err := svc.Snapshot(ctx, orderItems.Name, order)
	assert.ErrorIs(t, err, ErrSnapshotsDisabled)
	_, err = svc.Restore(ctx, orderItems.Name, order)
	assert.ErrorIs(t, err, ErrSnapshotsDisabled)
	_, err = svc.Drift(ctx, orderItems.Name, order)
	assert.ErrorIs(t, err, ErrSnapshotsDisabled)
	assert.ErrorIs(t, svc.DeleteSnapshot(ctx, orderItems.Name, order), ErrSnapshotsDisabled)
	_, err = svc.PurgeSnapshots(ctx, orderItems.Name)
	assert.ErrorIs(t, err, ErrSnapshotsDisabled)
}

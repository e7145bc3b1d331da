package endpoint

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testRelation = "Order.Items"

// fakeLoader marks the end-point complete with items, the way a store-backed loader
// does after running its query.
type fakeLoader[T any] struct {
	items []ObjectID
	err   error
	skip  bool
	calls int
}

func (l *fakeLoader[T]) LoadAndGetNewState(ctx context.Context, ep *VirtualEndPoint[T]) (*CompleteState[T], error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	if l.skip {
		return NewCompleteState[T](nil, nil, nil, nil), nil
	}
	if err := ep.MarkDataComplete(l.items); err != nil {
		return nil, err
	}
	complete, _ := ep.State().(*CompleteState[T])
	return complete, nil
}

type fakeProvider struct {
	endPoints map[EndPointID]*RealEndPoint
}

func newFakeProvider(endPoints ...*RealEndPoint) *fakeProvider {
	p := &fakeProvider{endPoints: make(map[EndPointID]*RealEndPoint)}
	for _, r := range endPoints {
		p.endPoints[r.ID()] = r
	}
	return p
}

func (p *fakeProvider) Resolve(id EndPointID) (*RealEndPoint, error) {
	r, ok := p.endPoints[id]
	if !ok {
		return nil, fmt.Errorf("no real end-point %s", id)
	}
	return r, nil
}

type recordingSink struct {
	incomplete []EndPointID
	complete   []EndPointID
}

func (s *recordingSink) VirtualEndPointBecomingIncomplete(id EndPointID) {
	s.incomplete = append(s.incomplete, id)
}

func (s *recordingSink) VirtualEndPointDataComplete(id EndPointID) {
	s.complete = append(s.complete, id)
}

func newObject(class string) ObjectID {
	return ObjectID{ClassID: class, Value: uuid.New()}
}

func ownerID() EndPointID {
	return EndPointID{ObjectID: newObject("Order"), Relation: testRelation, Direction: DirectionVirtual}
}

// realFor creates the real end-point of item pointing at the virtual end-point owner.
func realFor(t *testing.T, owner EndPointID, item ObjectID) *RealEndPoint {
	t.Helper()
	r, err := NewRealEndPoint(EndPointID{ObjectID: item, Relation: owner.Relation, Direction: DirectionReal}, owner.ObjectID)
	require.NoError(t, err)
	return r
}

func newCollection(t *testing.T, id EndPointID, loader *fakeLoader[[]ObjectID], sink EventSink) *CollectionEndPoint {
	t.Helper()
	ep, err := NewCollectionEndPoint(id, Dependencies[[]ObjectID]{
		Loader:    loader,
		Provider:  newFakeProvider(),
		EventSink: sink,
	})
	require.NoError(t, err)
	return ep
}

func completeState[T any](t *testing.T, ep *VirtualEndPoint[T]) *CompleteState[T] {
	t.Helper()
	s, ok := ep.State().(*CompleteState[T])
	require.True(t, ok, "expected a complete state, got %T", ep.State())
	return s
}

package endpoint

import (
	"context"
	"testing"

	"relation-manager/core/flatten"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func roundTrip[T any](t *testing.T, state LoadState[T], handles *flatten.HandleTable, logger *zap.Logger) LoadState[T] {
	t.Helper()
	w := flatten.NewWriter(handles)
	require.NoError(t, SerializeState[T](state, w))
	data, err := w.Bytes()
	require.NoError(t, err)

	r, err := flatten.NewReader(data, handles)
	require.NoError(t, err)
	restored, err := DeserializeState[T](r, logger)
	require.NoError(t, err)
	assert.True(t, r.Done())
	return restored
}

func TestSerializeState_Incomplete(t *testing.T) {
	logger := zap.NewNop()
	id := ownerID()
	loader := &fakeLoader[[]ObjectID]{}
	handles := flatten.NewHandleTable()
	handles.Register("loader", loader)

	state := NewIncompleteState[[]ObjectID](id, loader, logger)
	require.NoError(t, state.RegisterOriginalOppositeEndPoint(realFor(t, id, newObject("OrderItem"))))
	require.NoError(t, state.RegisterOriginalOppositeEndPoint(realFor(t, id, newObject("OrderItem"))))

	restored := roundTrip[[]ObjectID](t, state, handles, logger)
	assert.Equal(t, state, restored)
}

func TestSerializeState_CompleteCollection(t *testing.T) {
	logger := zap.NewNop()
	id := ownerID()
	x, y, z, w := newObject("OrderItem"), newObject("OrderItem"), newObject("OrderItem"), newObject("OrderItem")
	loader := &fakeLoader[[]ObjectID]{}
	provider := newFakeProvider()
	sink := &recordingSink{}
	handles := flatten.NewHandleTable()
	handles.Register("loader", loader)
	handles.Register("provider", provider)
	handles.Register("events", sink)

	ep, err := NewCollectionEndPoint(id, Dependencies[[]ObjectID]{Loader: loader, Provider: provider, EventSink: sink, Logger: logger})
	require.NoError(t, err)
	rx := realFor(t, id, x)
	require.NoError(t, ep.RegisterOriginalOppositeEndPoint(rx))
	require.NoError(t, ep.RegisterOriginalOppositeEndPoint(realFor(t, id, z)))
	require.NoError(t, ep.MarkDataComplete([]ObjectID{x, y}))
	require.NoError(t, ep.RegisterCurrentOppositeEndPoint(context.Background(), realFor(t, id, w)))
	require.NotEmpty(t, ep.UnsynchronizedOppositeEndPoints())

	restored := roundTrip[[]ObjectID](t, ep.State(), handles, logger)
	assert.Equal(t, ep.State(), restored)

	// The end-point shared by the original and current views is restored once.
	s := restored.(*CompleteState[[]ObjectID])
	assert.Same(t, s.DataManager().OriginalOppositeEndPoints()[0], s.DataManager().CurrentOppositeEndPoints()[0])
}

func TestSerializeState_CompleteObject(t *testing.T) {
	logger := zap.NewNop()
	id := EndPointID{ObjectID: newObject("Customer"), Relation: "Customer.Profile", Direction: DirectionVirtual}
	profile := newObject("Profile")
	provider := newFakeProvider()
	handles := flatten.NewHandleTable()
	handles.Register("provider", provider)
	handles.Register("events", NopEventSink{})

	m := NewObjectDataManager(id)
	require.NoError(t, m.RegisterOriginalOppositeEndPoint(realFor(t, id, profile)))
	state := NewCompleteState[ObjectID](m, provider, NopEventSink{}, logger)
	require.NoError(t, state.RegisterOriginalOppositeEndPoint(realFor(t, id, newObject("Profile"))))

	restored := roundTrip[ObjectID](t, state, handles, logger)
	assert.Equal(t, state, restored)
}

func TestDeserializeState_Errors(t *testing.T) {
	logger := zap.NewNop()
	id := ownerID()
	provider := newFakeProvider()
	handles := flatten.NewHandleTable()
	handles.Register("provider", provider)

	t.Run("data kind mismatch", func(t *testing.T) {
		state := NewCompleteState[[]ObjectID](NewCollectionDataManager(id), provider, nil, logger)
		handles.Register("events", state.EventSink())
		w := flatten.NewWriter(handles)
		require.NoError(t, SerializeState[[]ObjectID](state, w))
		data, err := w.Bytes()
		require.NoError(t, err)

		r, err := flatten.NewReader(data, handles)
		require.NoError(t, err)
		_, err = DeserializeState[ObjectID](r, logger)
		assert.ErrorIs(t, err, flatten.ErrFormat)
	})

	t.Run("unknown tag", func(t *testing.T) {
		w := flatten.NewWriter(handles)
		w.WriteString("partial")
		data, err := w.Bytes()
		require.NoError(t, err)

		r, err := flatten.NewReader(data, handles)
		require.NoError(t, err)
		_, err = DeserializeState[[]ObjectID](r, logger)
		assert.ErrorIs(t, err, flatten.ErrFormat)
	})

	t.Run("unregistered handle", func(t *testing.T) {
		state := NewIncompleteState[[]ObjectID](id, &fakeLoader[[]ObjectID]{}, logger)
		assert.Error(t, SerializeState[[]ObjectID](state, flatten.NewWriter(handles)))
	})
}

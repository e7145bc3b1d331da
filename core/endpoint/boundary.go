package endpoint

import "context"

// EndPointLoader loads the data of a virtual end-point. Implementations query the
// backing store, call MarkDataComplete on ep and return its new complete state. This is
// the only place the engine calls out into I/O.
type EndPointLoader[T any] interface {
	LoadAndGetNewState(ctx context.Context, ep *VirtualEndPoint[T]) (*CompleteState[T], error)
}

// RelationEndPointProvider looks up the live real end-point of the current transaction
// for a given identity.
type RelationEndPointProvider interface {
	Resolve(id EndPointID) (*RealEndPoint, error)
}

// DataManager owns the materialized data of a complete virtual end-point. T is the data
// kind: []ObjectID for collections, ObjectID for single references.
type DataManager[T any] interface {
	EndPointID() EndPointID

	// ContainsOriginalObjectID reports whether id is part of the original data.
	ContainsOriginalObjectID(id ObjectID) bool
	ContainsOriginalItemWithoutEndPoint(id ObjectID) bool

	RegisterOriginalOppositeEndPoint(r *RealEndPoint) error
	UnregisterOriginalOppositeEndPoint(r *RealEndPoint) error
	RegisterOriginalItemWithoutEndPoint(id ObjectID) error
	UnregisterOriginalItemWithoutEndPoint(id ObjectID) error
	RegisterCurrentOppositeEndPoint(r *RealEndPoint) error
	UnregisterCurrentOppositeEndPoint(r *RealEndPoint) error

	OriginalOppositeEndPoints() []*RealEndPoint
	CurrentOppositeEndPoints() []*RealEndPoint
	OriginalItemsWithoutEndPoints() []ObjectID

	// Data returns a copy of the current view.
	Data() T
	// OriginalData returns a copy of the as-loaded (or last committed) view.
	OriginalData() T

	HasDataChanged() bool
	Commit()
	Rollback()

	// SetDataFromSubTransaction replaces the current view with source's current view,
	// resolving source's real end-points to the ones of this transaction.
	SetDataFromSubTransaction(source DataManager[T], provider RelationEndPointProvider) error
}

// DataManagerFactory creates an empty data manager for id.
type DataManagerFactory[T any] func(id EndPointID) DataManager[T]

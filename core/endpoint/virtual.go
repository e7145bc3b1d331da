package endpoint

import (
	"context"

	"go.uber.org/zap"
)

// Dependencies are the collaborators of a virtual end-point.
type Dependencies[T any] struct {
	// Loader loads the data when the end-point is incomplete. Required.
	Loader EndPointLoader[T]
	// Provider resolves real end-points of the owning transaction. Required.
	Provider RelationEndPointProvider
	// EventSink is notified of state transitions. Defaults to NopEventSink.
	EventSink EventSink
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// VirtualEndPoint is the façade of one virtual relation end-point. It owns exactly one
// LoadState and delegates every operation to it.
//
// A VirtualEndPoint is not safe for concurrent use.
type VirtualEndPoint[T any] struct {
	id             EndPointID
	state          LoadState[T]
	newDataManager DataManagerFactory[T]
	loader         EndPointLoader[T]
	provider       RelationEndPointProvider
	eventSink      EventSink
	logger         *zap.Logger
}

// CollectionEndPoint is a collection-valued virtual end-point.
type CollectionEndPoint = VirtualEndPoint[[]ObjectID]

// ObjectEndPoint is a single-valued virtual end-point.
type ObjectEndPoint = VirtualEndPoint[ObjectID]

// NewCollectionEndPoint creates an incomplete collection end-point.
func NewCollectionEndPoint(id EndPointID, deps Dependencies[[]ObjectID]) (*CollectionEndPoint, error) {
	return NewVirtualEndPoint[[]ObjectID](id, CollectionDataManagerFactory, deps)
}

// NewObjectEndPoint creates an incomplete single-valued end-point.
func NewObjectEndPoint(id EndPointID, deps Dependencies[ObjectID]) (*ObjectEndPoint, error) {
	return NewVirtualEndPoint[ObjectID](id, ObjectDataManagerFactory, deps)
}

// NewVirtualEndPoint creates an incomplete virtual end-point whose complete state is
// backed by data managers from factory.
func NewVirtualEndPoint[T any](id EndPointID, factory DataManagerFactory[T], deps Dependencies[T]) (*VirtualEndPoint[T], error) {
	const op = "new virtual end-point"
	switch {
	case !id.IsVirtual():
		return nil, invalidArgument(op, id, "identity is not on the virtual side")
	case id.ObjectID.IsNil():
		return nil, invalidArgument(op, id, "owner is the null-object sentinel")
	case factory == nil:
		return nil, invalidArgument(op, id, "data manager factory is required")
	case deps.Loader == nil:
		return nil, invalidArgument(op, id, "loader is required")
	case deps.Provider == nil:
		return nil, invalidArgument(op, id, "provider is required")
	}
	if deps.EventSink == nil {
		deps.EventSink = NopEventSink{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	ep := &VirtualEndPoint[T]{
		id:             id,
		newDataManager: factory,
		loader:         deps.Loader,
		provider:       deps.Provider,
		eventSink:      deps.EventSink,
		logger:         deps.Logger,
	}
	ep.state = NewIncompleteState(id, deps.Loader, ep.logger)
	return ep, nil
}

func (ep *VirtualEndPoint[T]) ID() EndPointID { return ep.id }

// State returns the current load state.
func (ep *VirtualEndPoint[T]) State() LoadState[T] { return ep.state }

// SetState replaces the load state, e.g. with one restored by DeserializeState.
func (ep *VirtualEndPoint[T]) SetState(state LoadState[T]) error {
	if state == nil {
		return invalidArgument("set state", ep.id, "state is required")
	}
	ep.state = state
	return nil
}

func (ep *VirtualEndPoint[T]) IsDataComplete() bool { return ep.state.IsDataComplete() }

func (ep *VirtualEndPoint[T]) CanBeMarkedIncomplete() bool { return ep.state.CanBeMarkedIncomplete() }

func (ep *VirtualEndPoint[T]) HasChanged() bool { return ep.state.HasChanged() }

// IsSynchronized returns SyncUndetermined while the end-point is incomplete.
func (ep *VirtualEndPoint[T]) IsSynchronized() SyncState { return ep.state.IsSynchronized() }

// loadIfIncomplete is the only point where the engine blocks on I/O. While incomplete
// it asks the loader for the data, which replaces the state; a complete state is
// returned as is.
func (ep *VirtualEndPoint[T]) loadIfIncomplete(ctx context.Context) (*CompleteState[T], error) {
	switch s := ep.state.(type) {
	case *CompleteState[T]:
		return s, nil
	case *IncompleteState[T]:
		ep.logger.Debug("Loading virtual end-point data", zap.Stringer("endpoint", ep.id))
		complete, err := s.load(ctx, ep)
		if err != nil {
			ep.logger.Warn("Failed to load virtual end-point data", zap.Stringer("endpoint", ep.id), zap.Error(err))
			return nil, err
		}
		if current, ok := ep.state.(*CompleteState[T]); !ok || current != complete {
			return nil, invalidOperation("load", ep.id, "loader did not mark the data complete")
		}
		return complete, nil
	default:
		return nil, invalidOperation("load", ep.id, "unknown load state %T", ep.state)
	}
}

// EnsureDataComplete loads the data if it is not loaded yet.
func (ep *VirtualEndPoint[T]) EnsureDataComplete(ctx context.Context) error {
	_, err := ep.loadIfIncomplete(ctx)
	return err
}

// MarkDataComplete turns an incomplete end-point into a complete one holding items.
// It is called by loaders with the query result in result order.
func (ep *VirtualEndPoint[T]) MarkDataComplete(items []ObjectID) error {
	switch s := ep.state.(type) {
	case *IncompleteState[T]:
		return s.markDataComplete(ep, items, func(c *CompleteState[T]) { ep.state = c })
	case *CompleteState[T]:
		return invalidOperation("mark data complete", ep.id, "the data is already complete")
	default:
		return invalidOperation("mark data complete", ep.id, "unknown load state %T", ep.state)
	}
}

// MarkDataIncomplete discards the loaded data. It fails while the end-point has
// uncommitted changes. Known real end-points are carried over.
func (ep *VirtualEndPoint[T]) MarkDataIncomplete() error {
	switch s := ep.state.(type) {
	case *IncompleteState[T]:
		return nil
	case *CompleteState[T]:
		return s.markDataIncomplete(func() *IncompleteState[T] {
			incomplete := NewIncompleteState(ep.id, ep.loader, ep.logger)
			ep.state = incomplete
			return incomplete
		})
	default:
		return invalidOperation("mark data incomplete", ep.id, "unknown load state %T", ep.state)
	}
}

// RegisterOriginalOppositeEndPoint registers a real end-point pointing at this
// end-point. It never loads.
func (ep *VirtualEndPoint[T]) RegisterOriginalOppositeEndPoint(r *RealEndPoint) error {
	switch s := ep.state.(type) {
	case *IncompleteState[T]:
		return s.RegisterOriginalOppositeEndPoint(r)
	case *CompleteState[T]:
		return s.RegisterOriginalOppositeEndPoint(r)
	default:
		return invalidOperation("register original opposite end-point", ep.id, "unknown load state %T", ep.state)
	}
}

// UnregisterOriginalOppositeEndPoint unregisters a real end-point. On a complete
// end-point, unregistering one that backs an item marks the data incomplete.
func (ep *VirtualEndPoint[T]) UnregisterOriginalOppositeEndPoint(r *RealEndPoint) error {
	switch s := ep.state.(type) {
	case *IncompleteState[T]:
		return s.UnregisterOriginalOppositeEndPoint(r)
	case *CompleteState[T]:
		return s.unregisterOriginalOppositeEndPoint(ep, r)
	default:
		return invalidOperation("unregister original opposite end-point", ep.id, "unknown load state %T", ep.state)
	}
}

// RegisterCurrentOppositeEndPoint adds r to the current view, loading first if needed.
func (ep *VirtualEndPoint[T]) RegisterCurrentOppositeEndPoint(ctx context.Context, r *RealEndPoint) error {
	complete, err := ep.loadIfIncomplete(ctx)
	if err != nil {
		return err
	}
	return complete.RegisterCurrentOppositeEndPoint(r)
}

// UnregisterCurrentOppositeEndPoint removes r from the current view, loading first if
// needed.
func (ep *VirtualEndPoint[T]) UnregisterCurrentOppositeEndPoint(ctx context.Context, r *RealEndPoint) error {
	complete, err := ep.loadIfIncomplete(ctx)
	if err != nil {
		return err
	}
	return complete.UnregisterCurrentOppositeEndPoint(r)
}

// Data returns the current view, loading first if needed.
func (ep *VirtualEndPoint[T]) Data(ctx context.Context) (T, error) {
	complete, err := ep.loadIfIncomplete(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return complete.dataManager.Data(), nil
}

// OriginalData returns the as-loaded view, loading first if needed.
func (ep *VirtualEndPoint[T]) OriginalData(ctx context.Context) (T, error) {
	complete, err := ep.loadIfIncomplete(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return complete.dataManager.OriginalData(), nil
}

// Synchronize drops loaded items that no real end-point backs, loading first if needed.
func (ep *VirtualEndPoint[T]) Synchronize(ctx context.Context) error {
	complete, err := ep.loadIfIncomplete(ctx)
	if err != nil {
		return err
	}
	return complete.Synchronize()
}

// SynchronizeOppositeEndPoint moves an unsynchronized real end-point into the data,
// loading first if needed.
func (ep *VirtualEndPoint[T]) SynchronizeOppositeEndPoint(ctx context.Context, r *RealEndPoint) error {
	complete, err := ep.loadIfIncomplete(ctx)
	if err != nil {
		return err
	}
	return complete.SynchronizeOppositeEndPoint(r)
}

// Commit makes the current view the original one. It is a no-op while incomplete.
func (ep *VirtualEndPoint[T]) Commit() error {
	switch s := ep.state.(type) {
	case *IncompleteState[T]:
		if s.HasChanged() {
			return invalidOperation("commit", ep.id, "an incomplete end-point cannot hold changes")
		}
		return nil
	case *CompleteState[T]:
		s.Commit()
		return nil
	default:
		return invalidOperation("commit", ep.id, "unknown load state %T", ep.state)
	}
}

// Rollback discards the current view. It is a no-op while incomplete.
func (ep *VirtualEndPoint[T]) Rollback() error {
	switch s := ep.state.(type) {
	case *IncompleteState[T]:
		if s.HasChanged() {
			return invalidOperation("rollback", ep.id, "an incomplete end-point cannot hold changes")
		}
		return nil
	case *CompleteState[T]:
		s.Rollback()
		return nil
	default:
		return invalidOperation("rollback", ep.id, "unknown load state %T", ep.state)
	}
}

// SetDataFromSubTransaction copies the current view of source, the same end-point in a
// sub-transaction, into this end-point. source must be complete.
func (ep *VirtualEndPoint[T]) SetDataFromSubTransaction(ctx context.Context, source *VirtualEndPoint[T]) error {
	const op = "set data from sub-transaction"
	if source == nil {
		return invalidArgument(op, ep.id, "source end-point is required")
	}
	if source.id != ep.id {
		return invalidArgument(op, ep.id, "source end-point is %s", source.id)
	}
	sourceState, ok := source.state.(*CompleteState[T])
	if !ok {
		return invalidOperation(op, ep.id, "the source end-point is not complete")
	}
	complete, err := ep.loadIfIncomplete(ctx)
	if err != nil {
		return err
	}
	return complete.SetDataFromSubTransaction(sourceState)
}

// UnsynchronizedOppositeEndPoints returns the unsynchronized real end-points of a
// complete end-point, nil while incomplete.
func (ep *VirtualEndPoint[T]) UnsynchronizedOppositeEndPoints() []*RealEndPoint {
	if s, ok := ep.state.(*CompleteState[T]); ok {
		return s.UnsynchronizedOppositeEndPoints()
	}
	return nil
}

// ItemsWithoutEndPoint returns the loaded items no real end-point backs, nil while
// incomplete.
func (ep *VirtualEndPoint[T]) ItemsWithoutEndPoint() []ObjectID {
	if s, ok := ep.state.(*CompleteState[T]); ok {
		return s.dataManager.OriginalItemsWithoutEndPoints()
	}
	return nil
}

// CurrentOppositeEndPoints returns the real end-points backing the current view of a
// complete end-point, nil while incomplete.
func (ep *VirtualEndPoint[T]) CurrentOppositeEndPoints() []*RealEndPoint {
	if s, ok := ep.state.(*CompleteState[T]); ok {
		return s.dataManager.CurrentOppositeEndPoints()
	}
	return nil
}

// OppositeEndPoints returns every real end-point the end-point knows of: the pending
// ones while incomplete, the original and unsynchronized ones when complete.
func (ep *VirtualEndPoint[T]) OppositeEndPoints() []*RealEndPoint {
	switch s := ep.state.(type) {
	case *IncompleteState[T]:
		return s.PendingOppositeEndPoints()
	case *CompleteState[T]:
		return append(s.dataManager.OriginalOppositeEndPoints(), s.unsynchronized.Values()...)
	default:
		return nil
	}
}

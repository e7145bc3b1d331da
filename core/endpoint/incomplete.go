package endpoint

import (
	"context"

	"go.uber.org/zap"
)

// IncompleteState stands in for a virtual end-point whose data has not been loaded.
// Real end-points registered in this state are kept pending until the data arrives.
type IncompleteState[T any] struct {
	id      EndPointID
	loader  EndPointLoader[T]
	pending *orderedMap[ObjectID, *RealEndPoint]
	logger  *zap.Logger
}

// NewIncompleteState creates an incomplete state for id loading through loader.
func NewIncompleteState[T any](id EndPointID, loader EndPointLoader[T], logger *zap.Logger) *IncompleteState[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IncompleteState[T]{
		id:      id,
		loader:  loader,
		pending: newOrderedMap[ObjectID, *RealEndPoint](),
		logger:  logger,
	}
}

func (s *IncompleteState[T]) loadState() {}

func (s *IncompleteState[T]) IsDataComplete() bool { return false }

func (s *IncompleteState[T]) CanBeMarkedIncomplete() bool { return true }

// HasChanged is always false: an unloaded end-point cannot hold changes.
func (s *IncompleteState[T]) HasChanged() bool { return false }

func (s *IncompleteState[T]) IsSynchronized() SyncState { return SyncUndetermined }

// Loader returns the loader this state loads through.
func (s *IncompleteState[T]) Loader() EndPointLoader[T] { return s.loader }

// PendingOppositeEndPoints returns the real end-points registered so far, in
// registration order.
func (s *IncompleteState[T]) PendingOppositeEndPoints() []*RealEndPoint {
	return s.pending.Values()
}

// RegisterOriginalOppositeEndPoint records r without loading. Its sync state is reset
// because it cannot be evaluated before the data is known.
func (s *IncompleteState[T]) RegisterOriginalOppositeEndPoint(r *RealEndPoint) error {
	const op = "register original opposite end-point"
	if err := requireRegistrable(op, s.id, r); err != nil {
		return err
	}
	if s.pending.Has(r.ObjectID()) {
		return invalidOperation(op, s.id, "%s is already registered", r.ID())
	}
	r.ResetSyncState()
	s.pending.Set(r.ObjectID(), r)
	return nil
}

func (s *IncompleteState[T]) UnregisterOriginalOppositeEndPoint(r *RealEndPoint) error {
	const op = "unregister original opposite end-point"
	if err := requireRegistrable(op, s.id, r); err != nil {
		return err
	}
	registered, ok := s.pending.Get(r.ObjectID())
	if !ok || registered.ID() != r.ID() {
		return invalidOperation(op, s.id, "%s is not registered", r.ID())
	}
	s.pending.Delete(r.ObjectID())
	return nil
}

// load asks the loader for the complete state of ep. The loader is expected to call
// MarkDataComplete on ep before returning.
func (s *IncompleteState[T]) load(ctx context.Context, ep *VirtualEndPoint[T]) (*CompleteState[T], error) {
	if s.loader == nil {
		return nil, invalidOperation("load", s.id, "no loader configured")
	}
	complete, err := s.loader.LoadAndGetNewState(ctx, ep)
	if err != nil {
		return nil, err
	}
	if complete == nil {
		return nil, invalidOperation("load", s.id, "loader returned no state")
	}
	return complete, nil
}

// markDataComplete builds the complete state from the loaded items. Pending real
// end-points whose object is among the items back those items; items without one are
// recorded as items without end-point; pending real end-points whose object was not
// loaded are registered on the new state, where they become unsynchronized.
func (s *IncompleteState[T]) markDataComplete(ep *VirtualEndPoint[T], items []ObjectID, setState func(*CompleteState[T])) error {
	const op = "mark data complete"
	seen := make(map[ObjectID]struct{}, len(items))
	for _, item := range items {
		if item.IsNil() {
			return invalidArgument(op, s.id, "loaded items contain the null-object sentinel")
		}
		if _, dup := seen[item]; dup {
			return invalidArgument(op, s.id, "%s was loaded twice", item)
		}
		seen[item] = struct{}{}
	}

	dataManager := ep.newDataManager(s.id)
	matched := make([]*RealEndPoint, 0, len(items))
	for _, item := range items {
		if r, ok := s.pending.Get(item); ok {
			if err := dataManager.RegisterOriginalOppositeEndPoint(r); err != nil {
				return err
			}
			matched = append(matched, r)
			continue
		}
		if err := dataManager.RegisterOriginalItemWithoutEndPoint(item); err != nil {
			return err
		}
	}

	leftovers := make([]*RealEndPoint, 0, s.pending.Len())
	for _, r := range s.pending.Values() {
		if _, ok := seen[r.ObjectID()]; !ok {
			leftovers = append(leftovers, r)
		}
	}

	complete := NewCompleteState(dataManager, ep.provider, ep.eventSink, s.logger)
	for _, r := range matched {
		r.MarkSynchronized()
	}
	s.pending.Clear()
	setState(complete)

	for _, r := range leftovers {
		if err := ep.RegisterOriginalOppositeEndPoint(r); err != nil {
			return err
		}
	}

	s.logger.Debug("Marked virtual end-point data complete",
		zap.Stringer("endpoint", s.id),
		zap.Int("items", len(items)),
		zap.Int("synchronized", len(matched)),
		zap.Int("unsynchronized", len(leftovers)),
		zap.Int("items_without_endpoint", len(items)-len(matched)),
	)
	ep.eventSink.VirtualEndPointDataComplete(s.id)
	return nil
}

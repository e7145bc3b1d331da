package endpoint

import (
	"go.uber.org/zap"
)

// CompleteState serves a loaded virtual end-point from its DataManager and tracks the
// real end-points registered for objects that are not part of the loaded data.
type CompleteState[T any] struct {
	dataManager    DataManager[T]
	provider       RelationEndPointProvider
	eventSink      EventSink
	unsynchronized *orderedMap[ObjectID, *RealEndPoint]
	logger         *zap.Logger
}

// NewCompleteState creates a complete state over dataManager.
func NewCompleteState[T any](dataManager DataManager[T], provider RelationEndPointProvider, eventSink EventSink, logger *zap.Logger) *CompleteState[T] {
	if eventSink == nil {
		eventSink = NopEventSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompleteState[T]{
		dataManager:    dataManager,
		provider:       provider,
		eventSink:      eventSink,
		unsynchronized: newOrderedMap[ObjectID, *RealEndPoint](),
		logger:         logger,
	}
}

func (s *CompleteState[T]) loadState() {}

func (s *CompleteState[T]) IsDataComplete() bool { return true }

func (s *CompleteState[T]) DataManager() DataManager[T] { return s.dataManager }

func (s *CompleteState[T]) Provider() RelationEndPointProvider { return s.provider }

func (s *CompleteState[T]) EventSink() EventSink { return s.eventSink }

func (s *CompleteState[T]) HasChanged() bool { return s.dataManager.HasDataChanged() }

func (s *CompleteState[T]) CanBeMarkedIncomplete() bool { return !s.HasChanged() }

// IsSynchronized reports Synchronized when every loaded item is backed by a real
// end-point. Unsynchronized opposite end-points do not affect the answer.
func (s *CompleteState[T]) IsSynchronized() SyncState {
	if len(s.dataManager.OriginalItemsWithoutEndPoints()) == 0 {
		return Synchronized
	}
	return Unsynchronized
}

// UnsynchronizedOppositeEndPoints returns the registered real end-points whose object
// is not part of the loaded data, in registration order.
func (s *CompleteState[T]) UnsynchronizedOppositeEndPoints() []*RealEndPoint {
	return s.unsynchronized.Values()
}

func (s *CompleteState[T]) id() EndPointID { return s.dataManager.EndPointID() }

// RegisterOriginalOppositeEndPoint classifies r: when its object is part of the loaded
// data it backs that item, otherwise it is kept as unsynchronized.
func (s *CompleteState[T]) RegisterOriginalOppositeEndPoint(r *RealEndPoint) error {
	const op = "register original opposite end-point"
	if err := requireRegistrable(op, s.id(), r); err != nil {
		return err
	}
	item := r.ObjectID()
	if s.dataManager.ContainsOriginalObjectID(item) {
		if err := s.dataManager.RegisterOriginalOppositeEndPoint(r); err != nil {
			return err
		}
		r.MarkSynchronized()
		return nil
	}

	if s.unsynchronized.Has(item) {
		return invalidOperation(op, s.id(), "%s is already registered", r.ID())
	}
	s.unsynchronized.Set(item, r)
	r.MarkUnsynchronized()
	s.logger.Debug("Registered unsynchronized opposite end-point",
		zap.Stringer("endpoint", s.id()),
		zap.Stringer("opposite", r.ID()),
	)
	return nil
}

// unregisterOriginalOppositeEndPoint removes r. Removing an unsynchronized end-point
// resolves the inconsistency; removing one that backs an item makes ep incomplete first.
func (s *CompleteState[T]) unregisterOriginalOppositeEndPoint(ep *VirtualEndPoint[T], r *RealEndPoint) error {
	const op = "unregister original opposite end-point"
	if err := requireRegistrable(op, s.id(), r); err != nil {
		return err
	}
	item := r.ObjectID()
	if registered, ok := s.unsynchronized.Get(item); ok && registered.ID() == r.ID() {
		s.unsynchronized.Delete(item)
		return nil
	}
	if !s.backs(r) {
		return invalidOperation(op, s.id(), "%s is not registered", r.ID())
	}

	if err := ep.MarkDataIncomplete(); err != nil {
		return err
	}
	return ep.UnregisterOriginalOppositeEndPoint(r)
}

func (s *CompleteState[T]) backs(r *RealEndPoint) bool {
	for _, registered := range s.dataManager.OriginalOppositeEndPoints() {
		if registered.ID() == r.ID() {
			return true
		}
	}
	return false
}

func (s *CompleteState[T]) RegisterCurrentOppositeEndPoint(r *RealEndPoint) error {
	return s.dataManager.RegisterCurrentOppositeEndPoint(r)
}

func (s *CompleteState[T]) UnregisterCurrentOppositeEndPoint(r *RealEndPoint) error {
	return s.dataManager.UnregisterCurrentOppositeEndPoint(r)
}

// Synchronize drops every item without end-point from the data. The foreign keys win
// over the loaded result.
func (s *CompleteState[T]) Synchronize() error {
	items := s.dataManager.OriginalItemsWithoutEndPoints()
	for _, item := range items {
		if err := s.dataManager.UnregisterOriginalItemWithoutEndPoint(item); err != nil {
			return err
		}
	}
	if len(items) > 0 {
		s.logger.Debug("Synchronized virtual end-point",
			zap.Stringer("endpoint", s.id()),
			zap.Int("dropped_items", len(items)),
		)
	}
	return nil
}

// SynchronizeOppositeEndPoint moves an unsynchronized real end-point into the data.
func (s *CompleteState[T]) SynchronizeOppositeEndPoint(r *RealEndPoint) error {
	const op = "synchronize opposite end-point"
	if err := requireRegistrable(op, s.id(), r); err != nil {
		return err
	}
	item := r.ObjectID()
	registered, ok := s.unsynchronized.Get(item)
	if !ok || registered.ID() != r.ID() {
		return invalidOperation(op, s.id(), "%s is not an unsynchronized opposite end-point", r.ID())
	}
	if err := s.dataManager.RegisterOriginalOppositeEndPoint(r); err != nil {
		return err
	}
	s.unsynchronized.Delete(item)
	r.MarkSynchronized()
	return nil
}

func (s *CompleteState[T]) Commit() { s.dataManager.Commit() }

func (s *CompleteState[T]) Rollback() { s.dataManager.Rollback() }

// SetDataFromSubTransaction copies the current view of source, the complete state of
// the same end-point in a sub-transaction.
func (s *CompleteState[T]) SetDataFromSubTransaction(source *CompleteState[T]) error {
	if source == nil {
		return invalidArgument("set data from sub-transaction", s.id(), "source state is required")
	}
	return s.dataManager.SetDataFromSubTransaction(source.dataManager, s.provider)
}

// markDataIncomplete replaces this state with the incomplete state returned by
// setIncomplete and hands every known real end-point over to it.
func (s *CompleteState[T]) markDataIncomplete(setIncomplete func() *IncompleteState[T]) error {
	if s.HasChanged() {
		return invalidOperation("mark data incomplete", s.id(), "the end-point has uncommitted changes")
	}

	carried := append(s.dataManager.OriginalOppositeEndPoints(), s.unsynchronized.Values()...)
	seen := make(map[ObjectID]struct{}, len(carried))
	for _, r := range carried {
		if _, dup := seen[r.ObjectID()]; dup {
			return invalidOperation("mark data incomplete", s.id(), "%s is registered twice", r.ID())
		}
		seen[r.ObjectID()] = struct{}{}
	}

	s.eventSink.VirtualEndPointBecomingIncomplete(s.id())
	incomplete := setIncomplete()
	for _, r := range carried {
		if err := incomplete.RegisterOriginalOppositeEndPoint(r); err != nil {
			return err
		}
	}
	s.logger.Debug("Marked virtual end-point data incomplete",
		zap.Stringer("endpoint", s.id()),
		zap.Int("carried_endpoints", len(carried)),
	)
	return nil
}

package transaction

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"relation-manager/core/endpoint"
	"relation-manager/core/flatten"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("relation-manager/transaction")

// Handle names registered by Handles.
const (
	HandleCollectionLoader = "collection-loader"
	HandleObjectLoader     = "object-loader"
	HandleProvider         = "provider"
	HandleEventSink        = "events"
)

// ItemSource loads the objects whose foreign key in relation references owner, in
// result order.
type ItemSource interface {
	LoadRelatedObjects(ctx context.Context, relation endpoint.RelationDefinition, owner endpoint.ObjectID) ([]endpoint.ObjectID, error)
}

// Options configures a root transaction.
type Options struct {
	Relations []endpoint.RelationDefinition
	// Source loads virtual end-points. Required.
	Source     ItemSource
	SyncPolicy SyncPolicy
	// EventSink defaults to a LoggingEventSink on Logger.
	EventSink endpoint.EventSink
	Logger    *zap.Logger
	Tracer    trace.Tracer
}

// sinkRef gives a non-comparable event sink, such as endpoint.EventSinks, a
// comparable identity.
type sinkRef struct {
	endpoint.EventSink
}

type realEntry struct {
	endPoint *endpoint.RealEndPoint
	// original is the committed foreign key, NilObjectID for none.
	original endpoint.ObjectID
}

// virtualEndPoint is the part of the end-point façade that does not depend on the
// data kind.
type virtualEndPoint interface {
	ID() endpoint.EndPointID
	IsDataComplete() bool
	HasChanged() bool
	IsSynchronized() endpoint.SyncState
	UnsynchronizedOppositeEndPoints() []*endpoint.RealEndPoint
	CurrentOppositeEndPoints() []*endpoint.RealEndPoint
	RegisterOriginalOppositeEndPoint(r *endpoint.RealEndPoint) error
	UnregisterOriginalOppositeEndPoint(r *endpoint.RealEndPoint) error
	RegisterCurrentOppositeEndPoint(ctx context.Context, r *endpoint.RealEndPoint) error
	UnregisterCurrentOppositeEndPoint(ctx context.Context, r *endpoint.RealEndPoint) error
	EnsureDataComplete(ctx context.Context) error
	MarkDataIncomplete() error
	Commit() error
	Rollback() error
}

var (
	_ endpoint.RelationEndPointProvider = (*Transaction)(nil)
	_ virtualEndPoint                   = (*endpoint.CollectionEndPoint)(nil)
	_ virtualEndPoint                   = (*endpoint.ObjectEndPoint)(nil)
)

// Transaction owns the relation end-points of one transaction level.
type Transaction struct {
	relations map[string]endpoint.RelationDefinition
	source    ItemSource
	policy    SyncPolicy
	eventSink endpoint.EventSink
	logger    *zap.Logger
	tracer    trace.Tracer

	collectionLoader *loader[[]endpoint.ObjectID]
	objectLoader     *loader[endpoint.ObjectID]

	parent    *Transaction
	child     *Transaction
	discarded bool

	reals        map[endpoint.EndPointID]*realEntry
	realOrder    []endpoint.EndPointID
	collections  map[endpoint.EndPointID]*endpoint.CollectionEndPoint
	objects      map[endpoint.EndPointID]*endpoint.ObjectEndPoint
	virtualOrder []endpoint.EndPointID
}

// New creates a root transaction.
func New(opts Options) (*Transaction, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("new transaction: item source is required: %w", endpoint.ErrInvalidArgument)
	}
	relations := make(map[string]endpoint.RelationDefinition, len(opts.Relations))
	for _, def := range opts.Relations {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, dup := relations[def.Name]; dup {
			return nil, fmt.Errorf("relation %s: defined twice: %w", def.Name, endpoint.ErrInvalidArgument)
		}
		relations[def.Name] = def
	}
	policy, err := ParseSyncPolicy(string(opts.SyncPolicy))
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sink := opts.EventSink
	if sink == nil {
		sink = endpoint.NewLoggingEventSink(logger)
	}
	if !reflect.ValueOf(sink).Comparable() {
		// Handle tables look collaborators up by equality.
		sink = &sinkRef{EventSink: sink}
	}
	tr := opts.Tracer
	if tr == nil {
		tr = tracer
	}

	return newTransaction(relations, opts.Source, policy, sink, logger, tr, nil), nil
}

func newTransaction(relations map[string]endpoint.RelationDefinition, source ItemSource, policy SyncPolicy, sink endpoint.EventSink, logger *zap.Logger, tr trace.Tracer, parent *Transaction) *Transaction {
	t := &Transaction{
		relations:   relations,
		source:      source,
		policy:      policy,
		eventSink:   sink,
		logger:      logger,
		tracer:      tr,
		parent:      parent,
		reals:       make(map[endpoint.EndPointID]*realEntry),
		collections: make(map[endpoint.EndPointID]*endpoint.CollectionEndPoint),
		objects:     make(map[endpoint.EndPointID]*endpoint.ObjectEndPoint),
	}
	t.collectionLoader = &loader[[]endpoint.ObjectID]{tx: t}
	t.objectLoader = &loader[endpoint.ObjectID]{tx: t}
	return t
}

// Relation returns the definition of the relation called name.
func (t *Transaction) Relation(name string) (endpoint.RelationDefinition, error) {
	def, ok := t.relations[name]
	if !ok {
		return endpoint.RelationDefinition{}, fmt.Errorf("relation %q: %w", name, ErrUnknownRelation)
	}
	return def, nil
}

// Parent returns the parent of a sub-transaction, nil for a root.
func (t *Transaction) Parent() *Transaction { return t.parent }

// IsReadOnly reports whether a sub-transaction is active.
func (t *Transaction) IsReadOnly() bool { return t.child != nil }

// SyncPolicy returns the commit-time policy.
func (t *Transaction) SyncPolicy() SyncPolicy { return t.policy }

// EventSink returns the sink end-points of this transaction notify.
func (t *Transaction) EventSink() endpoint.EventSink { return t.eventSink }

// Handles returns a handle table naming the collaborators of this transaction's load
// states, for use with endpoint.SerializeState and endpoint.DeserializeState.
func (t *Transaction) Handles() *flatten.HandleTable {
	h := flatten.NewHandleTable()
	h.Register(HandleCollectionLoader, t.collectionLoader)
	h.Register(HandleObjectLoader, t.objectLoader)
	h.Register(HandleProvider, t)
	h.Register(HandleEventSink, t.eventSink)
	return h
}

func (t *Transaction) checkUsable() error {
	if t.discarded {
		return ErrDiscarded
	}
	return nil
}

func (t *Transaction) checkWritable() error {
	if err := t.checkUsable(); err != nil {
		return err
	}
	if t.child != nil {
		return ErrReadOnly
	}
	return nil
}

// CreateSubTransaction creates a child loading from this transaction. This transaction
// is read-only until the child is discarded.
func (t *Transaction) CreateSubTransaction() (*Transaction, error) {
	if err := t.checkWritable(); err != nil {
		return nil, fmt.Errorf("create sub-transaction: %w", err)
	}
	child := newTransaction(t.relations, nil, t.policy, t.eventSink, t.logger, t.tracer, t)
	t.child = child
	t.logger.Debug("Created sub-transaction")
	return child, nil
}

// Discard ends a sub-transaction without pushing its changes, together with its own
// active sub-transaction.
func (t *Transaction) Discard() error {
	if t.parent == nil {
		return fmt.Errorf("discard: root transaction: %w", endpoint.ErrInvalidOperation)
	}
	if t.discarded {
		return nil
	}
	if t.child != nil {
		if err := t.child.Discard(); err != nil {
			return err
		}
	}
	t.parent.child = nil
	t.discarded = true
	t.logger.Debug("Discarded sub-transaction")
	return nil
}

func (t *Transaction) definitionFor(id endpoint.EndPointID, cardinality endpoint.Cardinality) error {
	def, err := t.Relation(id.Relation)
	if err != nil {
		return err
	}
	switch {
	case !id.IsVirtual():
		return fmt.Errorf("end-point %s: not on the virtual side: %w", id, endpoint.ErrInvalidArgument)
	case id.ObjectID.ClassID != def.VirtualClass:
		return fmt.Errorf("end-point %s: owner is not a %s: %w", id, def.VirtualClass, endpoint.ErrInvalidArgument)
	case def.Cardinality != cardinality:
		return fmt.Errorf("end-point %s: relation cardinality is %s: %w", id, def.Cardinality, endpoint.ErrInvalidArgument)
	}
	return nil
}

// CollectionEndPoint returns the collection end-point id, creating it incomplete on
// first use.
func (t *Transaction) CollectionEndPoint(id endpoint.EndPointID) (*endpoint.CollectionEndPoint, error) {
	if err := t.checkUsable(); err != nil {
		return nil, err
	}
	if ep, ok := t.collections[id]; ok {
		return ep, nil
	}
	if err := t.definitionFor(id, endpoint.CardinalityMany); err != nil {
		return nil, err
	}
	ep, err := endpoint.NewCollectionEndPoint(id, endpoint.Dependencies[[]endpoint.ObjectID]{
		Loader:    t.collectionLoader,
		Provider:  t,
		EventSink: t.eventSink,
		Logger:    t.logger,
	})
	if err != nil {
		return nil, err
	}
	t.collections[id] = ep
	t.virtualOrder = append(t.virtualOrder, id)
	return ep, nil
}

// ObjectEndPoint returns the single-valued end-point id, creating it incomplete on
// first use.
func (t *Transaction) ObjectEndPoint(id endpoint.EndPointID) (*endpoint.ObjectEndPoint, error) {
	if err := t.checkUsable(); err != nil {
		return nil, err
	}
	if ep, ok := t.objects[id]; ok {
		return ep, nil
	}
	if err := t.definitionFor(id, endpoint.CardinalityOne); err != nil {
		return nil, err
	}
	ep, err := endpoint.NewObjectEndPoint(id, endpoint.Dependencies[endpoint.ObjectID]{
		Loader:    t.objectLoader,
		Provider:  t,
		EventSink: t.eventSink,
		Logger:    t.logger,
	})
	if err != nil {
		return nil, err
	}
	t.objects[id] = ep
	t.virtualOrder = append(t.virtualOrder, id)
	return ep, nil
}

func (t *Transaction) virtual(id endpoint.EndPointID) (virtualEndPoint, error) {
	def, err := t.Relation(id.Relation)
	if err != nil {
		return nil, err
	}
	if def.Cardinality == endpoint.CardinalityMany {
		ep, err := t.CollectionEndPoint(id)
		if err != nil {
			return nil, err
		}
		return ep, nil
	}
	ep, err := t.ObjectEndPoint(id)
	if err != nil {
		return nil, err
	}
	return ep, nil
}

func (t *Transaction) existingVirtual(id endpoint.EndPointID) (virtualEndPoint, bool) {
	if ep, ok := t.collections[id]; ok {
		return ep, true
	}
	if ep, ok := t.objects[id]; ok {
		return ep, true
	}
	return nil, false
}

func (t *Transaction) virtualEndPoints() []virtualEndPoint {
	out := make([]virtualEndPoint, 0, len(t.virtualOrder))
	for _, id := range t.virtualOrder {
		if ep, ok := t.existingVirtual(id); ok {
			out = append(out, ep)
		}
	}
	return out
}

func (t *Transaction) knows(id endpoint.EndPointID) bool {
	if _, ok := t.reals[id]; ok {
		return true
	}
	return t.parent != nil && t.parent.knows(id)
}

func (t *Transaction) addReal(r *endpoint.RealEndPoint, original endpoint.ObjectID) {
	t.reals[r.ID()] = &realEntry{endPoint: r, original: original}
	t.realOrder = append(t.realOrder, r.ID())
}

func (t *Transaction) removeReal(id endpoint.EndPointID) {
	delete(t.reals, id)
	if i := slices.Index(t.realOrder, id); i >= 0 {
		t.realOrder = slices.Delete(t.realOrder, i, i+1)
	}
}

// registerOriginal registers r on the virtual end-point its foreign key references.
func (t *Transaction) registerOriginal(r *endpoint.RealEndPoint) error {
	opposite, ok := r.OppositeEndPointID()
	if !ok {
		return nil
	}
	ep, err := t.virtual(opposite)
	if err != nil {
		return err
	}
	return ep.RegisterOriginalOppositeEndPoint(r)
}

// realEndPoint returns the real end-point id of this transaction. A sub-transaction
// imports it from its parent on first use. Unknown ids return nil.
func (t *Transaction) realEndPoint(id endpoint.EndPointID) (*endpoint.RealEndPoint, error) {
	if e, ok := t.reals[id]; ok {
		return e.endPoint, nil
	}
	if t.parent == nil {
		return nil, nil
	}
	source, err := t.parent.realEndPoint(id)
	if err != nil || source == nil {
		return nil, err
	}
	r, err := copyRealEndPoint(source)
	if err != nil {
		return nil, err
	}
	opposite, _ := r.OppositeObjectID()
	t.addReal(r, opposite)
	if err := t.registerOriginal(r); err != nil {
		t.removeReal(id)
		return nil, err
	}
	return r, nil
}

func copyRealEndPoint(source *endpoint.RealEndPoint) (*endpoint.RealEndPoint, error) {
	if opposite, ok := source.OppositeObjectID(); ok {
		return endpoint.NewRealEndPoint(source.ID(), opposite)
	}
	return endpoint.NewDetachedRealEndPoint(source.ID())
}

// RealEndPoint returns the real end-point id, or ErrInvalidOperation if this
// transaction and its ancestors do not know it.
func (t *Transaction) RealEndPoint(id endpoint.EndPointID) (*endpoint.RealEndPoint, error) {
	if err := t.checkUsable(); err != nil {
		return nil, err
	}
	return t.Resolve(id)
}

// Resolve maps a real end-point identity to this transaction's instance.
func (t *Transaction) Resolve(id endpoint.EndPointID) (*endpoint.RealEndPoint, error) {
	r, err := t.realEndPoint(id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("resolve %s: not registered: %w", id, endpoint.ErrInvalidOperation)
	}
	return r, nil
}

// RegisterRealEndPoint registers the real end-point of a loaded object. If it
// references an object, it is registered as an original opposite end-point of that
// object's virtual end-point, which is created incomplete when needed and not loaded.
// A new object registers a detached end-point and sets its foreign key with
// SetOppositeObject.
func (t *Transaction) RegisterRealEndPoint(r *endpoint.RealEndPoint) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if r == nil || r.IsNull() {
		return fmt.Errorf("register real end-point: %w", endpoint.ErrInvalidArgument)
	}
	def, err := t.Relation(r.ID().Relation)
	if err != nil {
		return err
	}
	if r.ObjectID().ClassID != def.RealClass {
		return fmt.Errorf("register real end-point %s: owner is not a %s: %w", r.ID(), def.RealClass, endpoint.ErrInvalidArgument)
	}
	if t.knows(r.ID()) {
		return fmt.Errorf("register real end-point %s: already registered: %w", r.ID(), endpoint.ErrInvalidOperation)
	}

	opposite, _ := r.OppositeObjectID()
	t.addReal(r, opposite)
	if err := t.registerOriginal(r); err != nil {
		t.removeReal(r.ID())
		return err
	}
	t.logger.Debug("Registered real end-point", zap.Stringer("endpoint", r))
	return nil
}

// UnregisterRealEndPoint removes an unchanged real end-point, e.g. when its object is
// evicted. Its virtual end-point is marked incomplete if the end-point backs an item.
func (t *Transaction) UnregisterRealEndPoint(id endpoint.EndPointID) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	entry, ok := t.reals[id]
	if !ok {
		return fmt.Errorf("unregister real end-point %s: not registered: %w", id, endpoint.ErrInvalidOperation)
	}
	if current, _ := entry.endPoint.OppositeObjectID(); current != entry.original {
		return fmt.Errorf("unregister real end-point %s: uncommitted foreign key change: %w", id, endpoint.ErrInvalidOperation)
	}
	if !entry.original.IsNil() {
		if ep, ok := t.existingVirtual(endpoint.OppositeEndPointID(id, entry.original)); ok {
			if err := ep.UnregisterOriginalOppositeEndPoint(entry.endPoint); err != nil {
				return err
			}
		}
	}
	t.removeReal(id)
	return nil
}

// SetOppositeObject changes the foreign key of the real end-point id. The end-point
// leaves the current view of the virtual end-point it referenced and joins the one of
// opposite; both are loaded first. NilObjectID clears the foreign key. An end-point
// that is unsynchronized with its loaded opposite must be synchronized before its
// foreign key can change.
func (t *Transaction) SetOppositeObject(ctx context.Context, id endpoint.EndPointID, opposite endpoint.ObjectID) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	r, err := t.Resolve(id)
	if err != nil {
		return err
	}
	old, hadOld := r.OppositeObjectID()
	if hadOld && old == opposite {
		return nil
	}

	var previous virtualEndPoint
	if hadOld {
		if previous, err = t.virtual(endpoint.OppositeEndPointID(id, old)); err != nil {
			return err
		}
		if err := previous.EnsureDataComplete(ctx); err != nil {
			return err
		}
	}
	if r.SyncState() == endpoint.Unsynchronized {
		return fmt.Errorf("set opposite object %s: end-point is unsynchronized, synchronize it first: %w", id, endpoint.ErrInvalidOperation)
	}

	var target virtualEndPoint
	if !opposite.IsNil() {
		if target, err = t.virtual(endpoint.OppositeEndPointID(id, opposite)); err != nil {
			return err
		}
		if err := target.EnsureDataComplete(ctx); err != nil {
			return err
		}
	}
	if previous != nil && slices.Contains(previous.CurrentOppositeEndPoints(), r) {
		if err := previous.UnregisterCurrentOppositeEndPoint(ctx, r); err != nil {
			return err
		}
	}

	if err := r.SetOppositeObjectID(opposite); err != nil {
		return err
	}
	if target != nil {
		if err := target.RegisterCurrentOppositeEndPoint(ctx, r); err != nil {
			return err
		}
	}
	t.logger.Debug("Changed foreign key", zap.Stringer("endpoint", id), zap.Stringer("opposite", opposite))
	return nil
}

// Unload discards the loaded data of the virtual end-point id. Real end-points it knows
// are kept and classified again on the next load.
func (t *Transaction) Unload(id endpoint.EndPointID) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	ep, ok := t.existingVirtual(id)
	if !ok {
		return nil
	}
	return ep.MarkDataIncomplete()
}

// Unsynchronized returns the loaded virtual end-points that disagree with the foreign
// keys known in memory: they hold items no real end-point backs, or real end-points
// reference them without being part of the loaded data.
func (t *Transaction) Unsynchronized() []endpoint.EndPointID {
	var out []endpoint.EndPointID
	for _, ep := range t.virtualEndPoints() {
		if !ep.IsDataComplete() {
			continue
		}
		if ep.IsSynchronized() == endpoint.Unsynchronized || len(ep.UnsynchronizedOppositeEndPoints()) > 0 {
			out = append(out, ep.ID())
		}
	}
	return out
}

// Commit applies the sync policy, then makes the current views the original ones. A
// sub-transaction first pushes its changed views and foreign keys to its parent.
func (t *Transaction) Commit(ctx context.Context) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if unsynchronized := t.Unsynchronized(); len(unsynchronized) > 0 {
		if t.policy == SyncPolicyReject {
			return fmt.Errorf("commit: %w: %s", ErrUnsynchronized, joinIDs(unsynchronized))
		}
		for _, id := range unsynchronized {
			t.logger.Warn("Committing unsynchronized relation end-point", zap.Stringer("endpoint", id))
		}
	}

	if t.parent != nil {
		if err := t.pushToParent(ctx); err != nil {
			return fmt.Errorf("commit sub-transaction: %w", err)
		}
	}
	for _, ep := range t.virtualEndPoints() {
		if err := ep.Commit(); err != nil {
			return err
		}
	}
	for _, id := range t.realOrder {
		entry := t.reals[id]
		entry.original, _ = entry.endPoint.OppositeObjectID()
	}

	t.logger.Info("Committed transaction",
		zap.Int("virtual_endpoints", len(t.virtualOrder)),
		zap.Int("real_endpoints", len(t.realOrder)),
		zap.Bool("sub_transaction", t.parent != nil),
	)
	return nil
}

func (t *Transaction) pushToParent(ctx context.Context) error {
	p := t.parent
	for _, id := range t.realOrder {
		r := t.reals[id].endPoint
		opposite, _ := r.OppositeObjectID()
		target, err := p.realEndPoint(id)
		if err != nil {
			return err
		}
		if target == nil {
			if target, err = copyRealEndPoint(r); err != nil {
				return err
			}
			p.addReal(target, endpoint.NilObjectID)
			continue
		}
		if err := target.SetOppositeObjectID(opposite); err != nil {
			return err
		}
	}

	for _, id := range t.virtualOrder {
		if ep, ok := t.collections[id]; ok && ep.IsDataComplete() && ep.HasChanged() {
			target, err := p.CollectionEndPoint(id)
			if err != nil {
				return err
			}
			if err := target.SetDataFromSubTransaction(ctx, ep); err != nil {
				return err
			}
		}
		if ep, ok := t.objects[id]; ok && ep.IsDataComplete() && ep.HasChanged() {
			target, err := p.ObjectEndPoint(id)
			if err != nil {
				return err
			}
			if err := target.SetDataFromSubTransaction(ctx, ep); err != nil {
				return err
			}
		}
	}
	return nil
}

// Rollback discards the current views and foreign key changes since the last commit.
func (t *Transaction) Rollback() error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	for _, ep := range t.virtualEndPoints() {
		if err := ep.Rollback(); err != nil {
			return err
		}
	}
	for _, id := range t.realOrder {
		entry := t.reals[id]
		if err := entry.endPoint.SetOppositeObjectID(entry.original); err != nil {
			return err
		}
	}
	t.logger.Debug("Rolled back transaction")
	return nil
}

func joinIDs(ids []endpoint.EndPointID) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, id.String())
	}
	return strings.Join(parts, ", ")
}

package endpoint

import (
	"fmt"

	"relation-manager/core/flatten"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	tagIncomplete = "incomplete"
	tagComplete   = "complete"

	kindCollection = "collection"
	kindObject     = "object"
)

// SerializeState writes state to w in a fixed order: the handles of its collaborators,
// the ordered table of the real end-points it references, then the fields specific to
// the state variant.
func SerializeState[T any](state LoadState[T], w *flatten.Writer) error {
	switch s := state.(type) {
	case *IncompleteState[T]:
		return serializeIncomplete(s, w)
	case *CompleteState[T]:
		return serializeComplete(s, w)
	default:
		return fmt.Errorf("serialize: unsupported load state %T", state)
	}
}

// DeserializeState reads a state written by SerializeState. Handles are resolved
// through the reader's handle table; logger is injected into the restored state.
func DeserializeState[T any](r *flatten.Reader, logger *zap.Logger) (LoadState[T], error) {
	tag, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagIncomplete:
		return deserializeIncomplete[T](r, logger)
	case tagComplete:
		return deserializeComplete[T](r, logger)
	default:
		return nil, fmt.Errorf("%w: unknown load state %q", flatten.ErrFormat, tag)
	}
}

func serializeIncomplete[T any](s *IncompleteState[T], w *flatten.Writer) error {
	w.WriteString(tagIncomplete)
	if err := w.WriteHandle(s.loader); err != nil {
		return err
	}
	table := newEndPointTable()
	for _, r := range s.pending.Values() {
		table.add(r)
	}
	table.write(w)
	writeEndPointID(w, s.id)
	return nil
}

func deserializeIncomplete[T any](r *flatten.Reader, logger *zap.Logger) (*IncompleteState[T], error) {
	obj, err := r.ReadHandle()
	if err != nil {
		return nil, err
	}
	var loader EndPointLoader[T]
	if obj != nil {
		l, ok := obj.(EndPointLoader[T])
		if !ok {
			return nil, fmt.Errorf("%w: handle of type %T is not a loader", flatten.ErrFormat, obj)
		}
		loader = l
	}
	table, err := readEndPointTable(r)
	if err != nil {
		return nil, err
	}
	id, err := readEndPointID(r)
	if err != nil {
		return nil, err
	}

	s := NewIncompleteState(id, loader, logger)
	for _, ep := range table.endPoints {
		s.pending.Set(ep.ObjectID(), ep)
	}
	return s, nil
}

func serializeComplete[T any](s *CompleteState[T], w *flatten.Writer) error {
	w.WriteString(tagComplete)
	if err := w.WriteHandle(s.provider); err != nil {
		return err
	}
	if err := w.WriteHandle(s.eventSink); err != nil {
		return err
	}

	table := newEndPointTable()
	for _, r := range s.dataManager.OriginalOppositeEndPoints() {
		table.add(r)
	}
	for _, r := range s.dataManager.CurrentOppositeEndPoints() {
		table.add(r)
	}
	for _, r := range s.unsynchronized.Values() {
		table.add(r)
	}
	table.write(w)

	switch m := any(s.dataManager).(type) {
	case *CollectionDataManager:
		writeCollectionDataManager(w, m, table)
	case *ObjectDataManager:
		writeObjectDataManager(w, m, table)
	default:
		return fmt.Errorf("serialize: unsupported data manager %T", s.dataManager)
	}

	unsynchronized := s.unsynchronized.Values()
	w.WriteInt(len(unsynchronized))
	for _, r := range unsynchronized {
		w.WriteInt(table.index(r))
	}
	return nil
}

func deserializeComplete[T any](r *flatten.Reader, logger *zap.Logger) (*CompleteState[T], error) {
	providerObj, err := r.ReadHandle()
	if err != nil {
		return nil, err
	}
	var provider RelationEndPointProvider
	if providerObj != nil {
		p, ok := providerObj.(RelationEndPointProvider)
		if !ok {
			return nil, fmt.Errorf("%w: handle of type %T is not a provider", flatten.ErrFormat, providerObj)
		}
		provider = p
	}
	sinkObj, err := r.ReadHandle()
	if err != nil {
		return nil, err
	}
	var sink EventSink
	if sinkObj != nil {
		es, ok := sinkObj.(EventSink)
		if !ok {
			return nil, fmt.Errorf("%w: handle of type %T is not an event sink", flatten.ErrFormat, sinkObj)
		}
		sink = es
	}

	table, err := readEndPointTable(r)
	if err != nil {
		return nil, err
	}

	kind, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	var manager any
	switch kind {
	case kindCollection:
		manager, err = readCollectionDataManager(r, table)
	case kindObject:
		manager, err = readObjectDataManager(r, table)
	default:
		err = fmt.Errorf("%w: unknown data manager %q", flatten.ErrFormat, kind)
	}
	if err != nil {
		return nil, err
	}
	dataManager, ok := manager.(DataManager[T])
	if !ok {
		return nil, fmt.Errorf("%w: %s data manager does not match the end-point data kind", flatten.ErrFormat, kind)
	}

	s := NewCompleteState(dataManager, provider, sink, logger)
	count, err := r.ReadInt()
	if err != nil {
		return nil, err
	}
	for i := 0; i < count; i++ {
		ep, err := table.read(r)
		if err != nil {
			return nil, err
		}
		s.unsynchronized.Set(ep.ObjectID(), ep)
	}
	return s, nil
}

func writeCollectionDataManager(w *flatten.Writer, m *CollectionDataManager, table *endPointTable) {
	w.WriteString(kindCollection)
	writeEndPointID(w, m.id)
	writeObjectIDs(w, m.original.Keys())
	writeObjectIDs(w, m.current.Keys())
	writeEndPointRefs(w, m.originalOpposites.Values(), table)
	writeEndPointRefs(w, m.currentOpposites.Values(), table)
	writeObjectIDs(w, m.itemsWithoutEndPoint.Keys())
}

func readCollectionDataManager(r *flatten.Reader, table *endPointTable) (*CollectionDataManager, error) {
	id, err := readEndPointID(r)
	if err != nil {
		return nil, err
	}
	m := NewCollectionDataManager(id)
	original, err := readObjectIDs(r)
	if err != nil {
		return nil, err
	}
	current, err := readObjectIDs(r)
	if err != nil {
		return nil, err
	}
	originalOpposites, err := readEndPointRefs(r, table)
	if err != nil {
		return nil, err
	}
	currentOpposites, err := readEndPointRefs(r, table)
	if err != nil {
		return nil, err
	}
	withoutEndPoint, err := readObjectIDs(r)
	if err != nil {
		return nil, err
	}

	for _, item := range original {
		m.original.Set(item, struct{}{})
	}
	for _, item := range current {
		m.current.Set(item, struct{}{})
	}
	for _, ep := range originalOpposites {
		m.originalOpposites.Set(ep.ObjectID(), ep)
	}
	for _, ep := range currentOpposites {
		m.currentOpposites.Set(ep.ObjectID(), ep)
	}
	for _, item := range withoutEndPoint {
		m.itemsWithoutEndPoint.Set(item, struct{}{})
	}
	return m, nil
}

func writeObjectDataManager(w *flatten.Writer, m *ObjectDataManager, table *endPointTable) {
	w.WriteString(kindObject)
	writeEndPointID(w, m.id)
	writeObjectID(w, m.originalID)
	writeObjectID(w, m.currentID)
	w.WriteInt(table.index(m.originalEndPoint))
	w.WriteInt(table.index(m.currentEndPoint))
	writeObjectID(w, m.itemWithoutEndPoint)
}

func readObjectDataManager(r *flatten.Reader, table *endPointTable) (*ObjectDataManager, error) {
	id, err := readEndPointID(r)
	if err != nil {
		return nil, err
	}
	m := NewObjectDataManager(id)
	if m.originalID, err = readObjectID(r); err != nil {
		return nil, err
	}
	if m.currentID, err = readObjectID(r); err != nil {
		return nil, err
	}
	if m.originalEndPoint, err = table.read(r); err != nil {
		return nil, err
	}
	if m.currentEndPoint, err = table.read(r); err != nil {
		return nil, err
	}
	if m.itemWithoutEndPoint, err = readObjectID(r); err != nil {
		return nil, err
	}
	return m, nil
}

// endPointTable is the ordered set of real end-points a state references. It is
// written once; the state's fields refer to it by index so shared end-points stay
// shared after deserialization.
type endPointTable struct {
	endPoints []*RealEndPoint
	indexes   map[*RealEndPoint]int
}

func newEndPointTable() *endPointTable {
	return &endPointTable{endPoints: make([]*RealEndPoint, 0), indexes: make(map[*RealEndPoint]int)}
}

func (t *endPointTable) add(r *RealEndPoint) {
	if _, ok := t.indexes[r]; ok {
		return
	}
	t.indexes[r] = len(t.endPoints)
	t.endPoints = append(t.endPoints, r)
}

// index returns the position of r, -1 for nil.
func (t *endPointTable) index(r *RealEndPoint) int {
	if r == nil {
		return -1
	}
	return t.indexes[r]
}

func (t *endPointTable) read(r *flatten.Reader) (*RealEndPoint, error) {
	i, err := r.ReadInt()
	if err != nil {
		return nil, err
	}
	if i == -1 {
		return nil, nil
	}
	if i < 0 || i >= len(t.endPoints) {
		return nil, fmt.Errorf("%w: end-point index %d out of range", flatten.ErrFormat, i)
	}
	return t.endPoints[i], nil
}

func (t *endPointTable) write(w *flatten.Writer) {
	w.WriteInt(len(t.endPoints))
	for _, r := range t.endPoints {
		writeEndPointID(w, r.id)
		w.WriteBool(r.hasOpposite)
		writeObjectID(w, r.opposite)
		w.WriteInt(int(r.sync))
	}
}

func readEndPointTable(r *flatten.Reader) (*endPointTable, error) {
	count, err := r.ReadInt()
	if err != nil {
		return nil, err
	}
	table := newEndPointTable()
	for i := 0; i < count; i++ {
		id, err := readEndPointID(r)
		if err != nil {
			return nil, err
		}
		hasOpposite, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		opposite, err := readObjectID(r)
		if err != nil {
			return nil, err
		}
		sync, err := r.ReadInt()
		if err != nil {
			return nil, err
		}
		table.add(&RealEndPoint{id: id, opposite: opposite, hasOpposite: hasOpposite, sync: SyncState(sync)})
	}
	return table, nil
}

func writeEndPointRefs(w *flatten.Writer, endPoints []*RealEndPoint, table *endPointTable) {
	w.WriteInt(len(endPoints))
	for _, r := range endPoints {
		w.WriteInt(table.index(r))
	}
}

func readEndPointRefs(r *flatten.Reader, table *endPointTable) ([]*RealEndPoint, error) {
	count, err := r.ReadInt()
	if err != nil {
		return nil, err
	}
	out := make([]*RealEndPoint, 0, count)
	for i := 0; i < count; i++ {
		ep, err := table.read(r)
		if err != nil {
			return nil, err
		}
		if ep == nil {
			return nil, fmt.Errorf("%w: missing end-point reference", flatten.ErrFormat)
		}
		out = append(out, ep)
	}
	return out, nil
}

func writeEndPointID(w *flatten.Writer, id EndPointID) {
	writeObjectID(w, id.ObjectID)
	w.WriteString(id.Relation)
	w.WriteInt(int(id.Direction))
}

func readEndPointID(r *flatten.Reader) (EndPointID, error) {
	obj, err := readObjectID(r)
	if err != nil {
		return EndPointID{}, err
	}
	relation, err := r.ReadString()
	if err != nil {
		return EndPointID{}, err
	}
	direction, err := r.ReadInt()
	if err != nil {
		return EndPointID{}, err
	}
	return EndPointID{ObjectID: obj, Relation: relation, Direction: Direction(direction)}, nil
}

func writeObjectID(w *flatten.Writer, id ObjectID) {
	if id.IsNil() {
		w.WriteString("")
		w.WriteString("")
		return
	}
	w.WriteString(id.ClassID)
	w.WriteString(id.Value.String())
}

func readObjectID(r *flatten.Reader) (ObjectID, error) {
	classID, err := r.ReadString()
	if err != nil {
		return NilObjectID, err
	}
	raw, err := r.ReadString()
	if err != nil {
		return NilObjectID, err
	}
	if classID == "" {
		return NilObjectID, nil
	}
	value, err := uuid.Parse(raw)
	if err != nil {
		return NilObjectID, fmt.Errorf("%w: object id %s: %v", flatten.ErrFormat, classID, err)
	}
	return ObjectID{ClassID: classID, Value: value}, nil
}

func writeObjectIDs(w *flatten.Writer, ids []ObjectID) {
	w.WriteInt(len(ids))
	for _, id := range ids {
		writeObjectID(w, id)
	}
}

func readObjectIDs(r *flatten.Reader) ([]ObjectID, error) {
	count, err := r.ReadInt()
	if err != nil {
		return nil, err
	}
	out := make([]ObjectID, 0, count)
	for i := 0; i < count; i++ {
		id, err := readObjectID(r)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

package endpoint

// ObjectDataManager backs a complete single-valued virtual end-point. NilObjectID means
// the end-point references no object.
type ObjectDataManager struct {
	id                  EndPointID
	originalID          ObjectID
	currentID           ObjectID
	originalEndPoint    *RealEndPoint
	currentEndPoint     *RealEndPoint
	itemWithoutEndPoint ObjectID
}

// NewObjectDataManager creates an empty data manager for id.
func NewObjectDataManager(id EndPointID) *ObjectDataManager {
	return &ObjectDataManager{id: id}
}

// ObjectDataManagerFactory is the DataManagerFactory of single-valued end-points.
func ObjectDataManagerFactory(id EndPointID) DataManager[ObjectID] {
	return NewObjectDataManager(id)
}

func (m *ObjectDataManager) EndPointID() EndPointID { return m.id }

func (m *ObjectDataManager) ContainsOriginalObjectID(id ObjectID) bool {
	return !id.IsNil() && m.originalID == id
}

func (m *ObjectDataManager) ContainsOriginalItemWithoutEndPoint(id ObjectID) bool {
	return !id.IsNil() && m.itemWithoutEndPoint == id
}

func (m *ObjectDataManager) RegisterOriginalOppositeEndPoint(r *RealEndPoint) error {
	const op = "register original opposite end-point"
	if err := requireRegistrable(op, m.id, r); err != nil {
		return err
	}
	if m.originalEndPoint != nil {
		return invalidOperation(op, m.id, "already holds original end-point %s", m.originalEndPoint.ID())
	}
	item := r.ObjectID()
	if !m.originalID.IsNil() && m.originalID != item {
		return invalidOperation(op, m.id, "already references %s", m.originalID)
	}

	unchanged := m.currentID == m.originalID
	if m.itemWithoutEndPoint == item {
		m.itemWithoutEndPoint = NilObjectID
	}
	m.originalID = item
	m.originalEndPoint = r
	if unchanged {
		m.currentID = item
	}
	if m.currentID == item && m.currentEndPoint == nil {
		m.currentEndPoint = r
	}
	return nil
}

func (m *ObjectDataManager) UnregisterOriginalOppositeEndPoint(r *RealEndPoint) error {
	const op = "unregister original opposite end-point"
	if err := requireRegistrable(op, m.id, r); err != nil {
		return err
	}
	if m.originalEndPoint == nil || m.originalEndPoint.ID() != r.ID() {
		return invalidOperation(op, m.id, "%s is not registered", r.ID())
	}

	if m.currentEndPoint != nil && m.currentEndPoint.ID() == r.ID() {
		m.currentEndPoint = nil
		m.currentID = NilObjectID
	}
	m.originalEndPoint = nil
	m.originalID = NilObjectID
	return nil
}

func (m *ObjectDataManager) RegisterOriginalItemWithoutEndPoint(id ObjectID) error {
	const op = "register original item without end-point"
	if id.IsNil() {
		return invalidArgument(op, m.id, "item is the null-object sentinel")
	}
	if !m.originalID.IsNil() {
		return invalidOperation(op, m.id, "already references %s", m.originalID)
	}
	unchanged := m.currentID == m.originalID
	m.originalID = id
	m.itemWithoutEndPoint = id
	if unchanged {
		m.currentID = id
	}
	return nil
}

func (m *ObjectDataManager) UnregisterOriginalItemWithoutEndPoint(id ObjectID) error {
	if id.IsNil() || m.itemWithoutEndPoint != id {
		return invalidOperation("unregister original item without end-point", m.id, "%s is not an item without end-point", id)
	}
	if m.currentID == id && m.currentEndPoint == nil {
		m.currentID = NilObjectID
	}
	m.itemWithoutEndPoint = NilObjectID
	m.originalID = NilObjectID
	return nil
}

func (m *ObjectDataManager) RegisterCurrentOppositeEndPoint(r *RealEndPoint) error {
	const op = "register current opposite end-point"
	if err := requireRegistrable(op, m.id, r); err != nil {
		return err
	}
	if m.currentEndPoint != nil {
		return invalidOperation(op, m.id, "already holds current end-point %s", m.currentEndPoint.ID())
	}
	m.currentEndPoint = r
	m.currentID = r.ObjectID()
	return nil
}

func (m *ObjectDataManager) UnregisterCurrentOppositeEndPoint(r *RealEndPoint) error {
	const op = "unregister current opposite end-point"
	if err := requireRegistrable(op, m.id, r); err != nil {
		return err
	}
	if m.currentEndPoint == nil || m.currentEndPoint.ID() != r.ID() {
		return invalidOperation(op, m.id, "%s is not registered", r.ID())
	}
	m.currentEndPoint = nil
	m.currentID = NilObjectID
	return nil
}

func (m *ObjectDataManager) OriginalOppositeEndPoints() []*RealEndPoint {
	if m.originalEndPoint == nil {
		return []*RealEndPoint{}
	}
	return []*RealEndPoint{m.originalEndPoint}
}

func (m *ObjectDataManager) CurrentOppositeEndPoints() []*RealEndPoint {
	if m.currentEndPoint == nil {
		return []*RealEndPoint{}
	}
	return []*RealEndPoint{m.currentEndPoint}
}

func (m *ObjectDataManager) OriginalItemsWithoutEndPoints() []ObjectID {
	if m.itemWithoutEndPoint.IsNil() {
		return []ObjectID{}
	}
	return []ObjectID{m.itemWithoutEndPoint}
}

func (m *ObjectDataManager) Data() ObjectID { return m.currentID }

func (m *ObjectDataManager) OriginalData() ObjectID { return m.originalID }

func (m *ObjectDataManager) HasDataChanged() bool {
	return m.currentID != m.originalID
}

func (m *ObjectDataManager) Commit() {
	m.originalID = m.currentID
	m.originalEndPoint = m.currentEndPoint
	m.itemWithoutEndPoint = NilObjectID
	if m.currentEndPoint == nil && !m.currentID.IsNil() {
		m.itemWithoutEndPoint = m.currentID
	}
}

func (m *ObjectDataManager) Rollback() {
	m.currentID = m.originalID
	m.currentEndPoint = m.originalEndPoint
}

func (m *ObjectDataManager) SetDataFromSubTransaction(source DataManager[ObjectID], provider RelationEndPointProvider) error {
	if source == nil || provider == nil {
		return invalidArgument("set data from sub-transaction", m.id, "source and provider are required")
	}
	var current *RealEndPoint
	for _, r := range source.CurrentOppositeEndPoints() {
		local, err := provider.Resolve(r.ID())
		if err != nil {
			return err
		}
		current = local
	}
	m.currentID = source.Data()
	m.currentEndPoint = current
	return nil
}

package endpoint

// CollectionDataManager backs a complete collection-valued virtual end-point. Items keep
// the order in which they were loaded or added.
type CollectionDataManager struct {
	id                   EndPointID
	original             *orderedMap[ObjectID, struct{}]
	current              *orderedMap[ObjectID, struct{}]
	originalOpposites    *orderedMap[ObjectID, *RealEndPoint]
	currentOpposites     *orderedMap[ObjectID, *RealEndPoint]
	itemsWithoutEndPoint *orderedMap[ObjectID, struct{}]
}

// NewCollectionDataManager creates an empty data manager for id.
func NewCollectionDataManager(id EndPointID) *CollectionDataManager {
	return &CollectionDataManager{
		id:                   id,
		original:             newOrderedMap[ObjectID, struct{}](),
		current:              newOrderedMap[ObjectID, struct{}](),
		originalOpposites:    newOrderedMap[ObjectID, *RealEndPoint](),
		currentOpposites:     newOrderedMap[ObjectID, *RealEndPoint](),
		itemsWithoutEndPoint: newOrderedMap[ObjectID, struct{}](),
	}
}

// CollectionDataManagerFactory is the DataManagerFactory of collection end-points.
func CollectionDataManagerFactory(id EndPointID) DataManager[[]ObjectID] {
	return NewCollectionDataManager(id)
}

func (m *CollectionDataManager) EndPointID() EndPointID { return m.id }

func (m *CollectionDataManager) ContainsOriginalObjectID(id ObjectID) bool {
	return m.original.Has(id)
}

func (m *CollectionDataManager) ContainsOriginalItemWithoutEndPoint(id ObjectID) bool {
	return m.itemsWithoutEndPoint.Has(id)
}

func (m *CollectionDataManager) RegisterOriginalOppositeEndPoint(r *RealEndPoint) error {
	const op = "register original opposite end-point"
	if err := requireRegistrable(op, m.id, r); err != nil {
		return err
	}
	item := r.ObjectID()
	if m.originalOpposites.Has(item) {
		return invalidOperation(op, m.id, "%s is already registered", r.ID())
	}

	if m.itemsWithoutEndPoint.Has(item) {
		m.itemsWithoutEndPoint.Delete(item)
	} else {
		m.original.Set(item, struct{}{})
		m.current.Set(item, struct{}{})
	}
	m.originalOpposites.Set(item, r)
	if m.current.Has(item) {
		m.currentOpposites.Set(item, r)
	}
	return nil
}

func (m *CollectionDataManager) UnregisterOriginalOppositeEndPoint(r *RealEndPoint) error {
	const op = "unregister original opposite end-point"
	if err := requireRegistrable(op, m.id, r); err != nil {
		return err
	}
	item := r.ObjectID()
	registered, ok := m.originalOpposites.Get(item)
	if !ok || registered.ID() != r.ID() {
		return invalidOperation(op, m.id, "%s is not registered", r.ID())
	}

	m.originalOpposites.Delete(item)
	if current, ok := m.currentOpposites.Get(item); ok && current.ID() == r.ID() {
		m.currentOpposites.Delete(item)
		m.current.Delete(item)
	}
	m.original.Delete(item)
	return nil
}

func (m *CollectionDataManager) RegisterOriginalItemWithoutEndPoint(id ObjectID) error {
	const op = "register original item without end-point"
	if id.IsNil() {
		return invalidArgument(op, m.id, "item is the null-object sentinel")
	}
	if m.original.Has(id) {
		return invalidOperation(op, m.id, "%s is already part of the data", id)
	}
	m.original.Set(id, struct{}{})
	m.current.Set(id, struct{}{})
	m.itemsWithoutEndPoint.Set(id, struct{}{})
	return nil
}

func (m *CollectionDataManager) UnregisterOriginalItemWithoutEndPoint(id ObjectID) error {
	if !m.itemsWithoutEndPoint.Has(id) {
		return invalidOperation("unregister original item without end-point", m.id, "%s is not an item without end-point", id)
	}
	m.itemsWithoutEndPoint.Delete(id)
	m.original.Delete(id)
	if !m.currentOpposites.Has(id) {
		m.current.Delete(id)
	}
	return nil
}

func (m *CollectionDataManager) RegisterCurrentOppositeEndPoint(r *RealEndPoint) error {
	const op = "register current opposite end-point"
	if err := requireRegistrable(op, m.id, r); err != nil {
		return err
	}
	item := r.ObjectID()
	if m.currentOpposites.Has(item) {
		return invalidOperation(op, m.id, "%s is already registered", r.ID())
	}
	m.currentOpposites.Set(item, r)
	m.current.Set(item, struct{}{})
	return nil
}

func (m *CollectionDataManager) UnregisterCurrentOppositeEndPoint(r *RealEndPoint) error {
	const op = "unregister current opposite end-point"
	if err := requireRegistrable(op, m.id, r); err != nil {
		return err
	}
	item := r.ObjectID()
	registered, ok := m.currentOpposites.Get(item)
	if !ok || registered.ID() != r.ID() {
		return invalidOperation(op, m.id, "%s is not registered", r.ID())
	}
	m.currentOpposites.Delete(item)
	m.current.Delete(item)
	return nil
}

func (m *CollectionDataManager) OriginalOppositeEndPoints() []*RealEndPoint {
	return m.originalOpposites.Values()
}

func (m *CollectionDataManager) CurrentOppositeEndPoints() []*RealEndPoint {
	return m.currentOpposites.Values()
}

func (m *CollectionDataManager) OriginalItemsWithoutEndPoints() []ObjectID {
	return m.itemsWithoutEndPoint.Keys()
}

func (m *CollectionDataManager) Data() []ObjectID {
	return m.current.Keys()
}

func (m *CollectionDataManager) OriginalData() []ObjectID {
	return m.original.Keys()
}

func (m *CollectionDataManager) HasDataChanged() bool {
	return !m.original.SameKeys(m.current)
}

// Commit makes the current view the original one. Committed items that have no current
// opposite end-point are items without end-point from now on.
func (m *CollectionDataManager) Commit() {
	m.original = m.current.Clone()
	m.originalOpposites = m.currentOpposites.Clone()
	m.itemsWithoutEndPoint.Clear()
	for _, item := range m.original.Keys() {
		if !m.originalOpposites.Has(item) {
			m.itemsWithoutEndPoint.Set(item, struct{}{})
		}
	}
}

func (m *CollectionDataManager) Rollback() {
	m.current = m.original.Clone()
	m.currentOpposites = m.originalOpposites.Clone()
}

func (m *CollectionDataManager) SetDataFromSubTransaction(source DataManager[[]ObjectID], provider RelationEndPointProvider) error {
	const op = "set data from sub-transaction"
	if source == nil || provider == nil {
		return invalidArgument(op, m.id, "source and provider are required")
	}

	opposites := newOrderedMap[ObjectID, *RealEndPoint]()
	for _, r := range source.CurrentOppositeEndPoints() {
		local, err := provider.Resolve(r.ID())
		if err != nil {
			return err
		}
		opposites.Set(local.ObjectID(), local)
	}
	current := newOrderedMap[ObjectID, struct{}]()
	for _, item := range source.Data() {
		current.Set(item, struct{}{})
	}

	m.current = current
	m.currentOpposites = opposites
	return nil
}

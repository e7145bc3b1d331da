package endpoint

import "fmt"

// SyncState is the synchronization state of a real end-point, and the answer of a
// virtual end-point to IsSynchronized.
type SyncState int

const (
	// SyncUndetermined means the state cannot be evaluated before the opposite
	// virtual end-point is loaded.
	SyncUndetermined SyncState = iota
	Synchronized
	Unsynchronized
)

func (s SyncState) String() string {
	switch s {
	case Synchronized:
		return "synchronized"
	case Unsynchronized:
		return "unsynchronized"
	default:
		return "undetermined"
	}
}

// RealEndPoint is the foreign-key holding side of a bidirectional relation.
type RealEndPoint struct {
	id          EndPointID
	opposite    ObjectID
	hasOpposite bool
	null        bool
	sync        SyncState
}

// NewRealEndPoint creates the real end-point id referencing opposite. The null-object
// sentinel is not a valid opposite; use NewDetachedRealEndPoint for a null foreign key.
func NewRealEndPoint(id EndPointID, opposite ObjectID) (*RealEndPoint, error) {
	if err := validateRealID(id); err != nil {
		return nil, err
	}
	if opposite.IsNil() {
		return nil, invalidArgument("new real end-point", id, "opposite object is the null-object sentinel")
	}
	return &RealEndPoint{id: id, opposite: opposite, hasOpposite: true}, nil
}

// NewDetachedRealEndPoint creates the real end-point id whose foreign key is null.
func NewDetachedRealEndPoint(id EndPointID) (*RealEndPoint, error) {
	if err := validateRealID(id); err != nil {
		return nil, err
	}
	return &RealEndPoint{id: id}, nil
}

// NullRealEndPoint returns the sentinel end-point of a null object in relation.
func NullRealEndPoint(relation string) *RealEndPoint {
	return &RealEndPoint{
		id:   EndPointID{ObjectID: NilObjectID, Relation: relation, Direction: DirectionReal},
		null: true,
	}
}

func validateRealID(id EndPointID) error {
	if id.Direction != DirectionReal {
		return invalidArgument("new real end-point", id, "identity is not on the real side")
	}
	if id.ObjectID.IsNil() {
		return invalidArgument("new real end-point", id, "owner is the null-object sentinel, use NullRealEndPoint")
	}
	if id.Relation == "" {
		return invalidArgument("new real end-point", id, "empty relation")
	}
	return nil
}

func (r *RealEndPoint) ID() EndPointID { return r.id }

// ObjectID returns the object holding the foreign key.
func (r *RealEndPoint) ObjectID() ObjectID { return r.id.ObjectID }

// OppositeObjectID returns the referenced object, if any.
func (r *RealEndPoint) OppositeObjectID() (ObjectID, bool) {
	return r.opposite, r.hasOpposite
}

// OppositeEndPointID returns the identity of the virtual end-point r points at.
func (r *RealEndPoint) OppositeEndPointID() (EndPointID, bool) {
	if !r.hasOpposite {
		return EndPointID{}, false
	}
	return OppositeEndPointID(r.id, r.opposite), true
}

// SetOppositeObjectID changes the foreign key. NilObjectID detaches the end-point.
func (r *RealEndPoint) SetOppositeObjectID(opposite ObjectID) error {
	if r.null {
		return invalidOperation("set opposite", r.id, "null end-point cannot reference an object")
	}
	r.opposite = opposite
	r.hasOpposite = !opposite.IsNil()
	return nil
}

// IsNull reports whether r is the null-object sentinel end-point.
func (r *RealEndPoint) IsNull() bool { return r.null }

func (r *RealEndPoint) SyncState() SyncState { return r.sync }

func (r *RealEndPoint) MarkSynchronized() {
	if !r.null {
		r.sync = Synchronized
	}
}

func (r *RealEndPoint) MarkUnsynchronized() {
	if !r.null {
		r.sync = Unsynchronized
	}
}

// ResetSyncState returns the end-point to SyncUndetermined.
func (r *RealEndPoint) ResetSyncState() {
	r.sync = SyncUndetermined
}

func (r *RealEndPoint) String() string {
	if r.null {
		return fmt.Sprintf("null(%s)", r.id.Relation)
	}
	if !r.hasOpposite {
		return fmt.Sprintf("%s -> <null>", r.id)
	}
	return fmt.Sprintf("%s -> %s", r.id, r.opposite)
}

func requireRegistrable(op string, owner EndPointID, r *RealEndPoint) error {
	if r == nil {
		return invalidArgument(op, owner, "real end-point is required")
	}
	if r.null {
		return invalidArgument(op, owner, "the null end-point cannot be registered")
	}
	return nil
}

package endpoint

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ObjectID identifies one domain object. The zero value is the null-object sentinel.
type ObjectID struct {
	// ClassID is the mapped class of the object (e.g. "Order").
	ClassID string
	// Value is the primary key of the object.
	Value uuid.UUID
}

// NilObjectID is the null-object sentinel.
var NilObjectID = ObjectID{}

// NewObjectID builds an ObjectID, rejecting an empty class or a nil value.
func NewObjectID(classID string, value uuid.UUID) (ObjectID, error) {
	if classID == "" {
		return NilObjectID, fmt.Errorf("object id: empty class id: %w", ErrInvalidArgument)
	}
	if value == uuid.Nil {
		return NilObjectID, fmt.Errorf("object id %s: nil value: %w", classID, ErrInvalidArgument)
	}
	return ObjectID{ClassID: classID, Value: value}, nil
}

// ParseObjectID parses the "Class|uuid" form produced by String.
func ParseObjectID(s string) (ObjectID, error) {
	classID, raw, ok := strings.Cut(s, "|")
	if !ok {
		return NilObjectID, fmt.Errorf("object id %q: missing separator: %w", s, ErrInvalidArgument)
	}
	value, err := uuid.Parse(raw)
	if err != nil {
		return NilObjectID, fmt.Errorf("object id %q: %v: %w", s, err, ErrInvalidArgument)
	}
	return NewObjectID(classID, value)
}

// IsNil reports whether o is the null-object sentinel.
func (o ObjectID) IsNil() bool {
	return o == NilObjectID
}

func (o ObjectID) String() string {
	if o.IsNil() {
		return "<null>"
	}
	return o.ClassID + "|" + o.Value.String()
}

// Direction is the side of a relation an end-point sits on.
type Direction int

const (
	// DirectionReal is the foreign-key holding side.
	DirectionReal Direction = iota
	// DirectionVirtual is the side derived from the real end-points pointing at it.
	DirectionVirtual
)

// Opposite returns the other side.
func (d Direction) Opposite() Direction {
	if d == DirectionReal {
		return DirectionVirtual
	}
	return DirectionReal
}

func (d Direction) String() string {
	switch d {
	case DirectionReal:
		return "real"
	case DirectionVirtual:
		return "virtual"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Cardinality is the cardinality of the virtual side of a relation.
type Cardinality int

const (
	CardinalityOne Cardinality = iota
	CardinalityMany
)

func (c Cardinality) String() string {
	if c == CardinalityMany {
		return "many"
	}
	return "one"
}

// ParseCardinality accepts "one" and "many".
func ParseCardinality(s string) (Cardinality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "one":
		return CardinalityOne, nil
	case "many":
		return CardinalityMany, nil
	default:
		return CardinalityOne, fmt.Errorf("cardinality %q: %w", s, ErrInvalidArgument)
	}
}

// RelationDefinition describes a bidirectional relation between a foreign-key holding
// class (RealClass) and the class it references (VirtualClass).
type RelationDefinition struct {
	// Name identifies the relation (e.g. "Order.Items").
	Name string
	// RealClass is the class holding the foreign key.
	RealClass string
	// VirtualClass is the referenced class.
	VirtualClass string
	// Cardinality of the virtual side.
	Cardinality Cardinality
}

// Validate checks that all fields are set.
func (r RelationDefinition) Validate() error {
	switch {
	case r.Name == "":
		return fmt.Errorf("relation: empty name: %w", ErrInvalidArgument)
	case r.RealClass == "":
		return fmt.Errorf("relation %s: empty real class: %w", r.Name, ErrInvalidArgument)
	case r.VirtualClass == "":
		return fmt.Errorf("relation %s: empty virtual class: %w", r.Name, ErrInvalidArgument)
	}
	return nil
}

// ClassFor returns the class owning the end-point on side d.
func (r RelationDefinition) ClassFor(d Direction) string {
	if d == DirectionReal {
		return r.RealClass
	}
	return r.VirtualClass
}

// EndPointID returns the identity of obj's end-point on side d of this relation.
func (r RelationDefinition) EndPointID(obj ObjectID, d Direction) EndPointID {
	return EndPointID{ObjectID: obj, Relation: r.Name, Direction: d}
}

// EndPointID identifies one relation end-point. It is comparable and used as a map key.
type EndPointID struct {
	ObjectID  ObjectID
	Relation  string
	Direction Direction
}

func (id EndPointID) String() string {
	return fmt.Sprintf("%s/%s:%s", id.ObjectID, id.Relation, id.Direction)
}

// IsVirtual reports whether id addresses a virtual end-point.
func (id EndPointID) IsVirtual() bool {
	return id.Direction == DirectionVirtual
}

// OppositeEndPointID returns the identity of the end-point on the other side of id when
// it references oppositeObject.
func OppositeEndPointID(id EndPointID, oppositeObject ObjectID) EndPointID {
	return EndPointID{ObjectID: oppositeObject, Relation: id.Relation, Direction: id.Direction.Opposite()}
}

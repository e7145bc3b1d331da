package database

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"relation-manager/core/endpoint"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUnmappedRelation is returned for a relation without a table mapping.
var ErrUnmappedRelation = errors.New("relation has no table mapping")

// RelationSource loads the foreign-key side of mapped relations from the database.
// Identical concurrent loads share one query.
type RelationSource struct {
	db       *gorm.DB
	mappings map[string]RelationMapping
	sf       singleflight.Group
}

// NewRelationSource creates a source over db for the given mappings.
func NewRelationSource(db *gorm.DB, mappings []RelationMapping) (*RelationSource, error) {
	byName := make(map[string]RelationMapping, len(mappings))
	for _, m := range mappings {
		if err := m.Validate(); err != nil {
			return nil, err
		}
		byName[m.Name] = m
	}
	return &RelationSource{db: db, mappings: byName}, nil
}

// Mapping returns the mapping of a relation.
func (s *RelationSource) Mapping(relation string) (RelationMapping, bool) {
	m, ok := s.mappings[relation]
	return m, ok
}

// LoadRelatedObjects returns the objects of relation.RealClass whose foreign key
// references owner, ordered by the mapping's order column.
func (s *RelationSource) LoadRelatedObjects(ctx context.Context, relation endpoint.RelationDefinition, owner endpoint.ObjectID) ([]endpoint.ObjectID, error) {
	m, ok := s.mappings[relation.Name]
	if !ok {
		return nil, fmt.Errorf("load %s: %w", relation.Name, ErrUnmappedRelation)
	}
	if owner.ClassID != relation.VirtualClass {
		return nil, fmt.Errorf("load %s: owner %s is not a %s: %w", relation.Name, owner, relation.VirtualClass, endpoint.ErrInvalidArgument)
	}

	v, err, _ := s.sf.Do(relation.Name+"|"+owner.String(), func() (any, error) {
		return s.query(ctx, m, relation.RealClass, owner)
	})
	if err != nil {
		return nil, err
	}
	// Callers own the returned slice.
	return slices.Clone(v.([]endpoint.ObjectID)), nil
}

func (s *RelationSource) query(ctx context.Context, m RelationMapping, realClass string, owner endpoint.ObjectID) ([]endpoint.ObjectID, error) {
	orderColumn := m.OrderColumn
	if orderColumn == "" {
		orderColumn = m.KeyColumn
	}

	var keys []string
	err := s.db.WithContext(ctx).
		Table(m.Table).
		Where(clause.Eq{Column: clause.Column{Name: m.ForeignKeyColumn}, Value: owner.Value.String()}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: orderColumn}}).
		Pluck(m.KeyColumn, &keys).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load %s for %s: %w", m.Name, owner, err)
	}

	items := make([]endpoint.ObjectID, 0, len(keys))
	for _, key := range keys {
		value, err := uuid.Parse(key)
		if err != nil {
			return nil, fmt.Errorf("relation %s: row key %q in %s: %w", m.Name, key, m.Table, err)
		}
		item, err := endpoint.NewObjectID(realClass, value)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

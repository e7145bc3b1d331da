package database

import (
	"errors"
	"fmt"
	"regexp"

	"relation-manager/core/endpoint"

	"github.com/spf13/viper"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// RelationMapping binds a relation to the table holding its foreign key.
type RelationMapping struct {
	// Name identifies the relation (e.g. "Order.Items").
	Name string `mapstructure:"name"`
	// RealClass is the class of the rows in Table.
	RealClass string `mapstructure:"real_class"`
	// VirtualClass is the class the foreign key references.
	VirtualClass string `mapstructure:"virtual_class"`
	// Cardinality is "one" or "many".
	Cardinality string `mapstructure:"cardinality"`
	// Table holds the real objects.
	Table string `mapstructure:"table"`
	// KeyColumn is the primary key column of Table.
	KeyColumn string `mapstructure:"key_column"`
	// ForeignKeyColumn references the virtual object.
	ForeignKeyColumn string `mapstructure:"foreign_key_column"`
	// OrderColumn sorts collection items. Defaults to KeyColumn.
	OrderColumn string `mapstructure:"order_column"`
}

// Definition converts the mapping into a relation definition.
func (m RelationMapping) Definition() (endpoint.RelationDefinition, error) {
	cardinality, err := endpoint.ParseCardinality(m.Cardinality)
	if err != nil {
		return endpoint.RelationDefinition{}, fmt.Errorf("relation %s: %w", m.Name, err)
	}
	def := endpoint.RelationDefinition{
		Name:         m.Name,
		RealClass:    m.RealClass,
		VirtualClass: m.VirtualClass,
		Cardinality:  cardinality,
	}
	return def, def.Validate()
}

// Columns returns the columns the mapping reads.
func (m RelationMapping) Columns() []string {
	columns := []string{m.KeyColumn, m.ForeignKeyColumn}
	if m.OrderColumn != "" && m.OrderColumn != m.KeyColumn {
		columns = append(columns, m.OrderColumn)
	}
	return columns
}

// Validate checks the mapping is complete and its table and columns are plain identifiers.
func (m RelationMapping) Validate() error {
	if _, err := m.Definition(); err != nil {
		return err
	}
	if !validIdentifier(m.Table) {
		return fmt.Errorf("relation %s: invalid table %q", m.Name, m.Table)
	}
	for _, col := range m.Columns() {
		if !validIdentifier(col) {
			return fmt.Errorf("relation %s: invalid column %q", m.Name, col)
		}
	}
	return nil
}

// LoadMappings reads the relation mappings from a YAML file under the "relations" key.
func LoadMappings(path string) ([]RelationMapping, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read relation mappings %s: %w", path, err)
	}

	var mappings []RelationMapping
	if err := v.UnmarshalKey("relations", &mappings); err != nil {
		return nil, fmt.Errorf("failed to decode relation mappings %s: %w", path, err)
	}
	if len(mappings) == 0 {
		return nil, fmt.Errorf("no relations defined in %s", path)
	}

	seen := make(map[string]struct{}, len(mappings))
	var errs []error
	for _, m := range mappings {
		if err := m.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := seen[m.Name]; dup {
			errs = append(errs, fmt.Errorf("relation %s: defined twice", m.Name))
		}
		seen[m.Name] = struct{}{}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return mappings, nil
}

// Definitions converts mappings into relation definitions.
func Definitions(mappings []RelationMapping) ([]endpoint.RelationDefinition, error) {
	defs := make([]endpoint.RelationDefinition, 0, len(mappings))
	for _, m := range mappings {
		def, err := m.Definition()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

package database

import (
	"os"
	"path/filepath"
	"testing"

	"relation-manager/core/endpoint"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMappingFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMappings(t *testing.T) {
	path := writeMappingFile(t, `
relations:
  - name: Order.Items
    real_class: OrderItem
    virtual_class: Order
    cardinality: many
    table: order_items
    key_column: id
    foreign_key_column: order_id
    order_column: position
  - name: Customer.Profile
    real_class: Profile
    virtual_class: Customer
    cardinality: one
    table: profiles
    key_column: id
    foreign_key_column: customer_id
`)

	mappings, err := LoadMappings(path)
	require.NoError(t, err)
	require.Len(t, mappings, 2)
	assert.Equal(t, orderItemsMapping, mappings[0])
	assert.Equal(t, []string{"id", "customer_id"}, mappings[1].Columns())

	defs, err := Definitions(mappings)
	require.NoError(t, err)
	assert.Equal(t, endpoint.RelationDefinition{
		Name:         "Customer.Profile",
		RealClass:    "Profile",
		VirtualClass: "Customer",
		Cardinality:  endpoint.CardinalityOne,
	}, defs[1])
}

func TestLoadMappings_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "Empty",
			content: "relations: []\n",
			want:    "no relations defined",
		},
		{
			name: "Bad Cardinality",
			content: `
relations:
  - {name: A.B, real_class: B, virtual_class: A, cardinality: few, table: b, key_column: id, foreign_key_column: a_id}
`,
			want: "cardinality",
		},
		{
			name: "Duplicate",
			content: `
relations:
  - {name: A.B, real_class: B, virtual_class: A, cardinality: one, table: b, key_column: id, foreign_key_column: a_id}
  - {name: A.B, real_class: B, virtual_class: A, cardinality: one, table: b, key_column: id, foreign_key_column: a_id}
`,
			want: "defined twice",
		},
		{
			name: "Bad Table",
			content: `
relations:
  - {name: A.B, real_class: B, virtual_class: A, cardinality: one, table: "b c", key_column: id, foreign_key_column: a_id}
`,
			want: "invalid table",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadMappings(writeMappingFile(t, tt.content))
			assert.ErrorContains(t, err, tt.want)
		})
	}

	_, err := LoadMappings(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

package transaction

// Config holds the relation settings of the application.
type Config struct {
	// SyncPolicy is applied on commit (tolerate, reject).
	SyncPolicy string `mapstructure:"sync_policy" default:"tolerate"`
	// MappingFile is the YAML file mapping relations to tables.
	MappingFile string `mapstructure:"mapping_file" default:"relations.yaml"`
}

// Package database handles database connections, relation mappings and schema inspection.
//
// It provides a wrapper around GORM to configure MySQL or SQLite connections based on the
// application's configuration.
//
// # Relation Mappings
//
// A RelationMapping binds a relation to the table holding its foreign key. Mappings are
// read from a YAML file with LoadMappings. RelationSource uses them to load the objects
// referencing an owner; it is the item source of root transactions.
//
// # Schema Inspection
//
// GetTableColumns retrieves table columns for MySQL and SQLite. ValidateMapping uses it to
// report mapped columns a table lacks.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	mappings, err := database.LoadMappings(cfg.Relations.MappingFile)
//	source, err := database.NewRelationSource(db, mappings)
package database

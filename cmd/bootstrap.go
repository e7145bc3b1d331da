package cmd

import (
	"fmt"

	"relation-manager/core/config"
	"relation-manager/core/database"
	"relation-manager/core/logger"
	"relation-manager/core/storage"
	"relation-manager/core/transaction"
	"relation-manager/feature/relations"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// environment is what every command builds from the configuration.
type environment struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *gorm.DB
	mappings []database.RelationMapping
	store    *storage.SnapshotStore
	service  *relations.Service
}

// bootstrap loads configuration, connects to the database and builds the relation
// service. Storage is optional unless requireStorage is set.
func bootstrap(requireStorage bool) (*environment, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	policy, err := transaction.ParseSyncPolicy(cfg.Relations.SyncPolicy)
	if err != nil {
		return nil, err
	}

	mappings, err := database.LoadMappings(cfg.Relations.MappingFile)
	if err != nil {
		return nil, err
	}
	defs, err := database.Definitions(mappings)
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}
	source, err := database.NewRelationSource(db, mappings)
	if err != nil {
		return nil, err
	}

	var store *storage.SnapshotStore
	if client, err := storage.NewClient(cfg.Storage); err != nil {
		if requireStorage {
			return nil, fmt.Errorf("failed to connect to storage: %w", err)
		}
		l.Warn("Snapshot storage unavailable", zap.Error(err))
	} else {
		store = storage.NewSnapshotStore(client, cfg.Storage.Bucket)
	}

	l.Debug("Loaded relation mappings",
		zap.Int("relations", len(mappings)),
		zap.String("sync_policy", string(policy)),
	)

	return &environment{
		cfg:      cfg,
		logger:   l,
		db:       db,
		mappings: mappings,
		store:    store,
		service:  relations.NewService(source, defs, policy, store, l),
	}, nil
}

package relations

import (
	"context"
	"errors"
	"fmt"

	"relation-manager/core/endpoint"
	"relation-manager/core/flatten"
	"relation-manager/core/logger"
	"relation-manager/core/reconcile"
	"relation-manager/core/storage"
	"relation-manager/core/transaction"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrSnapshotsDisabled is returned by snapshot operations when no store is configured.
var ErrSnapshotsDisabled = errors.New("snapshot storage is not configured")

// maxConcurrentChecks bounds CheckMany.
const maxConcurrentChecks = 4

// CheckRequest selects the end-point to check.
type CheckRequest struct {
	Relation string
	Owner    endpoint.ObjectID
	// Claimed are objects the caller believes reference Owner. They are registered
	// as real end-points before the end-point loads.
	Claimed []endpoint.ObjectID
	// Synchronize moves unsynchronized claims into the data.
	Synchronize bool
}

// Service inspects relation end-points. Every call runs in its own transaction.
type Service struct {
	source    transaction.ItemSource
	relations []endpoint.RelationDefinition
	policy    transaction.SyncPolicy
	store     *storage.SnapshotStore
	logger    *zap.Logger
}

// NewService creates a relation service. store may be nil.
func NewService(source transaction.ItemSource, relations []endpoint.RelationDefinition, policy transaction.SyncPolicy, store *storage.SnapshotStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		source:    source,
		relations: relations,
		policy:    policy,
		store:     store,
		logger:    logger,
	}
}

// Relations returns the configured relation definitions.
func (s *Service) Relations() []endpoint.RelationDefinition {
	return s.relations
}

func (s *Service) begin(relation string, owner endpoint.ObjectID) (*transaction.Transaction, endpoint.RelationDefinition, endpoint.EndPointID, error) {
	tx, err := transaction.New(transaction.Options{
		Relations:  s.relations,
		Source:     s.source,
		SyncPolicy: s.policy,
		Logger:     s.logger,
	})
	if err != nil {
		return nil, endpoint.RelationDefinition{}, endpoint.EndPointID{}, err
	}
	def, err := tx.Relation(relation)
	if err != nil {
		return nil, endpoint.RelationDefinition{}, endpoint.EndPointID{}, err
	}
	return tx, def, def.EndPointID(owner, endpoint.DirectionVirtual), nil
}

// Check loads the end-point, optionally synchronizes it and commits under the
// configured sync policy. A rejected commit is reported, not returned.
func (s *Service) Check(ctx context.Context, req CheckRequest) (*Report, error) {
	tx, def, id, err := s.begin(req.Relation, req.Owner)
	if err != nil {
		return nil, err
	}
	l := logger.WithEndPoint(s.logger, id)

	for _, item := range req.Claimed {
		r, err := endpoint.NewRealEndPoint(def.EndPointID(item, endpoint.DirectionReal), req.Owner)
		if err != nil {
			return nil, err
		}
		if err := tx.RegisterRealEndPoint(r); err != nil {
			return nil, err
		}
	}

	var report *Report
	if def.Cardinality == endpoint.CardinalityMany {
		ep, err := tx.CollectionEndPoint(id)
		if err != nil {
			return nil, err
		}
		report, _, err = check(ctx, def, ep, req.Synchronize, collectionItems)
		if err != nil {
			return nil, err
		}
	} else {
		ep, err := tx.ObjectEndPoint(id)
		if err != nil {
			return nil, err
		}
		report, _, err = check(ctx, def, ep, req.Synchronize, objectItems)
		if err != nil {
			return nil, err
		}
	}

	report.Policy = string(tx.SyncPolicy())
	if err := tx.Commit(ctx); err != nil {
		if !errors.Is(err, transaction.ErrUnsynchronized) {
			return nil, err
		}
		report.CommitError = err.Error()
		if err := tx.Rollback(); err != nil {
			return nil, err
		}
	}

	l.Info("Checked relation end-point",
		zap.Int("items", report.Summary.Items),
		zap.Int("unsynchronized", report.Summary.Unsynchronized),
		zap.Bool("rejected", report.CommitError != ""),
	)
	return report, nil
}

func check[T any](ctx context.Context, def endpoint.RelationDefinition, ep *endpoint.VirtualEndPoint[T], synchronize bool, items func(T) []endpoint.ObjectID) (*Report, []endpoint.ObjectID, error) {
	if err := ep.EnsureDataComplete(ctx); err != nil {
		return nil, nil, err
	}
	if synchronize {
		for _, r := range ep.UnsynchronizedOppositeEndPoints() {
			if err := ep.SynchronizeOppositeEndPoint(ctx, r); err != nil {
				return nil, nil, err
			}
		}
	}
	return describe(ctx, def, ep, items)
}

// CheckMany checks the end-points of several owners of one relation concurrently.
// Reports are returned in owner order.
func (s *Service) CheckMany(ctx context.Context, relation string, owners []endpoint.ObjectID) ([]*Report, error) {
	reports := make([]*Report, len(owners))
	g, ctxGroup := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentChecks)

	for i, owner := range owners {
		g.Go(func() error {
			report, err := s.Check(ctxGroup, CheckRequest{Relation: relation, Owner: owner})
			if err != nil {
				return fmt.Errorf("%s: %w", owner, err)
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// SnapshotKey returns the storage key of the snapshot of id.
func SnapshotKey(id endpoint.EndPointID) string {
	return fmt.Sprintf("snapshots/%s/%s/%s.json", id.Relation, id.ObjectID.ClassID, id.ObjectID.Value)
}

// SnapshotPrefix returns the storage prefix of all snapshots of relation.
func SnapshotPrefix(relation string) string {
	return fmt.Sprintf("snapshots/%s/", relation)
}

// Snapshot loads the end-point and stores its serialized load state. It returns the
// report of the stored state and its key.
func (s *Service) Snapshot(ctx context.Context, relation string, owner endpoint.ObjectID) (*Report, string, error) {
	if s.store == nil {
		return nil, "", ErrSnapshotsDisabled
	}
	tx, def, id, err := s.begin(relation, owner)
	if err != nil {
		return nil, "", err
	}

	w := flatten.NewWriter(tx.Handles())
	var report *Report
	if def.Cardinality == endpoint.CardinalityMany {
		ep, err := tx.CollectionEndPoint(id)
		if err != nil {
			return nil, "", err
		}
		report, err = snapshot(ctx, def, ep, w, collectionItems)
		if err != nil {
			return nil, "", err
		}
	} else {
		ep, err := tx.ObjectEndPoint(id)
		if err != nil {
			return nil, "", err
		}
		report, err = snapshot(ctx, def, ep, w, objectItems)
		if err != nil {
			return nil, "", err
		}
	}

	data, err := w.Bytes()
	if err != nil {
		return nil, "", err
	}
	key := SnapshotKey(id)
	if err := s.store.Save(ctx, key, data); err != nil {
		return nil, "", err
	}

	logger.WithEndPoint(s.logger, id).Info("Stored relation snapshot",
		zap.String("key", key),
		zap.Int("items", report.Summary.Items),
	)
	return report, key, nil
}

func snapshot[T any](ctx context.Context, def endpoint.RelationDefinition, ep *endpoint.VirtualEndPoint[T], w *flatten.Writer, items func(T) []endpoint.ObjectID) (*Report, error) {
	if err := ep.EnsureDataComplete(ctx); err != nil {
		return nil, err
	}
	if err := endpoint.SerializeState[T](ep.State(), w); err != nil {
		return nil, err
	}
	report, _, err := describe(ctx, def, ep, items)
	return report, err
}

// Restore reads the stored snapshot of the end-point into a fresh transaction and
// reports it without touching the database.
func (s *Service) Restore(ctx context.Context, relation string, owner endpoint.ObjectID) (*Report, error) {
	report, _, err := s.restore(ctx, relation, owner)
	return report, err
}

func (s *Service) restore(ctx context.Context, relation string, owner endpoint.ObjectID) (*Report, []endpoint.ObjectID, error) {
	if s.store == nil {
		return nil, nil, ErrSnapshotsDisabled
	}
	tx, def, id, err := s.begin(relation, owner)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.store.Load(ctx, SnapshotKey(id))
	if err != nil {
		return nil, nil, err
	}
	r, err := flatten.NewReader(data, tx.Handles())
	if err != nil {
		return nil, nil, err
	}

	if def.Cardinality == endpoint.CardinalityMany {
		ep, err := tx.CollectionEndPoint(id)
		if err != nil {
			return nil, nil, err
		}
		return restore(ctx, def, ep, r, s.logger, collectionItems)
	}
	ep, err := tx.ObjectEndPoint(id)
	if err != nil {
		return nil, nil, err
	}
	return restore(ctx, def, ep, r, s.logger, objectItems)
}

func restore[T any](ctx context.Context, def endpoint.RelationDefinition, ep *endpoint.VirtualEndPoint[T], r *flatten.Reader, l *zap.Logger, items func(T) []endpoint.ObjectID) (*Report, []endpoint.ObjectID, error) {
	state, err := endpoint.DeserializeState[T](r, l)
	if err != nil {
		return nil, nil, err
	}
	if !r.Done() {
		return nil, nil, fmt.Errorf("snapshot %s: trailing values: %w", ep.ID(), flatten.ErrFormat)
	}
	if err := ep.SetState(state); err != nil {
		return nil, nil, err
	}
	return describe(ctx, def, ep, items)
}

// Drift compares the stored snapshot of the end-point with the data loaded now.
func (s *Service) Drift(ctx context.Context, relation string, owner endpoint.ObjectID) (*reconcile.ReconcileReport, error) {
	stored, snapshotItems, err := s.restore(ctx, relation, owner)
	if err != nil {
		return nil, err
	}
	if !stored.Complete {
		return nil, fmt.Errorf("snapshot of %s holds no loaded data: %w", stored.EndPoint, endpoint.ErrInvalidOperation)
	}

	tx, def, id, err := s.begin(relation, owner)
	if err != nil {
		return nil, err
	}
	var liveItems []endpoint.ObjectID
	if def.Cardinality == endpoint.CardinalityMany {
		ep, err := tx.CollectionEndPoint(id)
		if err != nil {
			return nil, err
		}
		_, liveItems, err = check(ctx, def, ep, false, collectionItems)
		if err != nil {
			return nil, err
		}
	} else {
		ep, err := tx.ObjectEndPoint(id)
		if err != nil {
			return nil, err
		}
		_, liveItems, err = check(ctx, def, ep, false, objectItems)
		if err != nil {
			return nil, err
		}
	}

	report := reconcile.Reconcile(id, snapshotItems, liveItems)
	logger.WithEndPoint(s.logger, id).Info("Compared relation snapshot",
		zap.Int("missing_snapshot", report.Summary.MissingSnapshot),
		zap.Int("missing_live", report.Summary.MissingLive),
		zap.Int("mismatches", report.Summary.Mismatches),
	)
	return &report, nil
}

// DeleteSnapshot removes the stored snapshot of the end-point.
func (s *Service) DeleteSnapshot(ctx context.Context, relation string, owner endpoint.ObjectID) error {
	if s.store == nil {
		return ErrSnapshotsDisabled
	}
	_, _, id, err := s.begin(relation, owner)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, SnapshotKey(id))
}

// PurgeSnapshots removes every stored snapshot of relation.
func (s *Service) PurgeSnapshots(ctx context.Context, relation string) (int, error) {
	if s.store == nil {
		return 0, ErrSnapshotsDisabled
	}
	if _, _, _, err := s.begin(relation, endpoint.NilObjectID); err != nil {
		return 0, err
	}
	n, err := s.store.Purge(ctx, SnapshotPrefix(relation))
	s.logger.Info("Purged relation snapshots", zap.String("relation", relation), zap.Int("count", n), zap.Error(err))
	return n, err
}

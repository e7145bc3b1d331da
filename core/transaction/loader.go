package transaction

import (
	"context"

	"relation-manager/core/endpoint"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// loader loads the virtual end-points of one transaction. A root transaction queries
// its ItemSource; a sub-transaction reads the current view of its parent. The real
// end-points of the loaded objects are registered before the data is marked complete,
// so a consistent result comes back synchronized.
type loader[T any] struct {
	tx *Transaction
}

func (l *loader[T]) LoadAndGetNewState(ctx context.Context, ep *endpoint.VirtualEndPoint[T]) (state *endpoint.CompleteState[T], err error) {
	id := ep.ID()
	ctx, span := l.tx.tracer.Start(ctx, "load-virtual-endpoint",
		trace.WithAttributes(attribute.String("relation", id.Relation)),
		trace.WithAttributes(attribute.String("endpoint", id.String())),
		trace.WithAttributes(attribute.Bool("sub_transaction", l.tx.parent != nil)),
	)
	defer func() { recordAnyErrorAndEndSpan(err, span) }()

	items, err := l.tx.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if err = l.tx.adoptLoadedItem(id, item); err != nil {
			return nil, err
		}
	}
	if err = ep.MarkDataComplete(items); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("items", len(items)))

	state, _ = ep.State().(*endpoint.CompleteState[T])
	return state, nil
}

func recordAnyErrorAndEndSpan(err error, span trace.Span) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// fetch returns the objects referencing the owner of id, in result order.
func (t *Transaction) fetch(ctx context.Context, id endpoint.EndPointID) ([]endpoint.ObjectID, error) {
	def, err := t.Relation(id.Relation)
	if err != nil {
		return nil, err
	}
	if t.parent == nil {
		return t.source.LoadRelatedObjects(ctx, def, id.ObjectID)
	}

	if def.Cardinality == endpoint.CardinalityMany {
		ep, err := t.parent.CollectionEndPoint(id)
		if err != nil {
			return nil, err
		}
		return ep.Data(ctx)
	}
	ep, err := t.parent.ObjectEndPoint(id)
	if err != nil {
		return nil, err
	}
	obj, err := ep.Data(ctx)
	if err != nil || obj.IsNil() {
		return nil, err
	}
	return []endpoint.ObjectID{obj}, nil
}

// adoptLoadedItem makes sure the real end-point of a loaded item is known. A root
// transaction creates it referencing the owner of id unless the item's end-point is
// already registered; a sub-transaction imports its parent's.
func (t *Transaction) adoptLoadedItem(id endpoint.EndPointID, item endpoint.ObjectID) error {
	realID := endpoint.EndPointID{ObjectID: item, Relation: id.Relation, Direction: endpoint.DirectionReal}
	if t.parent != nil {
		_, err := t.realEndPoint(realID)
		return err
	}
	if _, ok := t.reals[realID]; ok {
		return nil
	}
	r, err := endpoint.NewRealEndPoint(realID, id.ObjectID)
	if err != nil {
		return err
	}
	t.addReal(r, id.ObjectID)
	if err := t.registerOriginal(r); err != nil {
		t.removeReal(realID)
		return err
	}
	return nil
}

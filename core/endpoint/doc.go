// Package endpoint implements the lazy-loading and synchronization engine for virtual
// relation end-points.
//
// A bidirectional relation has two sides. The real side holds the foreign key
// (RealEndPoint). The virtual side (VirtualEndPoint) is a collection or a single
// reference whose content has to be derived by querying for the real end-points that
// point at it.
//
// # Load states
//
// Every virtual end-point holds exactly one LoadState:
//
//   - IncompleteState: the data is unknown. Real end-points discovered so far are kept
//     in a pending map; registering them never triggers a load. Every other operation
//     loads the data through the EndPointLoader and forwards to the new complete state.
//   - CompleteState: the data is materialized in a DataManager. Real end-points
//     registered later are classified against the loaded items.
//
// The transition back from complete to incomplete (MarkDataIncomplete) is only allowed
// while the end-point has no pending changes, and it carries every known real end-point
// over to the new incomplete state.
//
// # Inconsistencies
//
// Two kinds of inconsistent foreign-key data are tolerated and recorded instead of
// raised: loaded items without a registered real end-point (items without end-point)
// and registered real end-points whose object is not part of the loaded data
// (unsynchronized opposite end-points). IsSynchronized, Synchronize and
// SynchronizeOppositeEndPoint expose and resolve them.
//
// # Usage
//
//	ep, err := endpoint.NewCollectionEndPoint(id, endpoint.Dependencies[[]endpoint.ObjectID]{
//	    Loader:    loader,
//	    Provider:  provider,
//	    EventSink: endpoint.NewLoggingEventSink(log),
//	    Logger:    log,
//	})
//	items, err := ep.Data(ctx) // loads on first access
package endpoint

package endpoint

// LoadState is the load state of a virtual end-point. It is either *IncompleteState[T]
// or *CompleteState[T]; VirtualEndPoint switches on the concrete type.
type LoadState[T any] interface {
	IsDataComplete() bool
	HasChanged() bool
	IsSynchronized() SyncState
	CanBeMarkedIncomplete() bool

	loadState()
}

var (
	_ LoadState[[]ObjectID] = (*IncompleteState[[]ObjectID])(nil)
	_ LoadState[[]ObjectID] = (*CompleteState[[]ObjectID])(nil)
	_ LoadState[ObjectID]   = (*IncompleteState[ObjectID])(nil)
	_ LoadState[ObjectID]   = (*CompleteState[ObjectID])(nil)
)

package persistence

// Persistence bundles the store interfaces so the lifecycle
// can depend on a single abstraction.
type Persistence struct {
	Snapshots SnapshotStore
	Events    EventStore
}

// NewInMemory returns a Persistence backed entirely by memory.
func NewInMemory() Persistence {
	return Persistence{
		Snapshots: NewInMemorySnapshotStore(),
		Events:    NewInMemoryEventStore(),
	}
}

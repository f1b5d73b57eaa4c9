package domain

import "context"

// SnapshotBuilder produces a fresh, sorted snapshot of all visible players
type SnapshotBuilder interface {
	Build(ctx context.Context) (Snapshot, error)
}

// SnapshotSource exposes the most recently built snapshot
type SnapshotSource interface {
	Latest() Snapshot
}

// Monitor watches the bus for player changes and feeds new snapshots
// to a notifier until it is stopped or the connection is lost
type Monitor interface {
	// Start subscribes to bus signals and runs the watch loop in the background
	Start(ctx context.Context) error

	// Stop gracefully stops the monitor and waits for the loop to exit
	Stop(ctx context.Context) error

	// State reports the current lifecycle state
	State() WatcherState

	// Done is closed when the watch loop exits
	Done() <-chan struct{}
}

// Publisher receives every snapshot delivered to the callback
type Publisher interface {
	Publish(snapshot Snapshot)
}

// Fetcher defines the interface for retrieving album artwork
type Fetcher interface {
	// Fetch downloads or reads image data from a URL or local path
	// Returns the raw image bytes or an error
	Fetch(ctx context.Context, url string) ([]byte, error)
}

package events

import "github.com/asaskevich/EventBus"

// GlobalBus is the shared event bus for the entire application
var GlobalBus EventBus.Bus

func init() {
	GlobalBus = EventBus.New()
}

// Event types for application-wide coordination
const (
	// Shutdown events
	EventShutdownRequested = "app:shutdown:requested"

	// Upload job events. Handlers run on the job goroutine.
	EventJobStarted  = "upload:job:started"  // func(upload.JobInfo)
	EventItemStarted = "upload:item:started" // func(upload.ItemResult)
	EventItemDone    = "upload:item:done"    // func(upload.ItemResult)
	EventJobFinished = "upload:job:finished" // func(upload.Summary)

	// Project session events
	EventProjectOpened = "project:opened" // func(id string)
	EventProjectClosed = "project:closed" // func(id string)

	// Watcher events
	EventWatcherChanged = "watcher:changed" // func(path string)
)

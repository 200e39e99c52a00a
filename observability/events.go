package observability

// Event types emitted by the emitter package.
const (
	EventEmitterCreate EventType = "emitter.create"
	EventEmitterSet    EventType = "emitter.set"
	EventEmitterClose  EventType = "emitter.close"
)

// Event types emitted by the broadcast package.
const (
	EventBroadcastPublish EventType = "broadcast.publish"
	EventBroadcastDeliver EventType = "broadcast.deliver"
)

// Event types emitted by the storage package.
const (
	EventStorageSelect  EventType = "storage.select"
	EventStorageMigrate EventType = "storage.migrate"
	EventStorageCorrupt EventType = "storage.corrupt"
)

// Event types emitted by the refs package.
const (
	EventRefExecute EventType = "ref.execute"
	EventRefSettle  EventType = "ref.settle"
)

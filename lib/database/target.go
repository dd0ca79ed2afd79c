package database

// Target describes a single operation against the database.
// Applications usually implement it with their own type that enumerates all endpoints,
// NewTarget builds a plain value for ad hoc use.
type Target interface {
	// Path of the node the operation applies to.
	Path() string
	// Task to perform on the node.
	Task() Task
	// OnDisconnect registers a write to run once the client disconnects instead of running it now.
	OnDisconnect() bool
	// LocalEvents lets listeners on this client see the intermediate values of a transaction.
	LocalEvents() bool
}

type target struct {
	path         string
	task         Task
	onDisconnect bool
	localEvents  bool
}

func (t target) Path() string       { return t.path }
func (t target) Task() Task         { return t.task }
func (t target) OnDisconnect() bool { return t.onDisconnect }
func (t target) LocalEvents() bool  { return t.localEvents }

// TargetOption configures a target created with NewTarget.
type TargetOption func(*target)

// WithOnDisconnect makes a write target register itself for the next disconnect.
func WithOnDisconnect() TargetOption {
	return func(t *target) { t.onDisconnect = true }
}

// WithLocalEvents makes a transaction target publish intermediate values locally.
func WithLocalEvents() TargetOption {
	return func(t *target) { t.localEvents = true }
}

// NewTarget returns an immutable Target.
func NewTarget(path string, task Task, opts ...TargetOption) Target {
	t := target{path: path, task: task}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

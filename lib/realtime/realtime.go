package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/nora/lib/database"
	"github.com/ValentinKolb/nora/lib/db"
	"github.com/ValentinKolb/nora/lib/store"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = logger.GetLogger("realtime")

var (
	// ErrClosed is reported by every operation issued after Close.
	ErrClosed = errors.New("realtime: database is closed")
	// ErrMaxRetries is reported by transactions that lost the race too often.
	ErrMaxRetries = errors.New("realtime: transaction exceeded the maximum number of attempts")
)

const (
	DefaultPollTimeout           = 30 * time.Second
	DefaultMaxTransactionRetries = 25
)

// Database implements database.Backend on top of a store.IStore.
//
// All operations run on their own goroutines and report through callbacks. Writes registered
// with OnDisconnect* are bound to the session of the database and applied by the store once the
// session disconnects, either through Close or because the server expired it.
type Database struct {
	store       store.IStore
	session     string
	pollTimeout time.Duration
	maxRetries  int

	listeners *xsync.MapOf[uint64, *listener]
	nextID    atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex // guards closed and wg.Add
	closed    bool
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option configures a Database.
type Option func(*Database)

// WithPollTimeout sets how long a single Watch request may block before it is renewed.
func WithPollTimeout(d time.Duration) Option {
	return func(db *Database) { db.pollTimeout = d }
}

// WithSession sets the session on-disconnect writes are registered for. Defaults to a random UUID.
func WithSession(session string) Option {
	return func(db *Database) { db.session = session }
}

// WithMaxTransactionRetries limits how often a transaction block is run.
func WithMaxTransactionRetries(n int) Option {
	return func(db *Database) { db.maxRetries = n }
}

// New creates a database on top of s.
func New(s store.IStore, opts ...Option) *Database {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Database{
		store:       s,
		session:     uuid.NewString(),
		pollTimeout: DefaultPollTimeout,
		maxRetries:  DefaultMaxTransactionRetries,
		listeners:   xsync.NewMapOf[uint64, *listener](),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.maxRetries < 1 {
		d.maxRetries = 1
	}
	return d
}

// Session returns the session on-disconnect writes are registered for.
func (d *Database) Session() string {
	return d.session
}

// Reference implements database.Backend.
func (d *Database) Reference(path string) database.Reference {
	p, err := db.ParsePath(path)
	if err != nil {
		return &reference{db: d, raw: path, err: store.NewError(store.RetCInvalidPath, err.Error())}
	}
	return &reference{db: d, path: p}
}

// Push returns a reference to a new child of path. Keys of pushed children sort in creation order.
func (d *Database) Push(path string) database.Reference {
	ref := d.Reference(path).(*reference)
	if ref.err != nil {
		return ref
	}
	return ref.child(uuid.Must(uuid.NewV7()).String())
}

// Close stops all listeners, waits for pending operations and disconnects the session,
// which applies its on-disconnect writes.
func (d *Database) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()

		d.cancel()
		d.wg.Wait()
		err = d.store.Disconnect(d.session)
		if err != nil {
			log.Warningf("failed to disconnect session %s: %v", d.session, err)
		}
	})
	return err
}

// async runs fn on a tracked goroutine. It reports false if the database is already closed.
func (d *Database) async(fn func()) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		fn()
	}()
	return true
}

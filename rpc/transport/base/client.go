package base

import (
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/nora/rpc/common"
	"github.com/ValentinKolb/nora/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

var (
	errTransportClosed = errors.New("transport is closed")
	errTimeout         = errors.New("request timed out")
)

// initialBackoff is the pause after the first failed attempt, it doubles with every retry
const initialBackoff = 50 * time.Millisecond

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to an endpoint
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// response is what the reader hands to a waiting request
type response struct {
	data []byte
	err  error
}

// pooledConn is one of the connections of the pool. Requests are written under writeMu,
// responses are read by a single reader goroutine and matched by request id.
type pooledConn struct {
	endpoint string
	owner    *clientTransport

	writeMu sync.Mutex // guards conn and serializes writes
	conn    net.Conn

	pending *xsync.MapOf[uint64, chan response]
	done    chan struct{} // closed when the pool is closed
}

// clientTransport implements the client side of the frame protocol
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector IClientConnector
	config    common.ClientConfig

	poolMu sync.RWMutex
	pool   []*pooledConn

	roundRobin atomic.Uint64
	requestIDs atomic.Uint64
	closed     atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{connector: connector}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	endpoints := config.Transport.Endpoints
	if len(endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	// Connect replaces an existing pool
	t.closePool()
	t.config = config
	t.closed.Store(false)

	perEndpoint := max(config.Transport.ConnectionsPerEndpoint, 1)
	pool := make([]*pooledConn, 0, len(endpoints)*perEndpoint)

	for _, endpoint := range endpoints {
		for i := 0; i < perEndpoint; i++ {
			c := &pooledConn{
				endpoint: endpoint,
				owner:    t,
				pending:  xsync.NewMapOf[uint64, chan response](),
				done:     make(chan struct{}),
			}
			if err := c.dial(); err != nil {
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, perEndpoint, err)
				continue
			}
			pool = append(pool, c)
			go c.readLoop()
		}
	}

	if len(pool) == 0 {
		return fmt.Errorf("failed to connect to any endpoint")
	}

	t.poolMu.Lock()
	t.pool = pool
	t.poolMu.Unlock()

	Logger.Infof("Opened %d of %d connections to %d endpoints using %s transport",
		len(pool), len(endpoints)*perEndpoint, len(endpoints), t.connector.GetName())
	return nil
}

// Send writes the request to the next connection of the pool and waits for its response.
// Failed attempts are retried on the following connections with exponential backoff.
func (t *clientTransport) Send(databaseID uint64, req []byte) ([]byte, error) {
	if t.closed.Load() {
		return nil, errTransportClosed
	}

	requestID := t.requestIDs.Add(1)
	attempts := max(t.config.Transport.RetryCount, 1)
	backoff := initialBackoff

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		c := t.next()
		if c == nil {
			return nil, fmt.Errorf("no active connections available")
		}

		data, err := c.roundTrip(databaseID, requestID, req, t.timeout())
		if err == nil {
			return data, nil
		}
		lastErr = err
		Logger.Debugf("Request attempt %d/%d to %s failed: %v", attempt, attempts, c.endpoint, err)

		if attempt == attempts || t.closed.Load() {
			break
		}
		time.Sleep(jitter(backoff))
		backoff *= 2
	}

	return nil, fmt.Errorf("failed to send request after %d attempts: %w", attempts, lastErr)
}

func (t *clientTransport) Close() error {
	t.closed.Store(true)
	t.closePool()
	return nil
}

// --------------------------------------------------------------------------
// Pool
// --------------------------------------------------------------------------

// next picks a connection round robin, nil if the pool is empty
func (t *clientTransport) next() *pooledConn {
	t.poolMu.RLock()
	defer t.poolMu.RUnlock()

	switch len(t.pool) {
	case 0:
		return nil
	case 1:
		return t.pool[0]
	default:
		return t.pool[t.roundRobin.Add(1)%uint64(len(t.pool))]
	}
}

// closePool closes all connections and stops their readers
func (t *clientTransport) closePool() {
	t.poolMu.Lock()
	pool := t.pool
	t.pool = nil
	t.poolMu.Unlock()

	for _, c := range pool {
		close(c.done)
		c.writeMu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
		c.writeMu.Unlock()
	}
}

// timeout is the time a single attempt may take, zero means no limit
func (t *clientTransport) timeout() time.Duration {
	return time.Duration(t.config.TimeoutSecond) * time.Second
}

// jitter spreads d by +-10%
func jitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.9 + 0.2*rand.Float64()))
}

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

// roundTrip writes one request frame and waits for the matching response
func (c *pooledConn) roundTrip(databaseID, requestID uint64, req []byte, timeout time.Duration) ([]byte, error) {
	respCh := make(chan response, 1)
	c.pending.Store(requestID, respCh)
	defer c.pending.Delete(requestID)

	c.writeMu.Lock()
	conn := c.conn
	if conn == nil {
		c.writeMu.Unlock()
		return nil, fmt.Errorf("connection to %s is closed", c.endpoint)
	}
	if timeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	err := writeFrame(conn, databaseID, requestID, req)
	c.writeMu.Unlock()
	if err != nil {
		return nil, err
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case r := <-respCh:
		return r.data, r.err
	case <-expired:
		return nil, errTimeout
	}
}

// deliver hands a response to the request waiting for it. A request that already
// received a response (or gave up) is skipped.
func (c *pooledConn) deliver(requestID uint64, r response) bool {
	respCh, ok := c.pending.Load(requestID)
	if !ok {
		return false
	}
	select {
	case respCh <- r:
	default:
	}
	return true
}

// readLoop reads response frames until the pool is closed. No read deadline is set,
// every request enforces its own timeout in roundTrip.
func (c *pooledConn) readLoop() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.writeMu.Lock()
		conn := c.conn
		c.writeMu.Unlock()
		if conn == nil {
			return
		}

		databaseID, requestID, data, err := readFrame(conn, nil)
		if err == nil {
			if !c.deliver(requestID, response{data: data}) {
				Logger.Warningf("Received response for unknown request ID %d with database ID %d", requestID, databaseID)
			}
			continue
		}

		// A broken connection fails all requests waiting on it
		c.pending.Range(func(id uint64, _ chan response) bool {
			c.deliver(id, response{err: fmt.Errorf("error reading response: %w", err)})
			return true
		})

		select {
		case <-c.done:
			return
		default:
		}

		Logger.Warningf("Error reading from %s: %v", c.endpoint, err)
		if err := c.dial(); err != nil {
			Logger.Errorf("Failed to reconnect to %s: %v", c.endpoint, err)
			return
		}
	}
}

// dial establishes or restores the connection to the endpoint
func (c *pooledConn) dial() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.done:
		return errTransportClosed
	default:
	}

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	conn, err := c.owner.connector.Connect(c.endpoint)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.endpoint, err)
	}

	if err := c.owner.connector.UpgradeConnection(conn, c.owner.config); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to upgrade connection to %s: %w", c.endpoint, err)
	}

	c.conn = conn
	return nil
}

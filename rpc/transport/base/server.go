package base

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/nora/rpc/common"
	"github.com/ValentinKolb/nora/rpc/transport"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport accepts connections and hands every request frame to the handler
type serverTransport struct {
	connector IServerConnector
	handler   transport.ServerHandleFunc
	config    common.ServerConfig

	listenerMu sync.Mutex
	listener   net.Listener
	closed     atomic.Bool

	buffers *sync.Pool
	workers int
}

// serverConn is a single accepted connection. Requests are processed by at most
// cap(slots) goroutines, their responses are written under writeMu.
type serverConn struct {
	owner   *serverTransport
	conn    net.Conn
	timeout time.Duration

	writeMu sync.Mutex
	slots   chan struct{}
	wg      sync.WaitGroup
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a server transport that reads frames into pooled
// buffers of bufferSize bytes. A pending watch occupies one of the workersPerConn
// slots of its connection until it is answered.
func NewBaseServerTransport(connector IServerConnector, bufferSize int, workersPerConn int) transport.IRPCServerTransport {
	bufferSize = max(bufferSize, frameHeaderSize)
	return &serverTransport{
		connector: connector,
		workers:   max(workersPerConn, 1),
		buffers: &sync.Pool{
			New: func() any { return make([]byte, bufferSize) },
		},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	t.config = config
	if config.Transport.WorkersPerConn > 0 {
		t.workers = config.Transport.WorkersPerConn
	}

	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	t.listenerMu.Lock()
	t.listener = listener
	t.listenerMu.Unlock()

	Logger.Infof("Listening for %s connections on %s (%d workers per connection)",
		t.connector.GetName(), config.Transport.Endpoint, t.workers)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			continue
		}

		if err := t.connector.UpgradeConnection(conn, config); err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
		}

		c := &serverConn{
			owner:   t,
			conn:    conn,
			timeout: time.Duration(config.TimeoutSecond) * time.Second,
			slots:   make(chan struct{}, t.workers),
		}
		go c.serve()
	}
}

func (t *serverTransport) Close() error {
	t.closed.Store(true)
	t.listenerMu.Lock()
	defer t.listenerMu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Close()
}

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

// serve reads request frames until the client hangs up. The connection is closed
// once every started request has been answered.
func (c *serverConn) serve() {
	defer c.conn.Close()
	defer c.wg.Wait()

	for {
		buf := c.owner.buffers.Get().([]byte)
		databaseID, requestID, data, err := readFrame(c.conn, buf)
		if err != nil {
			c.owner.buffers.Put(buf)
			if errors.Is(err, io.EOF) {
				Logger.Debugf("Connection closed by client %s", c.conn.RemoteAddr())
			} else {
				Logger.Errorf("Error reading request from %s: %v", c.conn.RemoteAddr(), err)
			}
			return
		}

		// blocks while all slots are taken
		c.slots <- struct{}{}
		c.wg.Add(1)
		go func() {
			defer func() {
				c.owner.buffers.Put(buf)
				<-c.slots
				c.wg.Done()
			}()
			c.process(databaseID, requestID, data)
		}()
	}
}

// process runs the handler and writes the response tagged with the request id
func (c *serverConn) process(databaseID, requestID uint64, data []byte) {
	start := time.Now()
	resp := c.owner.handler(databaseID, data)
	Logger.Debugf("Request %d for database %d handled in %s", requestID, databaseID, time.Since(start))

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			Logger.Errorf("Failed to set write deadline: %v", err)
			return
		}
	}
	if err := writeFrame(c.conn, databaseID, requestID, resp); err != nil {
		Logger.Errorf("Failed to write response for request %d: %v", requestID, err)
	}
}

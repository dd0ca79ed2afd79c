package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/nora/lib/db"
	"github.com/ValentinKolb/nora/lib/store"
	"github.com/ValentinKolb/nora/rpc/common"
	"github.com/ValentinKolb/nora/rpc/serializer"
	"github.com/ValentinKolb/nora/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
)

// defaultWatchWait is the longest a single watch request waits if the client has no timeout
const defaultWatchWait = 30 * time.Second

// NewRPCStore creates a new RPC store
// The function takes a database ID, a config, a transport and a serializer as parameters
// It connects the transport and starts renewing the leases of sessions with on-disconnect writes
func NewRPCStore(
	databaseID uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*RPCStore, error) {

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &RPCStore{
		rpcClientAdapter: rpcClientAdapter{
			databaseID: databaseID,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
		sessions: xsync.NewMapOf[string, struct{}](),
		ctx:      ctx,
		cancel:   cancel,
	}

	if config.KeepaliveSecond > 0 {
		s.wg.Add(1)
		go s.keepalive(time.Duration(config.KeepaliveSecond) * time.Second)
	}

	return s, nil
}

// RPCStore implements store.IStore for a database served by a remote server
type RPCStore struct {
	rpcClientAdapter

	// sessions with registered on-disconnect writes, their leases are renewed by keepalive
	sessions *xsync.MapOf[string, struct{}]

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ store.IStore = (*RPCStore)(nil)

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (s *RPCStore) Get(path string) ([]byte, error) {
	resp, err := s.invoke(common.NewGetRequest(path))
	if err != nil {
		return nil, err
	}
	return resp.Value, nil
}

func (s *RPCStore) Set(path string, value []byte) error {
	_, err := s.invoke(common.NewSetRequest(path, value))
	return err
}

func (s *RPCStore) Update(path string, values []byte) error {
	_, err := s.invoke(common.NewUpdateRequest(path, values))
	return err
}

func (s *RPCStore) Remove(path string) error {
	_, err := s.invoke(common.NewRemoveRequest(path))
	return err
}

func (s *RPCStore) CompareAndSet(path string, expectedHash uint64, value []byte) (bool, []byte, error) {
	resp, err := s.invoke(common.NewCompareAndSetRequest(path, expectedHash, value))
	if err != nil {
		return false, nil, err
	}
	return resp.Ok, resp.Value, nil
}

// Watch long polls the server. A single request waits at most half the client timeout,
// callers loop on changed=false anyway. If ctx is canceled before the server answers,
// the current value is read without waiting for the pending poll.
func (s *RPCStore) Watch(ctx context.Context, path string, knownHash uint64) ([]byte, bool, error) {
	wait := defaultWatchWait
	if s.config.TimeoutSecond > 0 {
		wait = time.Duration(s.config.TimeoutSecond) * time.Second / 2
	}
	if deadline, ok := ctx.Deadline(); ok {
		wait = min(wait, time.Until(deadline))
	}
	if wait <= 0 {
		value, err := s.Get(path)
		return value, false, err
	}

	type result struct {
		resp *common.Message
		err  error
	}
	results := make(chan result, 1)
	go func() {
		resp, err := s.invoke(common.NewWatchRequest(path, knownHash, uint64(wait.Milliseconds())))
		results <- result{resp, err}
	}()

	var r result
	select {
	case r = <-results:
	case <-ctx.Done():
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			value, err := s.Get(path)
			return value, false, err
		}
		// the server gives up at the same deadline
		r = <-results
	}
	if r.err != nil {
		return nil, false, r.err
	}
	return r.resp.Value, r.resp.Ok, nil
}

func (s *RPCStore) RegisterOnDisconnect(session string, op store.Operation) error {
	if _, err := s.invoke(common.NewRegisterOnDisconnectRequest(session, op)); err != nil {
		return err
	}
	s.sessions.Store(session, struct{}{})
	return nil
}

func (s *RPCStore) CancelOnDisconnect(session string, path string) error {
	_, err := s.invoke(common.NewCancelOnDisconnectRequest(session, path))
	return err
}

func (s *RPCStore) Disconnect(session string) error {
	s.sessions.Delete(session)
	_, err := s.invoke(common.NewDisconnectRequest(session))
	return err
}

func (s *RPCStore) GetDBInfo() (db.DatabaseInfo, error) {
	resp, err := s.invoke(common.NewDBInfoRequest())
	if err != nil {
		return db.DatabaseInfo{}, err
	}
	var info db.DatabaseInfo
	if err := json.Unmarshal(resp.Meta, &info); err != nil {
		return db.DatabaseInfo{}, fmt.Errorf("failed to decode database info: %w", err)
	}
	return info, nil
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Close stops the keepalives and closes the transport. Sessions that were not
// disconnected expire on the server once their lease runs out.
func (s *RPCStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		err = s.transport.Close()
	})
	return err
}

// keepalive renews the leases of all sessions with registered on-disconnect writes
func (s *RPCStore) keepalive(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sessions.Range(func(session string, _ struct{}) bool {
				if _, err := s.invoke(common.NewKeepaliveRequest(session)); err != nil {
					Logger.Warningf("keepalive for session %s failed: %v", session, err)
				}
				return true
			})
		}
	}
}

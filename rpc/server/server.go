package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/nora/lib/db"
	"github.com/ValentinKolb/nora/lib/store"
	"github.com/ValentinKolb/nora/lib/store/dstore"
	"github.com/ValentinKolb/nora/lib/store/lstore"
	"github.com/ValentinKolb/nora/rpc/common"
	"github.com/ValentinKolb/nora/rpc/serializer"
	"github.com/ValentinKolb/nora/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("server")

// serverDatabase is a database served by the RPC server. It contains the store it
// encapsulates, the adapter that handles requests for the store and the session leases.
type serverDatabase struct {
	Store    store.IStore
	Adapter  IRPCServerAdapter
	sessions *sessionTracker
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	ctx, cancel := context.WithCancel(context.Background())

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		databases:  xsync.NewMapOf[uint64, serverDatabase](),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// RPCServer serves the configured databases over a transport
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	databases  *xsync.MapOf[uint64, serverDatabase]
	nodeHost   *dragonboat.NodeHost
	metrics    *http.Server

	// ctx ends watches and session reapers on Close
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// --------------------------------------------------------------------------
// Request handling
// --------------------------------------------------------------------------

// handle decodes a request, lets the adapter of the addressed database process it
// and encodes the response
func (s *RPCServer) handle(databaseID uint64, req []byte) []byte {
	start := time.Now()
	var msg common.Message
	var respMsg *common.Message

	if database, ok := s.databases.Load(databaseID); !ok {
		respMsg = common.NewErrorResponse(fmt.Sprintf("database %d not found", databaseID))
	} else if err := s.serializer.Deserialize(req, &msg); err != nil {
		respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
	} else {
		respMsg = database.Adapter.Handle(&msg, database.Store)
	}

	recordRequest(msg.MsgType, respMsg, start)

	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}

// addDatabase registers a store under the given id and starts the session reaper for it
func (s *RPCServer) addDatabase(id uint64, st store.IStore) {
	sessions := newSessionTracker(st, time.Duration(s.config.SessionTTLSecond)*time.Second)
	s.databases.Store(id, serverDatabase{
		Store:    st,
		Adapter:  NewIStoreServerAdapter(s.ctx, sessions),
		sessions: sessions,
	})

	metrics.GetOrCreateGauge(fmt.Sprintf(`nora_sessions{database="%d"}`, id), func() float64 {
		return float64(sessions.size())
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sessions.run(s.ctx)
	}()
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func (s *RPCServer) init() error {

	// Function to create a new tree instance
	dbFactory := func() *db.Tree { return db.NewTree() }

	// Only create the NodeHost if we have replicated databases
	if s.config.HasReplicatedDatabase() {
		nodeHost, err := dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
		s.nodeHost = nodeHost
	}

	timeout := time.Duration(s.config.TimeoutSecond) * time.Second

	/*
		Note: A single RPC Server can serve any number of local and replicated databases.
		Local databases live in memory of this node only, replicated databases are raft
		shards whose shard id equals the database id.
	*/

	for _, databaseConfig := range s.config.Databases {
		switch databaseConfig.Type {
		case common.DatabaseTypeLocal:
			s.addDatabase(databaseConfig.ID, lstore.NewLocalStore(dbFactory))
			Logger.Infof("created local database %d", databaseConfig.ID)

		case common.DatabaseTypeReplicated:
			// Watches on this node are woken up by the state machine of this node
			notifier := store.NewNotifier()
			if err := s.nodeHost.StartConcurrentReplica(
				s.config.ClusterMembers,
				false,
				dstore.CreateStateMachineFactory(dbFactory, notifier),
				s.config.ToDragonboatConfig(databaseConfig.ID),
			); err != nil {
				return fmt.Errorf("failed to start replicated database %d: %w", databaseConfig.ID, err)
			}
			s.addDatabase(databaseConfig.ID, dstore.NewDistributedStore(s.nodeHost, databaseConfig.ID, timeout, notifier))
			Logger.Infof("created replicated database %d", databaseConfig.ID)

		default:
			return fmt.Errorf("invalid database type: %s", databaseConfig.Type)
		}
	}

	if s.config.MetricsEndpoint != "" {
		s.serveMetrics()
	}

	Logger.Infof("nora setup completed successfully")

	s.transport.RegisterHandler(s.handle)

	return nil
}

// Serve starts the RPC server
// This function will also initialize the databases and start the transport layer.
// It blocks until Close is called or the transport fails.
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// Close stops the transport, ends pending watches and stops all replicas of this node.
// Sessions are not disconnected, their leases run out on the remaining nodes.
func (s *RPCServer) Close() error {
	err := s.transport.Close()
	s.cancel()
	s.wg.Wait()

	if s.metrics != nil {
		err = errors.Join(err, s.metrics.Close())
	}
	if s.nodeHost != nil {
		s.nodeHost.Close()
	}
	return err
}

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

// serveMetrics exposes all metrics in the prometheus text format
func (s *RPCServer) serveMetrics() {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	s.metrics = &http.Server{Addr: s.config.MetricsEndpoint, Handler: mux}

	go func() {
		Logger.Infof("Starting metrics server on %s", s.config.MetricsEndpoint)
		if err := s.metrics.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("metrics server failed: %v", err)
		}
	}()
}

// recordRequest counts a handled request and its duration per message type
func recordRequest(msgType common.MessageType, resp *common.Message, start time.Time) {
	label := strconv.Quote(msgType.String())
	metrics.GetOrCreateCounter(`nora_requests_total{type=` + label + `}`).Inc()
	if resp.MsgType == common.MsgTError || resp.Err != "" {
		metrics.GetOrCreateCounter(`nora_request_errors_total{type=` + label + `}`).Inc()
	}
	// watches are long polls, their duration says nothing about the server
	if msgType != common.MsgTDBWatch {
		metrics.GetOrCreateHistogram(`nora_request_duration_seconds{type=` + label + `}`).UpdateDuration(start)
	}
}

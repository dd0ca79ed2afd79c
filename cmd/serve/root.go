package serve

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	cmdUtil "github.com/ValentinKolb/nora/cmd/util"
	"github.com/ValentinKolb/nora/rpc/common"
	"github.com/ValentinKolb/nora/rpc/server"
	"github.com/ValentinKolb/nora/rpc/transport"
	"github.com/ValentinKolb/nora/rpc/transport/http"
	"github.com/ValentinKolb/nora/rpc/transport/tcp"
	"github.com/ValentinKolb/nora/rpc/transport/unix"
	"github.com/cespare/xxhash/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the nora server",
		Long:    `Start the nora server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is NORA_<flag> (e.g. NORA_SESSION_TTL=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "databases"
	ServeCmd.PersistentFlags().String(key, "100=local", cmdUtil.WrapString("Comma-separated list of databases to serve. Format: ID=TYPE where TYPE is one of: local, replicated"))

	key = "rtt-millisecond"
	ServeCmd.PersistentFlags().Int(key, 100, cmdUtil.WrapString("(Replicated databases) RTTMillisecond defines the average Round Trip Time (RTT) in milliseconds between two NodeHost instances. \nOther raft configuration parameters (ElectionRTT=value*10, HeartbeatRTT=value*1) are derived from this value"))

	key = "snapshot-entries"
	ServeCmd.PersistentFlags().Int(key, 10, cmdUtil.WrapString("(Replicated databases) SnapshotEntries defines how often the state machine should be snapshotted automatically. It is defined in terms of the number of applied Raft log entries. SnapshotEntries can be set to 0 to disable such automatic snapshotting (not recommended)"))

	key = "compaction-overhead"
	ServeCmd.PersistentFlags().Int(key, 5, cmdUtil.WrapString("(Replicated databases) CompactionOverhead defines the number of snapshots that should be retained in the system. Recommended value is about 1/2 of SnapshotEntries"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("(Replicated databases) DataDir is the directory used for storing the snapshots"))

	key = "replica-id"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(Replicated databases) ReplicaID is the unique identifier for this NodeHost instance (e.g. 'node-1')"))

	key = "cluster-members"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(Replicated databases) ClusterMembers is a comma-separated list of NodeHost addresses in the format 'node-1=localhost:63001,node-2=localhost:63002,...'"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("(Replicated databases) Timeout in seconds for proposals and reads"))

	key = "session-ttl"
	ServeCmd.PersistentFlags().Int64(key, 30, cmdUtil.WrapString("Seconds after which a session that sent no request is disconnected and its on-disconnect writes are applied (0 disables expiry)"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, /tmp/nora.sock, ...)"))

	key = "workers"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Maximum number of requests handled concurrently per connection, pending watches count as well (0 uses the transport default, ignored for http)"))

	key = "buffer-size"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The size of the read buffer of a connection (in KB, 0 uses the transport default, ignored for http)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address on which metrics are served in the prometheus format on /metrics (e.g. :9100, disabled if empty)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	databases, err := parseDatabases(viper.GetString("databases"))
	if err != nil {
		return err
	}
	serveCmdConfig.Databases = databases

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.RTTMillisecond = viper.GetUint64("rtt-millisecond")
	serveCmdConfig.SnapshotEntries = viper.GetUint64("snapshot-entries")
	serveCmdConfig.CompactionOverhead = viper.GetUint64("compaction-overhead")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.SessionTTLSecond = viper.GetInt64("session-ttl")
	serveCmdConfig.Transport = common.ServerTransportConfig{
		Endpoint:       viper.GetString("endpoint"),
		WorkersPerConn: viper.GetInt("workers"),
		BufferSize:     viper.GetInt("buffer-size") * 1024,
	}
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if !serveCmdConfig.HasReplicatedDatabase() {
		return nil
	}

	// parse replica id
	id := viper.GetString("replica-id")
	if id == "" {
		return fmt.Errorf("ReplicaId is required for replicated databases")
	}
	serveCmdConfig.ReplicaID = xxhash.Sum64String(id)

	// parse cluster members
	members, err := parseClusterMembers(viper.GetString("cluster-members"))
	if err != nil {
		return err
	}
	serveCmdConfig.ClusterMembers = members

	// test if the replica id is in the cluster members
	if _, ok := serveCmdConfig.ClusterMembers[serveCmdConfig.ReplicaID]; !ok {
		return fmt.Errorf("no address found for replica ID %s in cluster members", id)
	}

	return nil
}

// parseDatabases parses a list in the format "100=local,200=replicated"
func parseDatabases(value string) ([]common.ServerDatabase, error) {
	var databases []common.ServerDatabase
	seen := make(map[uint64]bool)

	for _, databaseConfig := range strings.Split(value, ",") {
		parts := strings.Split(databaseConfig, "=")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid database format: %s (expected ID=TYPE)", databaseConfig)
		}

		// Parse database ID
		id, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid database ID %s: %v", parts[0], err)
		}
		if seen[id] {
			return nil, fmt.Errorf("database %d is configured twice", id)
		}
		seen[id] = true

		// Parse database type
		databaseType := common.DatabaseType(strings.TrimSpace(parts[1]))
		switch databaseType {
		case common.DatabaseTypeLocal, common.DatabaseTypeReplicated:
		default:
			return nil, fmt.Errorf("invalid database type: %s (expected one of: local, replicated)", databaseType)
		}

		databases = append(databases, common.ServerDatabase{ID: id, Type: databaseType})
	}

	return databases, nil
}

// parseClusterMembers parses a list in the format "node-1=localhost:63001,node-2=localhost:63002"
// The keys are the hashed replica ids
func parseClusterMembers(value string) (map[uint64]string, error) {
	if value == "" {
		return nil, fmt.Errorf("ClusterMembers is required for replicated databases")
	}

	members := make(map[uint64]string)
	for _, member := range strings.Split(value, ",") {
		parts := strings.Split(member, "=")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid cluster member format: %s (expected ID=address)", member)
		}
		members[xxhash.Sum64String(parts[0])] = parts[1]
	}
	return members, nil
}

// run starts the nora server and stops it on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	common.InitLoggers(serveCmdConfig.LogLevel)

	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	// Parse the transport
	var t transport.IRPCServerTransport
	bufferSize := serveCmdConfig.Transport.BufferSize
	switch viper.GetString("transport") {
	case "http":
		t = http.NewHttpServerTransport()
	case "tcp":
		if bufferSize > 0 {
			t = tcp.NewTCPServerTransport(bufferSize)
		} else {
			t = tcp.NewTCPDefaultServerTransport()
		}
	case "unix":
		if bufferSize > 0 {
			t = unix.NewUnixServerTransport(bufferSize)
		} else {
			t = unix.NewUnixDefaultServerTransport()
		}
	default:
		return fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		<-signals
		_ = serv.Close()
	}()

	return serv.Serve()
}

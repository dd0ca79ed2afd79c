package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/nora/rpc/common"
	"github.com/ValentinKolb/nora/rpc/serializer"
	"github.com/ValentinKolb/nora/rpc/transport"
	"github.com/ValentinKolb/nora/rpc/transport/http"
	"github.com/ValentinKolb/nora/rpc/transport/tcp"
	"github.com/ValentinKolb/nora/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Wrap is the width at which help texts are wrapped
const Wrap = 50

// WrapString breaks a help text into lines of at most Wrap characters.
// Words longer than Wrap are kept on a line of their own.
func WrapString(text string) string {
	var lines []string
	line := ""
	for _, word := range strings.Fields(text) {
		switch {
		case line == "":
			line = word
		case len(line)+1+len(word) > Wrap:
			lines = append(lines, line)
			line = word
		default:
			line += " " + word
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of the client"))

	key = "keepalive"
	cmd.PersistentFlags().Int(key, 10, WrapString("Interval in seconds in which the leases of sessions with on-disconnect writes are renewed (0 disables keepalives). Must be lower than the session ttl of the server"))

	key = "transport-endpoints"
	cmd.PersistentFlags().String(key, "http://localhost:8080", WrapString("The address of the nora server. For transports that support load balancing, multiple endpoints can be specified as a comma-separated list"))

	key = "transport-conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 1, WrapString("Simultaneous connections per endpoint - for transports that support this feature"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to retry the request"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the write buffer for the transport (in KB, ignored for http)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the read buffer for the transport (in KB, ignored for http)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY for the transport (only for tcp)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval for the transport (in seconds, only for TCPConf)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("The linger time for the transport (in seconds, only for TCPConf)"))
}

// InitConfig loads .env files and binds environment variables with the NORA_ prefix
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("nora")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	conf := &common.ClientConfig{
		TimeoutSecond:   viper.GetInt("timeout"),
		KeepaliveSecond: viper.GetInt("keepalive"),
		Transport: common.ClientTransportConfig{
			RetryCount:             viper.GetInt("transport-retries"),
			Endpoints:              strings.Split(viper.GetString("transport-endpoints"), ","),
			ConnectionsPerEndpoint: viper.GetInt("transport-conn-per-endpoint"),
			SocketConf: common.SocketConf{
				WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
				ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
			},
			TCPConf: common.TCPConf{
				TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
				TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
				TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			},
		},
	}

	return conf
}

var (
	serializers = map[string]func() serializer.IRPCSerializer{
		"json":   serializer.NewJSONSerializer,
		"gob":    serializer.NewGOBSerializer,
		"binary": serializer.NewBinarySerializer,
	}
	clientTransports = map[string]func() transport.IRPCClientTransport{
		"http": http.NewHttpClientTransport,
		"tcp":  tcp.NewTCPClientTransport,
		"unix": unix.NewUnixClientTransport,
	}
)

// GetSerializer returns the serializer selected by the serializer flag
func GetSerializer() (serializer.IRPCSerializer, error) {
	name := viper.GetString("serializer")
	newSerializer, ok := serializers[name]
	if !ok {
		return nil, fmt.Errorf("invalid serializer %s (expected one of: json, gob, binary)", name)
	}
	return newSerializer(), nil
}

// GetTransport returns the client transport selected by the transport flag
func GetTransport() (transport.IRPCClientTransport, error) {
	name := viper.GetString("transport")
	newTransport, ok := clientTransports[name]
	if !ok {
		return nil, fmt.Errorf("invalid transport %s (expected one of: http, tcp, unix)", name)
	}
	return newTransport(), nil
}

// GetDatabaseID retrieves the configured database ID
func GetDatabaseID() uint64 {
	return viper.GetUint64("database")
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/nora/cmd/db"
	"github.com/ValentinKolb/nora/cmd/serve"
	"github.com/ValentinKolb/nora/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "nora",
		Short: "realtime hierarchical database",
		Long: fmt.Sprintf(`nora (v%s)

A realtime database for hierarchical JSON data written in Go. Clients observe
paths, write values, run transactions and register writes for their disconnect.
Databases are served from memory or replicated with RAFT.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of nora",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nora v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(db.DatabaseCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

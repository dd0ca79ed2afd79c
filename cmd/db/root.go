package db

import (
	"os"

	"github.com/ValentinKolb/nora/cmd/util"
	"github.com/ValentinKolb/nora/lib/database"
	"github.com/ValentinKolb/nora/lib/realtime"
	"github.com/ValentinKolb/nora/rpc/client"
	"github.com/ValentinKolb/nora/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rpcStore *client.RPCStore
	rtdb     *realtime.Database
	provider *database.DatabaseProvider[database.Target]

	// DatabaseCommands represents the database command group
	DatabaseCommands = &cobra.Command{
		Use:                "db",
		Short:              "Read, write and observe a nora database",
		PersistentPreRunE:  setupDatabaseClient,
		PersistentPostRunE: closeDatabaseClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags to the database command
	util.SetupRPCClientFlags(DatabaseCommands)

	DatabaseCommands.PersistentFlags().Int("database", 100, util.WrapString("ID of the database to connect to"))
	DatabaseCommands.PersistentFlags().String("log-level", "warn", util.WrapString("The level at which logs will be written to stderr (debug, info, warn, error)"))

	// Add subcommands
	DatabaseCommands.AddCommand(getCmd)
	DatabaseCommands.AddCommand(setCmd)
	DatabaseCommands.AddCommand(updateCmd)
	DatabaseCommands.AddCommand(removeCmd)
	DatabaseCommands.AddCommand(observeCmd)
	DatabaseCommands.AddCommand(incrCmd)
	DatabaseCommands.AddCommand(perfTestCmd)
}

// setupDatabaseClient connects to the server and creates the provider all commands run their targets on
func setupDatabaseClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// results go to stdout, logs to stderr
	common.SetLogOutput(os.Stderr)
	common.InitLoggers(viper.GetString("log-level"))

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	// Create the store client
	rpcStore, err = client.NewRPCStore(
		util.GetDatabaseID(),
		*util.GetClientConfig(),
		t,
		s,
	)
	if err != nil {
		return err
	}

	rtdb = realtime.New(rpcStore)
	provider = database.NewDatabaseProvider[database.Target](rtdb)
	return nil
}

// closeDatabaseClient disconnects the session, which applies its on-disconnect writes
func closeDatabaseClient(_ *cobra.Command, _ []string) error {
	if err := rtdb.Close(); err != nil {
		return err
	}
	return rpcStore.Close()
}

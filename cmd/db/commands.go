package db

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ValentinKolb/nora/lib/database"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [path]",
		Short: "Reads the value at a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return do(cmd, database.NewTarget(args[0], database.ObserveOnce{Event: database.EventValue}))
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [path] [value]",
		Short: "Sets the value at a path, the value is parsed as JSON and taken as string otherwise",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []database.TargetOption
			onDisconnect, _ := cmd.Flags().GetBool("on-disconnect")
			if onDisconnect {
				opts = append(opts, database.WithOnDisconnect())
			}

			if err := do(cmd, database.NewTarget(args[0], database.SetValue{Value: parseValue(args[1])}, opts...)); err != nil {
				return err
			}
			if onDisconnect {
				fmt.Println("registered, the value is written when this session disconnects (ctrl+c)")
				waitForSignal()
			}
			return nil
		},
	}
	updateCmd = &cobra.Command{
		Use:   "update [path] [values]",
		Short: "Updates the children at a path, values is a JSON object whose keys may be relative paths",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var values map[string]any
			if err := json.Unmarshal([]byte(args[1]), &values); err != nil {
				return fmt.Errorf("values must be a JSON object: %w", err)
			}
			return do(cmd, database.NewTarget(args[0], database.UpdateChildValues{Values: values}))
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [path]",
		Short: "Removes the value at a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return do(cmd, database.NewTarget(args[0], database.RemoveValue{}))
		},
	}
	observeCmd = &cobra.Command{
		Use:   "observe [path]",
		Short: "Prints every event at a path until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventName, _ := cmd.Flags().GetString("event")
			event, err := database.ParseDataEventType(eventName)
			if err != nil {
				return err
			}

			sub := provider.Observe(database.NewTarget(args[0], database.Observe{Event: event}))
			defer sub.Cancel()

			signals := make(chan os.Signal, 1)
			signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(signals)

			for {
				select {
				case <-signals:
					return nil
				case result, ok := <-sub.Results():
					if !ok {
						return nil
					}
					resp, err := result.Get()
					if err != nil {
						return err
					}
					printResponse(event.String(), resp)
				}
			}
		},
	}
	incrCmd = &cobra.Command{
		Use:   "incr [path] [n]",
		Short: "Adds n (default 1) to the number at a path in a transaction",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := 1.0
			if len(args) == 2 {
				var err error
				if n, err = strconv.ParseFloat(args[1], 64); err != nil {
					return fmt.Errorf("n must be a number: %w", err)
				}
			}
			return do(cmd, database.NewTarget(args[0], database.Transaction{Block: increment(n)}))
		},
	}
)

func init() {
	setCmd.Flags().Bool("on-disconnect", false, "Register the write for the disconnect of this session instead of writing now")
	observeCmd.Flags().String("event", "value", "The event to observe (value, child_added, child_changed, child_removed)")
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// do runs a one-shot target and prints its response
func do(cmd *cobra.Command, target database.Target) error {
	timeout := time.Duration(max(viper.GetInt("timeout"), 1)) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := provider.Do(ctx, target)
	if err != nil {
		return err
	}
	printResponse(cmd.Name(), resp)
	return nil
}

// printResponse prints one line per response, the snapshot value is printed as JSON
func printResponse(op string, resp database.DatabaseResponse) {
	path := ""
	if resp.Reference != nil {
		path = resp.Reference.Path()
	}

	if resp.Snapshot == nil {
		fmt.Printf("%s path=%s committed=%t\n", op, path, resp.IsCommitted)
		return
	}

	value, err := json.Marshal(resp.Snapshot.Value())
	if err != nil {
		value = []byte(fmt.Sprintf("%v", resp.Snapshot.Value()))
	}
	fmt.Printf("%s path=%s key=%s committed=%t value=%s\n", op, path, resp.Snapshot.Key(), resp.IsCommitted, value)
}

// parseValue decodes a JSON value, anything else is taken as a string
func parseValue(arg string) any {
	var value any
	if err := json.Unmarshal([]byte(arg), &value); err != nil {
		return arg
	}
	return value
}

// increment returns a transaction block adding n to a number, missing values count as 0
func increment(n float64) database.TransactionBlock {
	return func(current database.MutableData) database.TransactionResult {
		switch v := current.Value().(type) {
		case nil:
			current.SetValue(n)
		case float64:
			current.SetValue(v + n)
		default:
			return database.Abort()
		}
		return database.Success(current)
	}
}

// waitForSignal blocks until SIGINT or SIGTERM
func waitForSignal() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)
	<-signals
}

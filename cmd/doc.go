// Package cmd implements the command-line interface of nora. It provides a
// hierarchical command structure with operations for running the server and
// interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - db: Commands for database operations (get, set, update, remove, observe, incr, perf)
//   - serve: Commands for starting and configuring the nora server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See nora -help for a list of all commands.
package cmd

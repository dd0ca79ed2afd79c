package server

import (
	"github.com/ValentinKolb/nora/lib/store"
	"github.com/ValentinKolb/nora/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request against the store of a database and returns a response.
	// Errors are reported in the response, never by panicking.
	Handle(req *common.Message, store store.IStore) (resp *common.Message)
}

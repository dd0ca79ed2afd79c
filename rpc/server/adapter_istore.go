package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ValentinKolb/nora/lib/store"
	"github.com/ValentinKolb/nora/rpc/common"
)

// maxWatchWait bounds how long a single watch request may hold a worker
const maxWatchWait = 5 * time.Minute

// NewIStoreServerAdapter creates the adapter that maps messages onto store.IStore calls.
// Requests that carry a session renew its lease in sessions, which may be nil.
func NewIStoreServerAdapter(ctx context.Context, sessions *sessionTracker) IRPCServerAdapter {
	return &iStoreServerAdapterImpl{ctx: ctx, sessions: sessions}
}

type iStoreServerAdapterImpl struct {
	// ctx ends pending watches when the server shuts down
	ctx      context.Context
	sessions *sessionTracker
}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, store store.IStore) *common.Message {
	if store == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	if req.Session != "" && req.MsgType != common.MsgTDBDisconnect {
		adapter.sessions.touch(req.Session)
	}

	switch req.MsgType {
	case common.MsgTDBGet:
		val, err := store.Get(req.Path)
		return common.NewGetResponse(val, err)
	case common.MsgTDBSet:
		return common.NewResponse(req.MsgType, store.Set(req.Path, req.Value))
	case common.MsgTDBUpdate:
		return common.NewResponse(req.MsgType, store.Update(req.Path, req.Value))
	case common.MsgTDBRemove:
		return common.NewResponse(req.MsgType, store.Remove(req.Path))
	case common.MsgTDBCompareAndSet:
		ok, current, err := store.CompareAndSet(req.Path, req.Hash, req.Value)
		return common.NewCompareAndSetResponse(ok, current, err)
	case common.MsgTDBWatch:
		wait := min(time.Duration(req.WaitMs)*time.Millisecond, maxWatchWait)
		ctx, cancel := context.WithTimeout(adapter.ctx, wait)
		defer cancel()
		val, changed, err := store.Watch(ctx, req.Path, req.Hash)
		return common.NewWatchResponse(val, changed, err)
	case common.MsgTDBRegisterOnDisconnect:
		if req.Session == "" {
			return common.NewErrorResponse("register on disconnect: missing session")
		}
		return common.NewResponse(req.MsgType, store.RegisterOnDisconnect(req.Session, req.Operation()))
	case common.MsgTDBCancelOnDisconnect:
		if req.Session == "" {
			return common.NewErrorResponse("cancel on disconnect: missing session")
		}
		return common.NewResponse(req.MsgType, store.CancelOnDisconnect(req.Session, req.Path))
	case common.MsgTDBDisconnect:
		adapter.sessions.forget(req.Session)
		return common.NewResponse(req.MsgType, store.Disconnect(req.Session))
	case common.MsgTDBKeepalive:
		return common.NewResponse(req.MsgType, nil)
	case common.MsgTDBInfo:
		info, err := store.GetDBInfo()
		if err != nil {
			return common.NewDBInfoResponse(nil, err)
		}
		meta, err := json.Marshal(info)
		return common.NewDBInfoResponse(meta, err)
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC IStoreAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}

package database

import (
	"context"

	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("database")

// Completion receives the result of a request.
type Completion func(Result[DatabaseResponse])

// DatabaseProvider turns targets into backend calls and every outcome into a Result.
// It holds no state besides the backend and may be used from any goroutine.
type DatabaseProvider[T Target] struct {
	backend Backend
}

// NewDatabaseProvider creates a provider for the given backend.
func NewDatabaseProvider[T Target](backend Backend) *DatabaseProvider[T] {
	return &DatabaseProvider[T]{backend: backend}
}

// --------------------------------------------------------------------------
// Callback API
// --------------------------------------------------------------------------

// Request performs target and passes the outcome to completion.
//
// Completion is called exactly once for every task except Observe, for which it is called
// once per event until the returned handle is cancelled. The handle is nil for every other task.
// A nil completion ignores the outcome.
func (p *DatabaseProvider[T]) Request(target T, completion Completion) Handle {
	if completion == nil {
		completion = func(Result[DatabaseResponse]) {}
	}

	switch task := target.Task().(type) {
	case Observe, ObserveOnce:
		log.Debugf("observe %s (%T)", target.Path(), task)
		return p.processObserve(NewDatabaseQueryRequest(p.backend, target), completion)
	case SetValue, UpdateChildValues, RemoveValue:
		log.Debugf("write %s (%T, onDisconnect=%t)", target.Path(), task, target.OnDisconnect())
		p.processWrite(NewDatabaseRequest(p.backend, target), completion)
	case Transaction:
		log.Debugf("transaction %s (localEvents=%t)", target.Path(), target.LocalEvents())
		p.processTransaction(NewDatabaseRequest(p.backend, target), completion)
	default:
		log.Warningf("no strategy for task %T at %s", task, target.Path())
		completion(FailureResult[DatabaseResponse](ErrRequestMapping))
	}
	return nil
}

// RemoveObserver cancels a listener returned by Request. A nil handle is ignored.
func (p *DatabaseProvider[T]) RemoveObserver(handle Handle) {
	if handle != nil {
		handle.Cancel()
	}
}

func (p *DatabaseProvider[T]) processObserve(request DatabaseQueryRequest, completion Completion) Handle {
	onEvent := func(snapshot Snapshot) {
		completion(convertResponseToResult(snapshot, request.Query.Ref(), nil, nil))
	}
	onCancel := func(err error) {
		completion(convertResponseToResult(nil, nil, err, nil))
	}

	switch task := request.Task.(type) {
	case Observe:
		return request.Query.Observe(task.Event, onEvent, onCancel)
	case ObserveOnce:
		request.Query.ObserveSingleEvent(task.Event, onEvent, onCancel)
	default:
		log.Warningf("observe strategy received %T", task)
		completion(FailureResult[DatabaseResponse](ErrRequestMapping))
	}
	return nil
}

func (p *DatabaseProvider[T]) processWrite(request DatabaseRequest, completion Completion) {
	done := func(err error, ref Reference) {
		completion(convertResponseToResult(nil, ref, err, nil))
	}
	ref := request.Reference

	switch task := request.Task.(type) {
	case SetValue:
		if request.OnDisconnect {
			ref.OnDisconnectSetValue(task.Value, done)
		} else {
			ref.SetValue(task.Value, done)
		}
	case UpdateChildValues:
		if request.OnDisconnect {
			ref.OnDisconnectUpdateChildValues(task.Values, done)
		} else {
			ref.UpdateChildValues(task.Values, done)
		}
	case RemoveValue:
		if request.OnDisconnect {
			ref.OnDisconnectRemoveValue(done)
		} else {
			ref.RemoveValue(done)
		}
	default:
		log.Warningf("write strategy received %T", task)
		completion(FailureResult[DatabaseResponse](ErrRequestMapping))
	}
}

func (p *DatabaseProvider[T]) processTransaction(request DatabaseRequest, completion Completion) {
	block := request.TransactionBlock()
	if block == nil {
		log.Warningf("transaction strategy received %T", request.Task)
		completion(FailureResult[DatabaseResponse](ErrRequestMapping))
		return
	}
	request.Reference.RunTransaction(block, func(err error, committed bool, snapshot Snapshot) {
		completion(convertResponseToResult(snapshot, request.Reference, err, &committed))
	}, request.LocalEvents)
}

// --------------------------------------------------------------------------
// Result Conversion
// --------------------------------------------------------------------------

// convertResponseToResult maps the arguments of every backend callback to a Result.
// The first matching case wins, absent values are nil.
func convertResponseToResult(snapshot Snapshot, reference Reference, err error, committed *bool) Result[DatabaseResponse] {
	switch {
	case reference != nil && err == nil && committed != nil:
		return SuccessResult(DatabaseResponse{Reference: reference, Snapshot: snapshot, IsCommitted: *committed})
	case snapshot != nil && reference != nil && err == nil:
		return SuccessResult(DatabaseResponse{Reference: reference, Snapshot: snapshot, IsCommitted: true})
	case snapshot == nil && reference != nil && err == nil:
		return SuccessResult(DatabaseResponse{Reference: reference, IsCommitted: true})
	case snapshot == nil && err != nil:
		return FailureResult[DatabaseResponse](Underlying(err))
	default:
		log.Warningf("unrecognized backend result (snapshot=%t, reference=%t, error=%v, committed=%v)",
			snapshot != nil, reference != nil, err, committed)
		return FailureResult[DatabaseResponse](ErrResultConversion)
	}
}

// --------------------------------------------------------------------------
// Blocking API
// --------------------------------------------------------------------------

// Do performs a one-shot target and waits for its result.
// Observe tasks produce more than one result and fail with ErrRequestMapping, use Observe instead.
// If ctx ends first, ctx.Err() is returned and the late result is dropped.
func (p *DatabaseProvider[T]) Do(ctx context.Context, target T) (DatabaseResponse, error) {
	if _, ok := target.Task().(Observe); ok {
		return DatabaseResponse{}, ErrRequestMapping
	}

	ch := make(chan Result[DatabaseResponse], 1)
	p.Request(target, func(r Result[DatabaseResponse]) {
		select {
		case ch <- r:
		default:
		}
	})

	select {
	case r := <-ch:
		return r.Get()
	case <-ctx.Done():
		return DatabaseResponse{}, ctx.Err()
	}
}

// Observe starts a listener for an Observe target and returns its results as a stream.
// Any other task yields a single ErrRequestMapping result, after which the stream is closed.
func (p *DatabaseProvider[T]) Observe(target T) *Subscription {
	s := newSubscription()
	if _, ok := target.Task().(Observe); !ok {
		s.push(FailureResult[DatabaseResponse](ErrRequestMapping))
		return s
	}
	s.setHandle(p.Request(target, s.push))
	return s
}

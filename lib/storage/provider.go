package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/nora/lib/database"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("storage")

// Completion receives the result of a storage request.
type Completion func(database.Result[StorageResponse])

// StorageProvider runs storage targets against a blob store and wraps every outcome in a Result.
// Failures are *database.NoraError values, errors of the blob store are of kind underlying.
type StorageProvider[T StorageTarget] struct {
	store IBlobStore
}

// NewStorageProvider creates a provider for the given blob store.
func NewStorageProvider[T StorageTarget](store IBlobStore) *StorageProvider[T] {
	return &StorageProvider[T]{store: store}
}

// Request runs target on its own goroutine and passes the outcome to completion exactly once.
func (p *StorageProvider[T]) Request(ctx context.Context, target T, completion Completion) {
	if completion == nil {
		completion = func(database.Result[StorageResponse]) {}
	}
	go func() {
		res, err := p.Do(ctx, target)
		if err != nil {
			completion(database.FailureResult[StorageResponse](err))
			return
		}
		completion(database.SuccessResult(res))
	}()
}

// Do runs target and waits for the outcome.
func (p *StorageProvider[T]) Do(ctx context.Context, target T) (StorageResponse, error) {
	name := strings.TrimPrefix(target.Path(), "/")
	if name == "" {
		return StorageResponse{}, database.Underlying(fmt.Errorf("storage: empty object name"))
	}

	var res StorageResponse
	var err error

	switch task := target.Task().(type) {
	case GetData:
		res, err = p.getData(ctx, name, task.MaxSize)
	case PutData:
		var md Metadata
		md, err = p.store.Put(ctx, name, task.Data, task.Metadata)
		res = NewMetadataResponse(md)
	case GetURL:
		res, err = p.getURL(ctx, name, task.Expires)
	case GetMetadata:
		var md Metadata
		md, err = p.store.Stat(ctx, name)
		res = NewMetadataResponse(md)
	case UpdateMetadata:
		var md Metadata
		md, err = p.store.UpdateMetadata(ctx, name, task.Metadata)
		res = NewMetadataResponse(md)
	case Delete:
		var md Metadata
		if md, err = p.store.Stat(ctx, name); err == nil {
			err = p.store.Delete(ctx, name)
		}
		res = NewMetadataResponse(md)
	default:
		log.Warningf("no strategy for storage task %T at %s", task, name)
		return StorageResponse{}, database.ErrRequestMapping
	}

	if err != nil {
		log.Debugf("storage %T on %s failed: %v", target.Task(), name, err)
		return StorageResponse{}, database.Underlying(err)
	}
	return res, nil
}

func (p *StorageProvider[T]) getData(ctx context.Context, name string, maxSize int64) (StorageResponse, error) {
	if maxSize > 0 {
		md, err := p.store.Stat(ctx, name)
		if err != nil {
			return StorageResponse{}, err
		}
		if md.Size > maxSize {
			return StorageResponse{}, fmt.Errorf("%w: %s has %d bytes, limit is %d", ErrTooLarge, name, md.Size, maxSize)
		}
	}
	data, err := p.store.Get(ctx, name)
	if err != nil {
		return StorageResponse{}, err
	}
	return NewDataResponse(data), nil
}

func (p *StorageProvider[T]) getURL(ctx context.Context, name string, expires time.Duration) (StorageResponse, error) {
	u, err := p.store.URL(ctx, name, expires)
	if err != nil {
		return StorageResponse{}, err
	}
	return NewURLResponse(u), nil
}

package storage

import "time"

// StorageTask is the operation a StorageTarget performs. The implementations are the six types below.
type StorageTask interface {
	isStorageTask()
}

// GetData downloads the object. A MaxSize above zero rejects larger objects.
type GetData struct{ MaxSize int64 }

// PutData uploads Data with the content type and custom metadata of Metadata.
type PutData struct {
	Data     []byte
	Metadata Metadata
}

// GetURL creates a download URL valid for Expires.
type GetURL struct{ Expires time.Duration }

// GetMetadata reads the metadata of the object.
type GetMetadata struct{}

// UpdateMetadata replaces content type and custom metadata of the object.
type UpdateMetadata struct{ Metadata Metadata }

// Delete removes the object. The response holds the metadata the object had.
type Delete struct{}

func (GetData) isStorageTask()        {}
func (PutData) isStorageTask()        {}
func (GetURL) isStorageTask()         {}
func (GetMetadata) isStorageTask()    {}
func (UpdateMetadata) isStorageTask() {}
func (Delete) isStorageTask()         {}

// StorageTarget describes a single operation on an object.
type StorageTarget interface {
	Path() string
	Task() StorageTask
}

type storageTarget struct {
	path string
	task StorageTask
}

func (t storageTarget) Path() string      { return t.path }
func (t storageTarget) Task() StorageTask { return t.task }

// NewStorageTarget returns an immutable StorageTarget.
func NewStorageTarget(path string, task StorageTask) StorageTarget {
	return storageTarget{path: path, task: task}
}

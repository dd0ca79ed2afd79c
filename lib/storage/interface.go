package storage

import (
	"context"
	"errors"
	"net/url"
	"time"
)

var (
	// ErrObjectNotFound is returned by blob stores for missing objects.
	ErrObjectNotFound = errors.New("storage: object not found")
	// ErrTooLarge is returned if an object exceeds the size limit of a download.
	ErrTooLarge = errors.New("storage: object exceeds the maximum size")
)

// IBlobStore is the interface of a flat object store.
type IBlobStore interface {
	// Get returns the content of the object.
	Get(ctx context.Context, name string) ([]byte, error)
	// Put creates or replaces the object. Name and size of md are ignored.
	Put(ctx context.Context, name string, data []byte, md Metadata) (Metadata, error)
	// Stat returns the metadata of the object.
	Stat(ctx context.Context, name string) (Metadata, error)
	// UpdateMetadata replaces the custom metadata of the object. The content type is
	// replaced as well unless md.ContentType is empty, which keeps the current one.
	UpdateMetadata(ctx context.Context, name string, md Metadata) (Metadata, error)
	// URL returns a URL the object can be downloaded from until expires has passed.
	URL(ctx context.Context, name string, expires time.Duration) (url.URL, error)
	// Delete removes the object.
	Delete(ctx context.Context, name string) error
}

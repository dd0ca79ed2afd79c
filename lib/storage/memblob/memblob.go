// Package memblob provides an in-memory storage.IBlobStore.
package memblob

import (
	"context"
	"crypto/md5"
	"fmt"
	"net/url"
	"time"

	"github.com/ValentinKolb/nora/lib/storage"
	"github.com/puzpuzpuz/xsync/v3"
)

type object struct {
	data []byte
	md   storage.Metadata
}

type blobStore struct {
	bucket  string
	objects *xsync.MapOf[string, object]
}

// New creates an empty in-memory blob store. The bucket only appears in metadata and URLs.
func New(bucket string) storage.IBlobStore {
	return &blobStore{
		bucket:  bucket,
		objects: xsync.NewMapOf[string, object](),
	}
}

func (s *blobStore) load(name string) (object, error) {
	o, ok := s.objects.Load(name)
	if !ok {
		return object{}, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, name)
	}
	return o, nil
}

func (s *blobStore) Get(_ context.Context, name string) ([]byte, error) {
	o, err := s.load(name)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), o.data...), nil
}

func (s *blobStore) Put(_ context.Context, name string, data []byte, md storage.Metadata) (storage.Metadata, error) {
	now := time.Now().UTC()
	sum := md5.Sum(data)
	o, _ := s.objects.Compute(name, func(old object, loaded bool) (object, bool) {
		created := now
		if loaded {
			created = old.md.Created
		}
		return object{
			data: append([]byte(nil), data...),
			md: storage.Metadata{
				Bucket:         s.bucket,
				Name:           name,
				Size:           int64(len(data)),
				ContentType:    md.ContentType,
				MD5:            sum[:],
				Created:        created,
				Updated:        now,
				CustomMetadata: copyMap(md.CustomMetadata),
			},
		}, false
	})
	return o.md, nil
}

func (s *blobStore) Stat(_ context.Context, name string) (storage.Metadata, error) {
	o, err := s.load(name)
	if err != nil {
		return storage.Metadata{}, err
	}
	return o.md, nil
}

func (s *blobStore) UpdateMetadata(_ context.Context, name string, md storage.Metadata) (storage.Metadata, error) {
	var found bool
	o, _ := s.objects.Compute(name, func(old object, loaded bool) (object, bool) {
		found = loaded
		if !loaded {
			return old, true
		}
		if md.ContentType != "" {
			old.md.ContentType = md.ContentType
		}
		old.md.CustomMetadata = copyMap(md.CustomMetadata)
		old.md.Updated = time.Now().UTC()
		return old, false
	})
	if !found {
		return storage.Metadata{}, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, name)
	}
	return o.md, nil
}

func (s *blobStore) URL(_ context.Context, name string, _ time.Duration) (url.URL, error) {
	if _, err := s.load(name); err != nil {
		return url.URL{}, err
	}
	return url.URL{Scheme: "mem", Host: s.bucket, Path: "/" + name}, nil
}

func (s *blobStore) Delete(_ context.Context, name string) error {
	if _, loaded := s.objects.LoadAndDelete(name); !loaded {
		return fmt.Errorf("%w: %s", storage.ErrObjectNotFound, name)
	}
	return nil
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

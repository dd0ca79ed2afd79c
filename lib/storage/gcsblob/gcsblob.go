// Package gcsblob provides a storage.IBlobStore backed by a Google Cloud Storage bucket.
// Firebase Storage keeps its files in such buckets, so the default bucket of a Firebase
// project ("<project>.appspot.com") can be used directly.
package gcsblob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/ValentinKolb/nora/lib/storage"
	"google.golang.org/api/option"
)

type blobStore struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
	name   string
}

// New connects to the bucket. Credentials are taken from opts or the environment.
func New(ctx context.Context, bucket string, opts ...option.ClientOption) (storage.IBlobStore, error) {
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return NewWithClient(client, bucket), nil
}

// NewWithClient uses an existing client.
func NewWithClient(client *gcs.Client, bucket string) storage.IBlobStore {
	return &blobStore{client: client, bucket: client.Bucket(bucket), name: bucket}
}

// mapErr turns a missing object into storage.ErrObjectNotFound.
func mapErr(name string, err error) error {
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("%w: %s", storage.ErrObjectNotFound, name)
	}
	return err
}

func toMetadata(attrs *gcs.ObjectAttrs) storage.Metadata {
	return storage.Metadata{
		Bucket:         attrs.Bucket,
		Name:           attrs.Name,
		Size:           attrs.Size,
		ContentType:    attrs.ContentType,
		MD5:            attrs.MD5,
		Created:        attrs.Created,
		Updated:        attrs.Updated,
		CustomMetadata: attrs.Metadata,
	}
}

func (s *blobStore) Get(ctx context.Context, name string) ([]byte, error) {
	r, err := s.bucket.Object(name).NewReader(ctx)
	if err != nil {
		return nil, mapErr(name, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *blobStore) Put(ctx context.Context, name string, data []byte, md storage.Metadata) (storage.Metadata, error) {
	w := s.bucket.Object(name).NewWriter(ctx)
	w.ContentType = md.ContentType
	w.Metadata = md.CustomMetadata
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return storage.Metadata{}, fmt.Errorf("failed to upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return storage.Metadata{}, fmt.Errorf("failed to upload %s: %w", name, err)
	}
	return toMetadata(w.Attrs()), nil
}

func (s *blobStore) Stat(ctx context.Context, name string) (storage.Metadata, error) {
	attrs, err := s.bucket.Object(name).Attrs(ctx)
	if err != nil {
		return storage.Metadata{}, mapErr(name, err)
	}
	return toMetadata(attrs), nil
}

func (s *blobStore) UpdateMetadata(ctx context.Context, name string, md storage.Metadata) (storage.Metadata, error) {
	obj := s.bucket.Object(name)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		return storage.Metadata{}, mapErr(name, err)
	}
	for _, update := range metadataUpdates(attrs.Metadata, md) {
		attrs, err = obj.If(gcs.Conditions{MetagenerationMatch: attrs.Metageneration}).Update(ctx, update)
		if err != nil {
			return storage.Metadata{}, mapErr(name, err)
		}
	}
	return toMetadata(attrs), nil
}

// metadataUpdates returns the updates that turn an object with the custom metadata current
// into one described by md. Updates merge custom metadata key by key, dropping keys
// takes a preceding update that clears all of them.
func metadataUpdates(current map[string]string, md storage.Metadata) []gcs.ObjectAttrsToUpdate {
	update := gcs.ObjectAttrsToUpdate{Metadata: map[string]string{}}
	for key, value := range md.CustomMetadata {
		update.Metadata[key] = value
	}
	if md.ContentType != "" {
		update.ContentType = md.ContentType
	}
	if len(update.Metadata) == 0 {
		return []gcs.ObjectAttrsToUpdate{update}
	}
	for key := range current {
		if _, ok := update.Metadata[key]; !ok {
			return []gcs.ObjectAttrsToUpdate{{Metadata: map[string]string{}}, update}
		}
	}
	return []gcs.ObjectAttrsToUpdate{update}
}

func (s *blobStore) URL(_ context.Context, name string, expires time.Duration) (url.URL, error) {
	signed, err := s.bucket.SignedURL(name, &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expires),
	})
	if err != nil {
		return url.URL{}, fmt.Errorf("failed to sign url for %s: %w", name, err)
	}
	u, err := url.Parse(signed)
	if err != nil {
		return url.URL{}, err
	}
	return *u, nil
}

func (s *blobStore) Delete(ctx context.Context, name string) error {
	return mapErr(name, s.bucket.Object(name).Delete(ctx))
}

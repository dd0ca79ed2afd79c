package gcsblob

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/ValentinKolb/nora/lib/storage"
)

func TestToMetadata(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	attrs := &gcs.ObjectAttrs{
		Bucket:      "demo.appspot.com",
		Name:        "images/a.png",
		Size:        3,
		ContentType: "image/png",
		MD5:         []byte{1, 2, 3},
		Created:     created,
		Updated:     created.Add(time.Minute),
		Metadata:    map[string]string{"owner": "ada"},
	}

	want := storage.Metadata{
		Bucket:         "demo.appspot.com",
		Name:           "images/a.png",
		Size:           3,
		ContentType:    "image/png",
		MD5:            []byte{1, 2, 3},
		Created:        created,
		Updated:        created.Add(time.Minute),
		CustomMetadata: map[string]string{"owner": "ada"},
	}
	if got := toMetadata(attrs); !reflect.DeepEqual(got, want) {
		t.Errorf("toMetadata() = %+v, want %+v", got, want)
	}
}

func TestMapErr(t *testing.T) {
	other := errors.New("permission denied")

	tests := []struct {
		name         string
		err          error
		wantNotFound bool
		wantSame     bool
	}{
		{"nil", nil, false, true},
		{"missing object", gcs.ErrObjectNotExist, true, false},
		{"wrapped missing object", fmt.Errorf("attrs: %w", gcs.ErrObjectNotExist), true, false},
		{"other error", other, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapErr("a.png", tt.err)
			if errors.Is(got, storage.ErrObjectNotFound) != tt.wantNotFound {
				t.Errorf("mapErr(%v) = %v, not found = %t", tt.err, got, !tt.wantNotFound)
			}
			if tt.wantSame && got != tt.err {
				t.Errorf("mapErr(%v) = %v, want the error unchanged", tt.err, got)
			}
		})
	}
}

func TestMetadataUpdates(t *testing.T) {
	tests := []struct {
		name            string
		current         map[string]string
		md              storage.Metadata
		wantClear       bool
		wantContentType any
		wantMetadata    map[string]string
	}{
		{
			name:         "empty content type keeps the current one",
			current:      map[string]string{"owner": "ada"},
			md:           storage.Metadata{CustomMetadata: map[string]string{"owner": "bob"}},
			wantMetadata: map[string]string{"owner": "bob"},
		},
		{
			name:            "content type is replaced",
			md:              storage.Metadata{ContentType: "image/png"},
			wantContentType: "image/png",
			wantMetadata:    map[string]string{},
		},
		{
			name:         "no custom metadata clears all keys",
			current:      map[string]string{"owner": "ada"},
			md:           storage.Metadata{},
			wantMetadata: map[string]string{},
		},
		{
			name:         "dropped keys are cleared first",
			current:      map[string]string{"owner": "ada", "tag": "x"},
			md:           storage.Metadata{CustomMetadata: map[string]string{"owner": "ada"}},
			wantClear:    true,
			wantMetadata: map[string]string{"owner": "ada"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updates := metadataUpdates(tt.current, tt.md)

			wantLen := 1
			if tt.wantClear {
				wantLen = 2
			}
			if len(updates) != wantLen {
				t.Fatalf("got %d updates, want %d", len(updates), wantLen)
			}
			if tt.wantClear {
				if first := updates[0]; first.Metadata == nil || len(first.Metadata) != 0 || first.ContentType != nil {
					t.Errorf("first update = %+v, want one that clears the custom metadata", first)
				}
			}

			last := updates[len(updates)-1]
			if last.ContentType != tt.wantContentType {
				t.Errorf("ContentType = %v, want %v", last.ContentType, tt.wantContentType)
			}
			if !reflect.DeepEqual(last.Metadata, tt.wantMetadata) {
				t.Errorf("Metadata = %v, want %v", last.Metadata, tt.wantMetadata)
			}
		})
	}
}

package storage

import (
	"net/url"
	"time"
)

// Metadata describes a stored object.
type Metadata struct {
	Bucket         string            `json:"bucket,omitempty"`
	Name           string            `json:"name"`
	Size           int64             `json:"size"`
	ContentType    string            `json:"contentType,omitempty"`
	MD5            []byte            `json:"md5,omitempty"`
	Created        time.Time         `json:"created,omitempty"`
	Updated        time.Time         `json:"updated,omitempty"`
	CustomMetadata map[string]string `json:"customMetadata,omitempty"`
}

// StorageResponse is the outcome of a successful storage request. Exactly one of
// data, URL and metadata is present, depending on the constructor that was used.
type StorageResponse struct {
	data     []byte
	url      *url.URL
	metadata *Metadata
}

// NewDataResponse returns a response holding the content of an object.
func NewDataResponse(data []byte) StorageResponse {
	if data == nil {
		data = []byte{}
	}
	return StorageResponse{data: data}
}

// NewURLResponse returns a response holding a download URL.
func NewURLResponse(u url.URL) StorageResponse {
	return StorageResponse{url: &u}
}

// NewMetadataResponse returns a response holding the metadata of an object.
func NewMetadataResponse(md Metadata) StorageResponse {
	return StorageResponse{metadata: &md}
}

// Data returns the content, nil if the response holds something else.
func (r StorageResponse) Data() []byte { return r.data }

// URL returns the download URL, nil if the response holds something else.
func (r StorageResponse) URL() *url.URL { return r.url }

// Metadata returns the metadata, nil if the response holds something else.
func (r StorageResponse) Metadata() *Metadata { return r.metadata }

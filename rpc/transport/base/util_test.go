package base

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		databaseID uint64
		requestID  uint64
		data       []byte
		buf        []byte
	}{
		{name: "empty payload", databaseID: 1, requestID: 2, data: nil},
		{name: "small payload without buffer", databaseID: 100, requestID: 7, data: []byte(`{"a":1}`)},
		{name: "payload larger than buffer", databaseID: 100, requestID: 8, data: bytes.Repeat([]byte("x"), 4096), buf: make([]byte, 64)},
		{name: "payload fits pooled buffer", databaseID: ^uint64(0), requestID: 9, data: []byte("hello"), buf: make([]byte, 1024)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := net.Pipe()
			defer client.Close()
			defer server.Close()

			errCh := make(chan error, 1)
			go func() { errCh <- writeFrame(client, tt.databaseID, tt.requestID, tt.data) }()

			databaseID, requestID, data, err := readFrame(server, tt.buf)
			if err != nil {
				t.Fatalf("readFrame failed: %v", err)
			}
			if err := <-errCh; err != nil {
				t.Fatalf("writeFrame failed: %v", err)
			}

			if databaseID != tt.databaseID {
				t.Errorf("expected database %d, got %d", tt.databaseID, databaseID)
			}
			if requestID != tt.requestID {
				t.Errorf("expected request %d, got %d", tt.requestID, requestID)
			}
			if !bytes.Equal(data, tt.data) {
				t.Errorf("payload mismatch: expected %d bytes, got %d bytes", len(tt.data), len(data))
			}
			if data == nil {
				t.Error("expected a non nil payload")
			}
		})
	}
}

func TestReadFrameRejectsOversizedFrames(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint64(header[:8], 1)
	binary.BigEndian.PutUint64(header[8:16], 1)
	binary.BigEndian.PutUint32(header[16:20], maxFrameSize+1)
	go func() { _, _ = client.Write(header) }()

	if _, _, _, err := readFrame(server, nil); err == nil {
		t.Fatal("expected an error for an oversized frame")
	}
}

func TestReadFrameTruncated(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint32(header[16:20], 10)
	go func() {
		_, _ = client.Write(append(header, 'a', 'b'))
		_ = client.Close()
	}()

	if _, _, _, err := readFrame(server, nil); err == nil {
		t.Fatal("expected an error for a truncated frame")
	}
}

package http

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/nora/rpc/common"
)

func TestServerHandleRequest(t *testing.T) {
	transport := &httpServerTransport{}
	var gotID uint64
	transport.RegisterHandler(func(databaseID uint64, req []byte) []byte {
		gotID = databaseID
		return append([]byte("echo:"), req...)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /{databaseID}", transport.handleRequest)

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantBody   string
		wantID     uint64
	}{
		{name: "valid request", path: "/100", body: "ping", wantStatus: http.StatusOK, wantBody: "echo:ping", wantID: 100},
		{name: "invalid database id", path: "/abc", body: "ping", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotID = 0
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("expected body %q, got %q", tt.wantBody, rec.Body.String())
			}
			if gotID != tt.wantID {
				t.Errorf("expected database %d, got %d", tt.wantID, gotID)
			}
		})
	}
}

func TestClientSend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(append([]byte(r.URL.Path+":"), body...))
	}))
	defer server.Close()

	client := NewHttpClientTransport()
	err := client.Connect(common.ClientConfig{
		TimeoutSecond: 5,
		Transport: common.ClientTransportConfig{
			Endpoints:  []string{server.URL},
			RetryCount: 1,
		},
	})
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer client.Close()

	resp, err := client.Send(42, []byte("payload"))
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if !bytes.Equal(resp, []byte("/42:payload")) {
		t.Errorf("unexpected response %q", resp)
	}
}

func TestClientRetriesWithFreshBody(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if calls.Add(1) == 1 {
			http.Error(w, "try again", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(body)
	}))
	defer server.Close()

	client := NewHttpClientTransport()
	err := client.Connect(common.ClientConfig{
		TimeoutSecond: 5,
		Transport: common.ClientTransportConfig{
			Endpoints:  []string{server.URL},
			RetryCount: 3,
		},
	})
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	resp, err := client.Send(1, []byte("body"))
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if string(resp) != "body" {
		t.Errorf("expected the body to be sent again, got %q", resp)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestClientConnectValidatesEndpoints(t *testing.T) {
	for _, endpoints := range [][]string{nil, {"localhost:8080"}} {
		client := NewHttpClientTransport()
		err := client.Connect(common.ClientConfig{Transport: common.ClientTransportConfig{Endpoints: endpoints}})
		if err == nil {
			t.Errorf("expected an error for endpoints %v", endpoints)
		}
	}
}

func TestClientSendWithoutConnect(t *testing.T) {
	if _, err := NewHttpClientTransport().Send(1, nil); err == nil {
		t.Fatal("expected an error")
	}
}

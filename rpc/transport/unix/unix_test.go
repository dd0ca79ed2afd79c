package unix

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/nora/rpc/common"
	"github.com/ValentinKolb/nora/rpc/transport"
)

// startServer starts an echo server on a socket in a temporary directory
func startServer(t *testing.T) (string, transport.IRPCServerTransport) {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "nora.sock")

	server := NewUnixDefaultServerTransport()
	server.RegisterHandler(func(databaseID uint64, req []byte) []byte {
		if bytes.HasPrefix(req, []byte("slow")) {
			time.Sleep(300 * time.Millisecond)
		}
		return append([]byte(fmt.Sprintf("%d:", databaseID)), req...)
	})

	done := make(chan error, 1)
	go func() {
		done <- server.Listen(common.ServerConfig{
			TimeoutSecond: 5,
			Transport:     common.ServerTransportConfig{Endpoint: socket},
		})
	}()
	t.Cleanup(func() {
		_ = server.Close()
		if err := <-done; err != nil {
			t.Errorf("listen returned %v", err)
		}
	})
	return socket, server
}

// connect retries until the server socket accepts connections
func connect(t *testing.T, socket string, connections int) transport.IRPCClientTransport {
	t.Helper()
	client := NewUnixClientTransport()
	config := common.ClientConfig{
		TimeoutSecond: 5,
		Transport: common.ClientTransportConfig{
			Endpoints:              []string{socket},
			RetryCount:             2,
			ConnectionsPerEndpoint: connections,
		},
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		err := client.Connect(config)
		if err == nil {
			t.Cleanup(func() { _ = client.Close() })
			return client
		}
		if time.Now().After(deadline) {
			t.Fatalf("failed to connect: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestUnixRoundTrip(t *testing.T) {
	socket, _ := startServer(t)
	client := connect(t, socket, 1)

	resp, err := client.Send(100, []byte("hello"))
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if !bytes.Equal(resp, []byte("100:hello")) {
		t.Errorf("unexpected response %q", resp)
	}
}

func TestUnixConcurrentRequests(t *testing.T) {
	socket, _ := startServer(t)
	client := connect(t, socket, 2)

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := []byte(fmt.Sprintf("request-%d", i))
			resp, err := client.Send(uint64(i), payload)
			if err != nil {
				errs <- err
				return
			}
			if want := fmt.Sprintf("%d:%s", i, payload); string(resp) != want {
				errs <- fmt.Errorf("expected %q, got %q", want, resp)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestUnixSlowRequestDoesNotBlockConnection(t *testing.T) {
	socket, _ := startServer(t)
	client := connect(t, socket, 1)

	slow := make(chan error, 1)
	go func() {
		resp, err := client.Send(1, []byte("slow"))
		if err == nil && string(resp) != "1:slow" {
			err = fmt.Errorf("unexpected response %q", resp)
		}
		slow <- err
	}()

	time.Sleep(20 * time.Millisecond)
	start := time.Now()
	if _, err := client.Send(2, []byte("fast")); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("fast request waited %v for the slow one", elapsed)
	}

	if err := <-slow; err != nil {
		t.Error(err)
	}
}

func TestUnixSendAfterClose(t *testing.T) {
	socket, _ := startServer(t)
	client := connect(t, socket, 1)

	_ = client.Close()
	if _, err := client.Send(1, []byte("x")); err == nil {
		t.Fatal("expected an error after close")
	}
}

package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
)

func roundTrip(port int, payload []byte) (Response, error) {
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return Response{}, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if err := WriteFrame(conn, payload); err != nil {
		return Response{}, err
	}
	raw, err := ReadFrame(conn)
	if err != nil {
		return Response{}, err
	}
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, fmt.Errorf("unmarshal response: %w", err)
	}
	return resp, nil
}

func TestServerRoundTrip(t *testing.T) {
	var gotPrompt string
	var gotSlice *string
	srv := NewServer(zap.NewNop())
	port, err := srv.Start(func(prompt string, textSlice *string) (string, error) {
		gotPrompt = prompt
		gotSlice = textSlice
		return "the answer", nil
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Stop()

	resp, err := roundTrip(port, []byte(`{"prompt":"What is the total?","textSlice":"Q3 revenue was $1.8M"}`))
	if err != nil {
		t.Fatalf("roundTrip() error = %v", err)
	}
	if resp.Result == nil || *resp.Result != "the answer" {
		t.Errorf("result = %v, want %q", resp.Result, "the answer")
	}
	if resp.Error != nil {
		t.Errorf("error = %q, want nil", *resp.Error)
	}
	if gotPrompt != "What is the total?" {
		t.Errorf("callback prompt = %q, want %q", gotPrompt, "What is the total?")
	}
	if gotSlice == nil || *gotSlice != "Q3 revenue was $1.8M" {
		t.Errorf("callback textSlice = %v, want %q", gotSlice, "Q3 revenue was $1.8M")
	}
}

func TestServerNullTextSlice(t *testing.T) {
	sliceWasNil := false
	srv := NewServer(zap.NewNop())
	port, err := srv.Start(func(prompt string, textSlice *string) (string, error) {
		sliceWasNil = textSlice == nil
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Stop()

	if _, err := roundTrip(port, []byte(`{"prompt":"P","textSlice":null}`)); err != nil {
		t.Fatalf("roundTrip() error = %v", err)
	}
	if !sliceWasNil {
		t.Error("callback textSlice was non-nil, want nil")
	}
}

func TestServerCallbackError(t *testing.T) {
	srv := NewServer(zap.NewNop())
	port, err := srv.Start(func(prompt string, textSlice *string) (string, error) {
		return "", errors.New("no document loaded")
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Stop()

	resp, err := roundTrip(port, []byte(`{"prompt":"P","textSlice":null}`))
	if err != nil {
		t.Fatalf("roundTrip() error = %v", err)
	}
	if resp.Error == nil || *resp.Error != "no document loaded" {
		t.Errorf("error = %v, want %q", resp.Error, "no document loaded")
	}
	if resp.Result != nil {
		t.Errorf("result = %q, want nil", *resp.Result)
	}
}

func TestServerConcurrentClients(t *testing.T) {
	srv := NewServer(zap.NewNop())
	port, err := srv.Start(func(prompt string, textSlice *string) (string, error) {
		time.Sleep(5 * time.Millisecond) // hold connections open so they overlap
		return "echo:" + prompt, nil
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Stop()

	const clients = 50
	errc := make(chan error, clients)
	for i := 0; i < clients; i++ {
		go func(i int) {
			payload, _ := json.Marshal(Request{Prompt: fmt.Sprintf("q-%d", i)})
			resp, err := roundTrip(port, payload)
			if err != nil {
				errc <- fmt.Errorf("client %d: %w", i, err)
				return
			}
			want := fmt.Sprintf("echo:q-%d", i)
			if resp.Result == nil || *resp.Result != want {
				errc <- fmt.Errorf("client %d got %v, want %q", i, resp.Result, want)
				return
			}
			errc <- nil
		}(i)
	}
	for i := 0; i < clients; i++ {
		if err := <-errc; err != nil {
			t.Error(err)
		}
	}
}

func TestServerStopIdempotent(t *testing.T) {
	srv := NewServer(zap.NewNop())
	port, err := srv.Start(func(prompt string, textSlice *string) (string, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	srv.Stop()
	srv.Stop()

	if conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 200*time.Millisecond); err == nil {
		conn.Close()
		t.Error("dial after Stop succeeded, want refused")
	}
}

func TestServerRestart(t *testing.T) {
	srv := NewServer(zap.NewNop())
	cb := func(prompt string, textSlice *string) (string, error) { return "ok", nil }

	port, err := srv.Start(cb)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := srv.Start(cb); err == nil {
		t.Error("second Start() succeeded, want error")
	}
	srv.Stop()

	port2, err := srv.Start(cb)
	if err != nil {
		t.Fatalf("Start() after Stop error = %v", err)
	}
	defer srv.Stop()
	if port2 == 0 || port2 == port {
		// A fresh bind normally lands on a different ephemeral port.
		t.Logf("restart reused port %d", port2)
	}

	resp, err := roundTrip(port2, []byte(`{"prompt":"P","textSlice":null}`))
	if err != nil {
		t.Fatalf("roundTrip() after restart error = %v", err)
	}
	if resp.Result == nil || *resp.Result != "ok" {
		t.Errorf("result = %v, want %q", resp.Result, "ok")
	}
}

package relay

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matst80/hookcast/internal/proto"
)

func TestIngressAlwaysOK(t *testing.T) {
	hub := NewHub(4)
	h := NewIngressHandler(hub, 0)

	// Zero members connected: still 200, message dropped.
	req := httptest.NewRequest("POST", "/webhook?x=1", bytes.NewReader([]byte(`{"id":1}`)))
	w := httptest.NewRecorder()
	start := time.Now()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("body = %q, want empty", w.Body.String())
	}
	if time.Since(start) > time.Second {
		t.Fatal("ingress response not bounded")
	}
}

func TestIngressBroadcastsEncodedRequest(t *testing.T) {
	hub := NewHub(4)
	m := hub.Register("dev")
	h := NewIngressHandler(hub, 0)

	body := []byte(`{"id":1}`)
	req := httptest.NewRequest("POST", "/webhook?sig=ok", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Add("X-Hook-Attempt", "1")
	req.Header.Add("X-Hook-Attempt", "2")
	req.Header.Set("Connection", "close") // hop header, must be stripped
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var frame []byte
	select {
	case frame = <-m.C():
	default:
		t.Fatal("nothing broadcast")
	}
	got, err := proto.DecodeRequest(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Method != "POST" || got.FullPath != "/webhook?sig=ok" {
		t.Errorf("got %s %s", got.Method, got.FullPath)
	}
	if !bytes.Equal(got.Body, body) {
		t.Errorf("body = %q", got.Body)
	}
	if got.Get("Content-Type") != "application/json" {
		t.Errorf("content type lost: %#v", got.Headers)
	}
	var attempts []string
	for _, hd := range got.Headers {
		if hd.Name == "X-Hook-Attempt" {
			attempts = append(attempts, hd.Value)
		}
		if hd.Name == "Connection" || hd.Name == "Host" {
			t.Errorf("hop header %s relayed", hd.Name)
		}
	}
	if len(attempts) != 2 || attempts[0] != "1" || attempts[1] != "2" {
		t.Errorf("duplicate header values = %v, want [1 2]", attempts)
	}
}

func TestIngressStalledClientDoesNotBlock(t *testing.T) {
	hub := NewHub(1)
	stalled := hub.Register("stalled")
	_ = stalled // never drained
	h := NewIngressHandler(hub, 0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			req := httptest.NewRequest("GET", "/", nil)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", w.Code)
			}
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ingress blocked on a stalled member")
	}
}

func TestIngressOversizedBody(t *testing.T) {
	hub := NewHub(4)
	m := hub.Register("dev")
	h := NewIngressHandler(hub, 8)

	req := httptest.NewRequest("POST", "/big", bytes.NewReader(bytes.Repeat([]byte("a"), 64)))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	select {
	case <-m.C():
		t.Fatal("oversized request was broadcast")
	default:
	}
}

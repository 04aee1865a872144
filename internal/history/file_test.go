package history

import (
	"context"
	"testing"
	"time"

	"github.com/matst80/hookcast/internal/proto"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func sampleItem(path string, at time.Time) Item {
	return Item{
		ReceivedAt: at,
		Request: proto.RequestMessage{
			Method:   "POST",
			FullPath: path,
			Headers:  []proto.Header{{Name: "Content-Type", Value: "application/json"}},
			Body:     []byte(`{"id":1}`),
		},
	}
}

func TestFileStoreAddGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Add(ctx, sampleItem("/webhook", time.Now().UTC()))
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != id {
		t.Errorf("ID = %q, want %q", got.ID, id)
	}
	if got.Request.FullPath != "/webhook" {
		t.Errorf("FullPath = %q", got.Request.FullPath)
	}
	if string(got.Request.Body) != `{"id":1}` {
		t.Errorf("Body = %q", got.Request.Body)
	}
}

func TestFileStoreListOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if _, err := s.Add(ctx, sampleItem("/n", base.Add(time.Duration(2-i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}
	items, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i].ReceivedAt.Before(items[i-1].ReceivedAt) {
			t.Fatal("items not sorted by receive time")
		}
	}
}

func TestFileStoreDeleteClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Add(ctx, sampleItem("/x", time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, id); err != ErrNotFound {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
	if _, err := s.Get(ctx, id); err != ErrNotFound {
		t.Errorf("get err = %v, want ErrNotFound", err)
	}

	for i := 0; i < 4; i++ {
		if _, err := s.Add(ctx, sampleItem("/y", time.Now())); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	items, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("len = %d after clear, want 0", len(items))
	}
}

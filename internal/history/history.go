package history

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/matst80/hookcast/internal/proto"
)

// ErrNotFound is returned by Get and Delete for unknown item IDs.
var ErrNotFound = errors.New("history: item not found")

// Item is one received request kept for inspection and replay.
type Item struct {
	ID         string               `json:"id"`
	ReceivedAt time.Time            `json:"received_at"`
	Request    proto.RequestMessage `json:"request"`
}

// Store persists received requests. All implementations are best-effort from
// the relay's point of view: a failed Add never blocks forwarding.
type Store interface {
	Add(ctx context.Context, item Item) (string, error)
	Get(ctx context.Context, id string) (Item, error)
	List(ctx context.Context) ([]Item, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// newID returns a random hex identifier.
func newID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

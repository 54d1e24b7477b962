package memory

import (
	"context"
	"sync"

	"documine/internal/port/outbound"

	"github.com/google/uuid"
)

// ProgressNotifier is an in-process fan-out of job snapshots, keyed by
// document. Slow subscribers drop events rather than block the pipeline;
// the persisted snapshot is the source of truth, push is best effort.
type ProgressNotifier struct {
	mu          sync.Mutex
	subscribers map[uuid.UUID]map[int]chan outbound.JobSnapshot
	nextID      int
}

// NewProgressNotifier creates an in-process notifier.
func NewProgressNotifier() *ProgressNotifier {
	return &ProgressNotifier{
		subscribers: make(map[uuid.UUID]map[int]chan outbound.JobSnapshot),
	}
}

// Notify delivers the snapshot to every subscriber of its document.
func (n *ProgressNotifier) Notify(_ context.Context, snapshot outbound.JobSnapshot) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subscribers[snapshot.DocumentID] {
		select {
		case ch <- snapshot:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of live snapshots for the document. The
// channel closes when the context is cancelled.
func (n *ProgressNotifier) Subscribe(ctx context.Context, documentID uuid.UUID) (<-chan outbound.JobSnapshot, error) {
	ch := make(chan outbound.JobSnapshot, 16)

	n.mu.Lock()
	if n.subscribers[documentID] == nil {
		n.subscribers[documentID] = make(map[int]chan outbound.JobSnapshot)
	}
	id := n.nextID
	n.nextID++
	n.subscribers[documentID][id] = ch
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.subscribers[documentID], id)
		if len(n.subscribers[documentID]) == 0 {
			delete(n.subscribers, documentID)
		}
		n.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

package session

import (
	"sort"
	"sync"
	"time"

	"github.com/danmuck/objsync/internal/protocol"
)

// PendingRequest tracks one RequestSync awaiting SyncRequestAccepted.
type PendingRequest struct {
	ObjectID      int32
	Owner         protocol.PeerID
	Attempts      int
	QueuedAt      time.Time
	LastAttemptAt time.Time
	DeadlineAt    time.Time
}

// RequestOutbox stores pending ownership requests by object id.
type RequestOutbox struct {
	mu    sync.RWMutex
	items map[int32]PendingRequest
}

func NewRequestOutbox() *RequestOutbox {
	return &RequestOutbox{
		items: make(map[int32]PendingRequest),
	}
}

func (o *RequestOutbox) Upsert(item PendingRequest) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items[item.ObjectID] = item
}

// MarkAttempt records one more send of the request and moves its deadline.
func (o *RequestOutbox) MarkAttempt(objectID int32, at, deadline time.Time) (PendingRequest, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	item, ok := o.items[objectID]
	if !ok {
		return PendingRequest{}, false
	}
	item.Attempts++
	item.LastAttemptAt = at
	item.DeadlineAt = deadline
	o.items[objectID] = item
	return item, true
}

func (o *RequestOutbox) Remove(objectID int32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.items, objectID)
}

func (o *RequestOutbox) Get(objectID int32) (PendingRequest, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	item, ok := o.items[objectID]
	return item, ok
}

// Due returns requests whose deadline is at or before now, ordered by object id.
func (o *RequestOutbox) Due(now time.Time) []PendingRequest {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]PendingRequest, 0)
	for _, item := range o.items {
		if !item.DeadlineAt.After(now) {
			out = append(out, item)
		}
	}
	sortByObject(out)
	return out
}

func (o *RequestOutbox) List() []PendingRequest {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]PendingRequest, 0, len(o.items))
	for _, item := range o.items {
		out = append(out, item)
	}
	sortByObject(out)
	return out
}

func sortByObject(items []PendingRequest) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].ObjectID < items[j].ObjectID
	})
}

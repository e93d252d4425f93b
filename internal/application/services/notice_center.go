package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// NoticeKind classifies a transient notice
type NoticeKind string

const (
	NoticeKindInfo  NoticeKind = "info"
	NoticeKindError NoticeKind = "error"
)

// Notice is a transient user-facing message. Notices auto-dismiss after the
// center's TTL; they are never persisted.
type Notice struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Kind      NoticeKind `json:"kind"`
	CreatedAt time.Time  `json:"created_at"`
}

const defaultNoticeTTL = 3 * time.Second

// NoticeCenter holds the currently visible notices for one view, in push
// order, and dismisses each one after its TTL.
type NoticeCenter struct {
	ttl time.Duration

	mu             sync.Mutex
	notices        []Notice
	timers         map[string]*time.Timer
	listeners      map[int]func([]Notice)
	nextListenerID int
	closed         bool
}

// NewNoticeCenter creates a notice center. A non-positive ttl selects the
// 3 second default.
func NewNoticeCenter(ttl time.Duration) *NoticeCenter {
	if ttl <= 0 {
		ttl = defaultNoticeTTL
	}
	return &NoticeCenter{
		ttl:       ttl,
		timers:    make(map[string]*time.Timer),
		listeners: make(map[int]func([]Notice)),
	}
}

// Push adds a notice and schedules its dismissal.
func (nc *NoticeCenter) Push(text string, kind NoticeKind) Notice {
	notice := Notice{
		ID:        uuid.New().String(),
		Text:      text,
		Kind:      kind,
		CreatedAt: time.Now(),
	}

	nc.mu.Lock()
	if nc.closed {
		nc.mu.Unlock()
		return notice
	}
	nc.notices = append(nc.notices, notice)
	nc.timers[notice.ID] = time.AfterFunc(nc.ttl, func() {
		nc.Dismiss(notice.ID)
	})
	notify := nc.notifyLocked()
	nc.mu.Unlock()
	notify()

	return notice
}

// Dismiss removes a notice before its TTL elapses. Dismissing an unknown id
// is a no-op.
func (nc *NoticeCenter) Dismiss(id string) {
	nc.mu.Lock()
	if timer, ok := nc.timers[id]; ok {
		timer.Stop()
		delete(nc.timers, id)
	}

	i := -1
	for j := range nc.notices {
		if nc.notices[j].ID == id {
			i = j
			break
		}
	}
	if i < 0 {
		nc.mu.Unlock()
		return
	}
	nc.notices = append(nc.notices[:i], nc.notices[i+1:]...)
	notify := nc.notifyLocked()
	nc.mu.Unlock()
	notify()
}

// Notices returns the currently visible notices in push order.
func (nc *NoticeCenter) Notices() []Notice {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	out := make([]Notice, len(nc.notices))
	copy(out, nc.notices)
	return out
}

// Subscribe registers a listener called with the full notice list on every
// change. The returned function unsubscribes.
func (nc *NoticeCenter) Subscribe(fn func([]Notice)) func() {
	nc.mu.Lock()
	id := nc.nextListenerID
	nc.nextListenerID++
	nc.listeners[id] = fn
	nc.mu.Unlock()

	return func() {
		nc.mu.Lock()
		defer nc.mu.Unlock()
		delete(nc.listeners, id)
	}
}

// Close stops every dismissal timer and drops all notices.
func (nc *NoticeCenter) Close() {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	nc.closed = true
	for id, timer := range nc.timers {
		timer.Stop()
		delete(nc.timers, id)
	}
	nc.notices = nil
}

func (nc *NoticeCenter) notifyLocked() func() {
	snapshot := make([]Notice, len(nc.notices))
	copy(snapshot, nc.notices)
	listeners := make([]func([]Notice), 0, len(nc.listeners))
	for _, fn := range nc.listeners {
		listeners = append(listeners, fn)
	}
	return func() {
		for _, fn := range listeners {
			fn(snapshot)
		}
	}
}

package services

import (
	"context"
	"sync"

	"github.com/careloop/conditiontrack/internal/domain/entities"
	"github.com/careloop/conditiontrack/internal/domain/providers"
	apperrors "github.com/careloop/conditiontrack/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ConditionView is a mountable view-model over the condition store. While
// mounted it holds a snapshot of every condition, re-reads the store whenever
// an invalidation event arrives on the bus, and fans the fresh snapshot out
// to its listeners. Two mounted views over the same bus therefore converge
// after any mutation without either one refreshing manually.
//
// Events are treated purely as invalidation signals; the view always re-reads
// the store instead of patching its snapshot from event payloads.
type ConditionView struct {
	records *RecordService
	bus     providers.EventBus
	notices *NoticeCenter

	mu             sync.RWMutex
	conditions     []*entities.Condition
	listeners      map[int]func([]*entities.Condition)
	nextListenerID int

	cancel context.CancelFunc
	done   chan struct{}
}

// NewConditionView creates an unmounted view over the record service.
func NewConditionView(records *RecordService, bus providers.EventBus) *ConditionView {
	return &ConditionView{
		records:   records,
		bus:       bus,
		notices:   NewNoticeCenter(0),
		listeners: make(map[int]func([]*entities.Condition)),
	}
}

// Mount loads the initial snapshot and starts listening for invalidation
// events. Mount blocks only for the initial read.
func (v *ConditionView) Mount(ctx context.Context) error {
	conditions, err := v.records.ListConditions(ctx)
	if err != nil {
		return err
	}

	subCtx, cancel := context.WithCancel(ctx)
	updates, err := v.bus.Subscribe(subCtx, providers.EventChannelRecordUpdates)
	if err != nil {
		cancel()
		return err
	}

	v.mu.Lock()
	v.conditions = conditions
	v.cancel = cancel
	v.done = make(chan struct{})
	v.mu.Unlock()

	go v.watch(subCtx, updates)
	return nil
}

func (v *ConditionView) watch(ctx context.Context, updates <-chan *entities.RecordEvent) {
	defer close(v.done)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-updates:
			if !ok {
				return
			}
			log.Debug().
				Str("event_id", event.ID).
				Str("entity", string(event.Entity)).
				Str("action", string(event.Action)).
				Msg("record invalidation received")
			v.refresh(ctx)
		}
	}
}

// refresh re-reads the store. On failure the previous snapshot stays visible
// and the failure becomes a transient notice.
func (v *ConditionView) refresh(ctx context.Context) {
	conditions, err := v.records.ListConditions(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to refresh conditions after invalidation")
		v.notices.Push("could not refresh conditions", NoticeKindError)
		return
	}

	v.mu.Lock()
	v.conditions = conditions
	notify := v.notifyLocked()
	v.mu.Unlock()
	notify()
}

// Unmount stops the invalidation listener and waits for it to exit. The last
// snapshot remains readable.
func (v *ConditionView) Unmount() {
	v.mu.Lock()
	cancel, done := v.cancel, v.done
	v.cancel, v.done = nil, nil
	v.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Conditions returns the current snapshot.
func (v *ConditionView) Conditions() []*entities.Condition {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]*entities.Condition, len(v.conditions))
	copy(out, v.conditions)
	return out
}

// Subscribe registers a listener called with the snapshot after every
// refresh. The returned function unsubscribes.
func (v *ConditionView) Subscribe(fn func([]*entities.Condition)) func() {
	v.mu.Lock()
	id := v.nextListenerID
	v.nextListenerID++
	v.listeners[id] = fn
	v.mu.Unlock()

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.listeners, id)
	}
}

// Notices exposes the view's transient notices.
func (v *ConditionView) Notices() *NoticeCenter {
	return v.notices
}

// CreateCondition records a condition through the write path. A validation
// failure becomes a transient notice instead of an error the caller must
// render.
func (v *ConditionView) CreateCondition(ctx context.Context, name string) (*entities.Condition, error) {
	condition, err := v.records.CreateCondition(ctx, name)
	if err != nil {
		if apperrors.IsValidation(err) {
			v.notices.Push("condition name cannot be empty", NoticeKindError)
		}
		return nil, err
	}
	return condition, nil
}

// DeleteCondition deletes through the write path.
func (v *ConditionView) DeleteCondition(ctx context.Context, id string) error {
	return v.records.DeleteCondition(ctx, id)
}

func (v *ConditionView) notifyLocked() func() {
	snapshot := make([]*entities.Condition, len(v.conditions))
	copy(snapshot, v.conditions)
	listeners := make([]func([]*entities.Condition), 0, len(v.listeners))
	for _, fn := range v.listeners {
		listeners = append(listeners, fn)
	}
	return func() {
		for _, fn := range listeners {
			fn(snapshot)
		}
	}
}

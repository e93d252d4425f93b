package handlers_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/careloop/conditiontrack/internal/adapters/events"
	"github.com/careloop/conditiontrack/internal/api/handlers"
	"github.com/careloop/conditiontrack/internal/domain/entities"
	"github.com/careloop/conditiontrack/internal/domain/providers"
)

func TestSSEHandler_StreamRecordUpdates(t *testing.T) {
	bus := events.NewMemoryEventBus()
	defer bus.Close()
	handler := handlers.NewSSEHandler(bus)

	t.Run("establishes the stream with SSE headers", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		req := httptest.NewRequest("GET", "/api/stream/records", nil).WithContext(ctx)
		w := httptest.NewRecorder()

		done := make(chan struct{})
		go func() {
			handler.StreamRecordUpdates(w, req)
			close(done)
		}()
		time.Sleep(100 * time.Millisecond)

		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("handler did not exit after cancel")
		}

		result := w.Result()
		if result.Header.Get("Content-Type") != "text/event-stream" {
			t.Errorf("expected Content-Type text/event-stream, got %s", result.Header.Get("Content-Type"))
		}
		if !strings.Contains(w.Body.String(), "event: connected") {
			t.Error("expected an initial connected event")
		}
	})

	t.Run("forwards record events to the client", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		req := httptest.NewRequest("GET", "/api/stream/records", nil).WithContext(ctx)
		w := httptest.NewRecorder()

		done := make(chan struct{})
		go func() {
			handler.StreamRecordUpdates(w, req)
			close(done)
		}()
		time.Sleep(100 * time.Millisecond)

		event := entities.NewRecordEvent("cond-1", entities.RecordEntityMedication, entities.RecordActionCreated)
		if err := bus.Publish(context.Background(), providers.EventChannelRecordUpdates, event); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
		time.Sleep(200 * time.Millisecond)

		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("handler did not exit after cancel")
		}

		body := w.Body.String()
		if !strings.Contains(body, "event: record_update") {
			t.Errorf("expected a record_update event, got:\n%s", body)
		}
		if !strings.Contains(body, "cond-1") {
			t.Errorf("expected the event payload in the stream, got:\n%s", body)
		}
	})
}

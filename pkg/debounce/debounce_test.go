package debounce

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCall_CollapsesBurstIntoSingleInvocation(t *testing.T) {
	d := New(30 * time.Millisecond)
	defer d.Close()

	var calls int32
	var got int32
	for i := 1; i <= 10; i++ {
		n := int32(i)
		d.Call("name", func() {
			atomic.AddInt32(&calls, 1)
			atomic.StoreInt32(&got, n)
		})
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)

	if c := atomic.LoadInt32(&calls); c != 1 {
		t.Fatalf("expected exactly 1 invocation, got %d", c)
	}
	if g := atomic.LoadInt32(&got); g != 10 {
		t.Errorf("expected the last call's function to fire, got call %d", g)
	}
}

func TestCall_DoesNotFireBeforeDelay(t *testing.T) {
	d := New(50 * time.Millisecond)
	defer d.Close()

	var fired int32
	d.Call("name", func() { atomic.StoreInt32(&fired, 1) })

	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatal("invocation fired before the delay elapsed")
	}

	time.Sleep(80 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 1 {
		t.Fatal("invocation never fired")
	}
}

func TestCall_KeysAreIndependent(t *testing.T) {
	d := New(20 * time.Millisecond)
	defer d.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	d.Call("condition", wg.Done)
	d.Call("medication", wg.Done)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("both keys should fire independently")
	}
}

func TestCancel_DropsPendingInvocation(t *testing.T) {
	d := New(20 * time.Millisecond)
	defer d.Close()

	var fired int32
	d.Call("name", func() { atomic.StoreInt32(&fired, 1) })
	if !d.Pending("name") {
		t.Fatal("expected a pending invocation")
	}
	d.Cancel("name")

	time.Sleep(60 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Error("cancelled invocation still fired")
	}
	if d.Pending("name") {
		t.Error("cancelled key still pending")
	}
}

func TestCancel_ThenCallKeepsOnlyTheFreshInvocation(t *testing.T) {
	d := New(time.Millisecond)
	defer d.Close()

	var stale, fresh int32
	d.Call("name", func() { atomic.StoreInt32(&stale, 1) })

	// Hold the lock past the delay so the expired timer's callback parks on
	// it, then drop the key before releasing. This is a blur landing just
	// as the debounce window closes.
	d.mu.Lock()
	time.Sleep(10 * time.Millisecond)
	if e, ok := d.entries["name"]; ok {
		e.timer.Stop()
		delete(d.entries, "name")
	}
	d.mu.Unlock()

	d.Call("name", func() { atomic.StoreInt32(&fresh, 1) })

	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt32(&stale) != 0 {
		t.Error("invocation cancelled at blur still fired")
	}
	if atomic.LoadInt32(&fresh) != 1 {
		t.Error("invocation scheduled after the cancel never fired")
	}
}

func TestCall_GenerationsNeverReusedAcrossCancel(t *testing.T) {
	d := New(time.Hour)
	defer d.Close()

	d.Call("name", func() {})
	d.mu.Lock()
	first := d.entries["name"].gen
	d.mu.Unlock()

	d.Cancel("name")
	d.Call("name", func() {})
	d.mu.Lock()
	second := d.entries["name"].gen
	d.mu.Unlock()

	if second == first {
		t.Fatalf("generation %d handed out again after Cancel; a stale timer could match it", first)
	}
}

func TestClose_CancelsEverythingAndIgnoresFurtherCalls(t *testing.T) {
	d := New(20 * time.Millisecond)

	var fired int32
	d.Call("a", func() { atomic.AddInt32(&fired, 1) })
	d.Call("b", func() { atomic.AddInt32(&fired, 1) })
	d.Close()

	d.Call("c", func() { atomic.AddInt32(&fired, 1) })

	time.Sleep(60 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Errorf("expected no invocations after Close, got %d", atomic.LoadInt32(&fired))
	}
}

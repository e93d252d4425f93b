package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/careloop/conditiontrack/internal/domain/entities"
	"github.com/careloop/conditiontrack/internal/domain/providers"
)

type remoteReply struct {
	names []string
	err   error
}

// gatedProvider blocks each CompleteConditionName call until the test
// releases it, so response arrival order is under test control.
type gatedProvider struct {
	mu      sync.Mutex
	gates   map[string]chan remoteReply
	started chan string
}

func newGatedProvider() *gatedProvider {
	return &gatedProvider{
		gates:   make(map[string]chan remoteReply),
		started: make(chan string, 16),
	}
}

func (p *gatedProvider) gate(query string) chan remoteReply {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.gates[query]
	if !ok {
		ch = make(chan remoteReply, 1)
		p.gates[query] = ch
	}
	return ch
}

func (p *gatedProvider) release(query string, names []string, err error) {
	p.gate(query) <- remoteReply{names: names, err: err}
}

func (p *gatedProvider) CompleteConditionName(ctx context.Context, partial string) ([]string, error) {
	ch := p.gate(partial)
	p.started <- partial
	reply := <-ch
	return reply.names, reply.err
}

func (p *gatedProvider) AnalyzeMedication(ctx context.Context, name string) (*entities.MedicationAnalysis, error) {
	return &entities.MedicationAnalysis{Medication: name}, nil
}

func (p *gatedProvider) SuggestTreatments(ctx context.Context, conditionName string) ([]string, error) {
	return []string{}, nil
}

func (p *gatedProvider) awaitStart(t *testing.T, query string) {
	t.Helper()
	select {
	case got := <-p.started:
		if got != query {
			t.Fatalf("expected remote query %q to start, got %q", query, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("remote query %q never started", query)
	}
}

func newTestCoordinator(remote *gatedProvider) *SuggestionCoordinator {
	idx := NewSuggestionIndexFromEntries(testDataset())
	var provider providers.SuggestionProvider
	if remote != nil {
		provider = remote
	}
	return NewSuggestionCoordinator(idx, provider, nil, CoordinatorConfig{
		MinQueryLength: 2,
		DebounceDelay:  time.Millisecond,
		Limit:          5,
	})
}

func watchField(coord *SuggestionCoordinator, field string) (chan SuggestionSnapshot, func()) {
	snaps := make(chan SuggestionSnapshot, 64)
	unsub := coord.Subscribe(field, func(s SuggestionSnapshot) {
		snaps <- s
	})
	return snaps, unsub
}

func awaitSnapshot(t *testing.T, snaps chan SuggestionSnapshot, pred func(SuggestionSnapshot) bool) SuggestionSnapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-snaps:
			if pred(snap) {
				return snap
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
			return SuggestionSnapshot{}
		}
	}
}

func hasText(snap SuggestionSnapshot, text string) bool {
	for _, s := range snap.Suggestions {
		if s.Text == text {
			return true
		}
	}
	return false
}

func TestCoordinator_LocalResultsApplyWhileRemoteInFlight(t *testing.T) {
	remote := newGatedProvider()
	coord := newTestCoordinator(remote)
	defer coord.Close()

	snaps, unsub := watchField(coord, "condition")
	defer unsub()

	coord.Input(context.Background(), "condition", "Diab")
	remote.awaitStart(t, "Diab")

	snap := coord.Snapshot("condition")
	if !snap.Loading {
		t.Error("field should be loading while the remote call is in flight")
	}
	if !hasText(snap, "Diabetes") || !hasText(snap, "Diabrotica") {
		t.Errorf("local matches should be visible before the remote reply, got %v", snap.Suggestions)
	}
	for _, s := range snap.Suggestions {
		if s.Source != entities.SuggestionSourceLocal {
			t.Errorf("only local suggestions expected at this point, got %v", s)
		}
	}

	remote.release("Diab", []string{"Diabetes insípida"}, nil)
	final := awaitSnapshot(t, snaps, func(s SuggestionSnapshot) bool { return !s.Loading && s.State == FieldStateResolved })
	if !hasText(final, "Diabetes insípida") {
		t.Errorf("remote suggestion should be merged in, got %v", final.Suggestions)
	}
}

func TestCoordinator_StaleResponseDiscarded(t *testing.T) {
	remote := newGatedProvider()
	coord := newTestCoordinator(remote)
	defer coord.Close()

	snaps, unsub := watchField(coord, "condition")
	defer unsub()

	coord.Input(context.Background(), "condition", "Diab")
	remote.awaitStart(t, "Diab")

	coord.Input(context.Background(), "condition", "Diabet")
	remote.awaitStart(t, "Diabet")

	// The newer query's response lands first.
	remote.release("Diabet", []string{"Diabetes tipo 2"}, nil)
	resolved := awaitSnapshot(t, snaps, func(s SuggestionSnapshot) bool { return !s.Loading && s.State == FieldStateResolved })
	if !hasText(resolved, "Diabetes tipo 2") {
		t.Errorf("latest response should be applied, got %v", resolved.Suggestions)
	}

	// The older query's response lands late and must be ignored.
	remote.release("Diab", []string{"Stale Entry"}, nil)
	time.Sleep(100 * time.Millisecond)

	snap := coord.Snapshot("condition")
	if hasText(snap, "Stale Entry") {
		t.Errorf("stale response must not overwrite newer results, got %v", snap.Suggestions)
	}
	if !hasText(snap, "Diabetes tipo 2") {
		t.Errorf("newer results should survive the stale arrival, got %v", snap.Suggestions)
	}
}

func TestCoordinator_RemoteFailureDegradesToLocal(t *testing.T) {
	remote := newGatedProvider()
	coord := newTestCoordinator(remote)
	defer coord.Close()

	snaps, unsub := watchField(coord, "condition")
	defer unsub()

	coord.Input(context.Background(), "condition", "Gri")
	remote.awaitStart(t, "Gri")
	remote.release("Gri", nil, errors.New("upstream unavailable"))

	snap := awaitSnapshot(t, snaps, func(s SuggestionSnapshot) bool { return !s.Loading && s.State == FieldStateResolved })
	if len(snap.Suggestions) != 1 || snap.Suggestions[0].Text != "Gripe" {
		t.Errorf("local results should survive a remote failure, got %v", snap.Suggestions)
	}
	if snap.Notice == "" {
		t.Error("a remote failure should surface an inline notice")
	}
}

func TestCoordinator_ShortInputClearsField(t *testing.T) {
	remote := newGatedProvider()
	coord := newTestCoordinator(remote)
	defer coord.Close()

	coord.Input(context.Background(), "condition", "Diab")
	remote.awaitStart(t, "Diab")
	remote.release("Diab", []string{"Diabetes insípida"}, nil)

	snaps, unsub := watchField(coord, "condition")
	defer unsub()
	awaitSnapshot(t, snaps, func(s SuggestionSnapshot) bool { return s.State == FieldStateResolved })

	coord.Input(context.Background(), "condition", "D")
	snap := awaitSnapshot(t, snaps, func(s SuggestionSnapshot) bool { return s.State == FieldStateIdle })
	if len(snap.Suggestions) != 0 || snap.Loading {
		t.Errorf("short input should clear the field, got %+v", snap)
	}
}

func TestCoordinator_SelectDiscardsInFlightResponse(t *testing.T) {
	remote := newGatedProvider()
	coord := newTestCoordinator(remote)
	defer coord.Close()

	coord.Input(context.Background(), "condition", "Diab")
	remote.awaitStart(t, "Diab")

	coord.Select("condition")
	snap := coord.Snapshot("condition")
	if len(snap.Suggestions) != 0 || snap.State != FieldStateIdle {
		t.Errorf("selection should clear the field, got %+v", snap)
	}

	remote.release("Diab", []string{"Diabetes insípida"}, nil)
	time.Sleep(100 * time.Millisecond)

	snap = coord.Snapshot("condition")
	if len(snap.Suggestions) != 0 {
		t.Errorf("a response arriving after selection must be discarded, got %v", snap.Suggestions)
	}
}

func TestCoordinator_BlurCancelsPendingDebounce(t *testing.T) {
	remote := newGatedProvider()
	idx := NewSuggestionIndexFromEntries(testDataset())
	coord := NewSuggestionCoordinator(idx, remote, nil, CoordinatorConfig{
		MinQueryLength: 2,
		DebounceDelay:  time.Hour,
		Limit:          5,
	})
	defer coord.Close()

	coord.Input(context.Background(), "condition", "Diab")
	coord.Blur("condition")

	time.Sleep(50 * time.Millisecond)
	select {
	case q := <-remote.started:
		t.Errorf("blur should cancel the pending query, but %q started", q)
	default:
	}
	if snap := coord.Snapshot("condition"); snap.State != FieldStateIdle {
		t.Errorf("blurred field should be idle, got %+v", snap)
	}
}

func TestCoordinator_LocalOnlyWithoutRemoteProvider(t *testing.T) {
	coord := newTestCoordinator(nil)
	defer coord.Close()

	snaps, unsub := watchField(coord, "condition")
	defer unsub()

	coord.Input(context.Background(), "condition", "Asm")
	snap := awaitSnapshot(t, snaps, func(s SuggestionSnapshot) bool { return s.State == FieldStateResolved })
	if snap.Loading {
		t.Error("local-only mode should never report loading")
	}
	if len(snap.Suggestions) != 1 || snap.Suggestions[0].Text != "Asma" {
		t.Errorf("expected local match only, got %v", snap.Suggestions)
	}
}

func TestCoordinator_QueryMergesAndDeduplicates(t *testing.T) {
	remote := newGatedProvider()
	coord := newTestCoordinator(remote)
	defer coord.Close()

	go func() {
		remote.awaitStartQuiet("Diab")
		remote.release("Diab", []string{"diabetes", "Diabetes gestacional", ""}, nil)
	}()

	got, err := coord.Query(context.Background(), " Diab ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []entities.Suggestion{
		{Text: "Diabetes", Source: entities.SuggestionSourceLocal},
		{Text: "Diabrotica", Source: entities.SuggestionSourceLocal},
		{Text: "Diabetes gestacional", Source: entities.SuggestionSourceRemote},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestMergeSuggestions_NeverExceedsLimit(t *testing.T) {
	local := toSuggestions([]string{"Asma", "Artritis", "Anemia"}, entities.SuggestionSourceLocal)

	got := mergeSuggestions(local, []string{"Angina", "Amigdalitis", "Apendicitis"}, 5)
	if len(got) != 5 {
		t.Fatalf("expected the merged list capped at 5, got %d: %v", len(got), got)
	}
	if got[3].Text != "Angina" || got[4].Text != "Amigdalitis" {
		t.Errorf("remote names should fill the remaining slots in order, got %v", got)
	}

	full := toSuggestions([]string{"Asma", "Artritis", "Anemia", "Angina", "Amigdalitis"}, entities.SuggestionSourceLocal)
	got = mergeSuggestions(full, []string{"Apendicitis"}, 5)
	if len(got) != 5 {
		t.Fatalf("a full local list leaves no room for remote names, got %d: %v", len(got), got)
	}
	for _, s := range got {
		if s.Source != entities.SuggestionSourceLocal {
			t.Errorf("no remote name should displace a local match, got %v", s)
		}
	}
}

func TestCoordinator_QueryBelowMinLengthIsEmpty(t *testing.T) {
	coord := newTestCoordinator(nil)
	defer coord.Close()

	got, err := coord.Query(context.Background(), "D")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

func TestCoordinator_QueryReturnsLocalOnRemoteError(t *testing.T) {
	remote := newGatedProvider()
	coord := newTestCoordinator(remote)
	defer coord.Close()

	go func() {
		remote.awaitStartQuiet("Gri")
		remote.release("Gri", nil, errors.New("upstream unavailable"))
	}()

	got, err := coord.Query(context.Background(), "Gri")
	if err == nil {
		t.Fatal("expected the remote error to be reported")
	}
	if len(got) != 1 || got[0].Text != "Gripe" {
		t.Errorf("local results should accompany the error, got %v", got)
	}
}

// awaitStartQuiet is the goroutine-safe variant of awaitStart for use where
// *testing.T must not be touched.
func (p *gatedProvider) awaitStartQuiet(query string) {
	for got := range p.started {
		if got == query {
			return
		}
	}
}

// stubCache is a minimal in-memory CacheProvider for cache-aside tests.
type stubCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newStubCache() *stubCache {
	return &stubCache{entries: make(map[string][]byte)}
}

func (c *stubCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return data, nil
}

func (c *stubCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

// countingProvider answers immediately and counts calls.
type countingProvider struct {
	mu    sync.Mutex
	calls int
	names []string
}

func (p *countingProvider) CompleteConditionName(ctx context.Context, partial string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.names, nil
}

func (p *countingProvider) AnalyzeMedication(ctx context.Context, name string) (*entities.MedicationAnalysis, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return &entities.MedicationAnalysis{Medication: name, Common: []string{"náuseas"}}, nil
}

func (p *countingProvider) SuggestTreatments(ctx context.Context, conditionName string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return []string{"Reposo"}, nil
}

func (p *countingProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestCoordinator_QueryUsesCacheOnRepeat(t *testing.T) {
	remote := &countingProvider{names: []string{"Diabetes mellitus"}}
	idx := NewSuggestionIndexFromEntries(testDataset())
	coord := NewSuggestionCoordinator(idx, remote, newStubCache(), CoordinatorConfig{
		MinQueryLength: 2,
		DebounceDelay:  time.Millisecond,
		Limit:          5,
	})
	defer coord.Close()

	first, err := coord.Query(context.Background(), "Diab")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Same query differing only in case must hit the cache.
	second, err := coord.Query(context.Background(), "diab")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if remote.callCount() != 1 {
		t.Errorf("expected a single remote call, got %d", remote.callCount())
	}
	if !hasText(SuggestionSnapshot{Suggestions: first}, "Diabetes mellitus") ||
		!hasText(SuggestionSnapshot{Suggestions: second}, "Diabetes mellitus") {
		t.Errorf("cached remote suggestion missing: first=%v second=%v", first, second)
	}
}

func TestCoordinator_AnalyzeMedicationCached(t *testing.T) {
	remote := &countingProvider{}
	idx := NewSuggestionIndexFromEntries(testDataset())
	coord := NewSuggestionCoordinator(idx, remote, newStubCache(), CoordinatorConfig{})
	defer coord.Close()

	for i := 0; i < 2; i++ {
		analysis, err := coord.AnalyzeMedication(context.Background(), "Metformina")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if analysis == nil || analysis.Medication != "Metformina" {
			t.Fatalf("unexpected analysis: %+v", analysis)
		}
	}
	if remote.callCount() != 1 {
		t.Errorf("expected a single remote call, got %d", remote.callCount())
	}
}

package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/careloop/conditiontrack/internal/domain/entities"
	"github.com/careloop/conditiontrack/internal/domain/providers"
	"github.com/careloop/conditiontrack/pkg/debounce"
	"github.com/rs/zerolog/log"
)

// FieldState is the per-field phase of the suggestion state machine
type FieldState string

const (
	FieldStateIdle       FieldState = "idle"
	FieldStateDebouncing FieldState = "debouncing"
	FieldStateQuerying   FieldState = "querying"
	FieldStateResolved   FieldState = "resolved"
)

// SuggestionSnapshot is the immutable view of a field pushed to listeners.
type SuggestionSnapshot struct {
	State       FieldState            `json:"state"`
	Suggestions []entities.Suggestion `json:"suggestions"`
	Loading     bool                  `json:"loading"`
	Notice      string                `json:"notice,omitempty"`
}

// CoordinatorConfig tunes the suggestion coordinator
type CoordinatorConfig struct {
	MinQueryLength  int
	DebounceDelay   time.Duration
	Limit           int
	CacheTTLSeconds int
}

const (
	defaultMinQueryLength  = 2
	defaultDebounceDelay   = 300 * time.Millisecond
	defaultSuggestionLimit = 5
	defaultCacheTTLSeconds = 300
)

// SuggestionCoordinator reconciles the synchronous local index with the
// asynchronous remote provider, one state machine per input field.
//
// Correctness rests on a monotonic per-field sequence number: every fired
// query takes the next sequence, and a remote response is applied only if
// its sequence still equals the field's latest. In-flight requests are never
// aborted; stale results are simply discarded on arrival, so visible
// suggestions always reflect the most recently issued query regardless of
// network arrival order.
type SuggestionCoordinator struct {
	index     *SuggestionIndex
	remote    providers.SuggestionProvider // nil runs local-only
	cache     providers.CacheProvider      // nil disables caching
	cfg       CoordinatorConfig
	debouncer *debounce.Debouncer

	mu     sync.Mutex
	fields map[string]*coordinatorField
}

type coordinatorField struct {
	state       FieldState
	seq         uint64
	suggestions []entities.Suggestion
	loading     bool
	notice      string

	listeners      map[int]func(SuggestionSnapshot)
	nextListenerID int
}

// NewSuggestionCoordinator creates a coordinator over the local index and an
// optional remote provider. Caching of remote results lives here, not in the
// provider.
func NewSuggestionCoordinator(index *SuggestionIndex, remote providers.SuggestionProvider, cache providers.CacheProvider, cfg CoordinatorConfig) *SuggestionCoordinator {
	if cfg.MinQueryLength <= 0 {
		cfg.MinQueryLength = defaultMinQueryLength
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = defaultDebounceDelay
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultSuggestionLimit
	}
	if cfg.CacheTTLSeconds <= 0 {
		cfg.CacheTTLSeconds = defaultCacheTTLSeconds
	}

	return &SuggestionCoordinator{
		index:     index,
		remote:    remote,
		cache:     cache,
		cfg:       cfg,
		debouncer: debounce.New(cfg.DebounceDelay),
		fields:    make(map[string]*coordinatorField),
	}
}

func (c *SuggestionCoordinator) field(name string) *coordinatorField {
	fs, ok := c.fields[name]
	if !ok {
		fs = &coordinatorField{
			state:     FieldStateIdle,
			listeners: make(map[int]func(SuggestionSnapshot)),
		}
		c.fields[name] = fs
	}
	return fs
}

func (fs *coordinatorField) snapshot() SuggestionSnapshot {
	suggestions := make([]entities.Suggestion, len(fs.suggestions))
	copy(suggestions, fs.suggestions)
	return SuggestionSnapshot{
		State:       fs.state,
		Suggestions: suggestions,
		Loading:     fs.loading,
		Notice:      fs.notice,
	}
}

// notifyLocked captures the field's listeners and snapshot; the returned
// function must be called after the lock is released.
func (fs *coordinatorField) notifyLocked() func() {
	snap := fs.snapshot()
	listeners := make([]func(SuggestionSnapshot), 0, len(fs.listeners))
	for _, fn := range fs.listeners {
		listeners = append(listeners, fn)
	}
	return func() {
		for _, fn := range listeners {
			fn(snap)
		}
	}
}

// Subscribe registers a listener for a field's snapshots and pushes the
// current snapshot immediately. The returned function unsubscribes.
func (c *SuggestionCoordinator) Subscribe(fieldName string, fn func(SuggestionSnapshot)) func() {
	c.mu.Lock()
	fs := c.field(fieldName)
	id := fs.nextListenerID
	fs.nextListenerID++
	fs.listeners[id] = fn
	snap := fs.snapshot()
	c.mu.Unlock()

	fn(snap)

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(fs.listeners, id)
	}
}

// Snapshot returns the current snapshot for a field.
func (c *SuggestionCoordinator) Snapshot(fieldName string) SuggestionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.field(fieldName).snapshot()
}

// Input feeds a keystroke's resulting text into the field's state machine.
// Input below the minimum length clears the field; anything else enters the
// debounce window.
func (c *SuggestionCoordinator) Input(ctx context.Context, fieldName, text string) {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < c.cfg.MinQueryLength {
		c.clearField(fieldName)
		return
	}

	c.mu.Lock()
	fs := c.field(fieldName)
	fs.state = FieldStateDebouncing
	notify := fs.notifyLocked()
	c.mu.Unlock()
	notify()

	c.debouncer.Call(fieldName, func() {
		c.fire(ctx, fieldName, trimmed)
	})
}

// Select reports that the user picked a suggestion. Visible suggestions are
// cleared and the pending debounce is cancelled; an in-flight remote call is
// left to finish and die on the sequence check.
func (c *SuggestionCoordinator) Select(fieldName string) {
	c.clearField(fieldName)
}

// Blur reports that the field lost focus. Same clearing semantics as Select.
func (c *SuggestionCoordinator) Blur(fieldName string) {
	c.clearField(fieldName)
}

func (c *SuggestionCoordinator) clearField(fieldName string) {
	c.debouncer.Cancel(fieldName)

	c.mu.Lock()
	fs := c.field(fieldName)
	// Bump the sequence so any in-flight response arrives stale.
	fs.seq++
	fs.state = FieldStateIdle
	fs.suggestions = nil
	fs.loading = false
	fs.notice = ""
	notify := fs.notifyLocked()
	c.mu.Unlock()
	notify()
}

// fire runs when the debounce window closes: local results apply
// synchronously, then the remote query is issued under the next sequence
// number.
func (c *SuggestionCoordinator) fire(ctx context.Context, fieldName, query string) {
	local := c.index.FilterConditions(query, c.cfg.Limit)

	c.mu.Lock()
	fs := c.field(fieldName)
	fs.seq++
	seq := fs.seq
	fs.suggestions = toSuggestions(local, entities.SuggestionSourceLocal)
	fs.notice = ""

	if c.remote == nil {
		fs.state = FieldStateResolved
		fs.loading = false
		notify := fs.notifyLocked()
		c.mu.Unlock()
		notify()
		return
	}

	fs.state = FieldStateQuerying
	fs.loading = true
	notify := fs.notifyLocked()
	c.mu.Unlock()
	notify()

	go func() {
		names, err := c.fetchRemoteCompletions(ctx, query)
		c.applyRemote(fieldName, seq, names, err)
	}()
}

// fetchRemoteCompletions is the cache-aside path around the provider.
func (c *SuggestionCoordinator) fetchRemoteCompletions(ctx context.Context, query string) ([]string, error) {
	key := "suggest:conditions:" + strings.ToLower(query)

	if c.cache != nil {
		if data, err := c.cache.Get(ctx, key); err == nil {
			var names []string
			if json.Unmarshal(data, &names) == nil {
				return names, nil
			}
		}
	}

	names, err := c.remote.CompleteConditionName(ctx, query)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if data, err := json.Marshal(names); err == nil {
			if err := c.cache.Set(ctx, key, data, c.cfg.CacheTTLSeconds); err != nil {
				log.Warn().Err(err).Msg("failed to cache remote suggestions")
			}
		}
	}
	return names, nil
}

// applyRemote merges a remote response into the field, unless a newer query
// superseded it.
func (c *SuggestionCoordinator) applyRemote(fieldName string, seq uint64, names []string, err error) {
	c.mu.Lock()
	fs := c.field(fieldName)
	if seq != fs.seq {
		c.mu.Unlock()
		log.Debug().Str("field", fieldName).Uint64("seq", seq).Msg("discarding stale remote response")
		return
	}

	fs.loading = false
	fs.state = FieldStateResolved
	if err != nil {
		// Degrade to local-only: the error becomes an inline notice, never a
		// failure surfaced to the caller.
		fs.notice = "remote suggestions unavailable"
		log.Warn().Str("field", fieldName).Err(err).Msg("remote suggestion query failed")
	} else {
		fs.suggestions = mergeSuggestions(fs.suggestions, names, c.cfg.Limit)
	}
	notify := fs.notifyLocked()
	c.mu.Unlock()
	notify()
}

// Query is the one-shot variant used by the HTTP surface: local results plus
// remote completions for a single request, sharing the coordinator's cache.
// A remote failure returns the local results along with the error so the
// caller can render an inline notice.
func (c *SuggestionCoordinator) Query(ctx context.Context, query string) ([]entities.Suggestion, error) {
	trimmed := strings.TrimSpace(query)
	if utf8.RuneCountInString(trimmed) < c.cfg.MinQueryLength {
		return []entities.Suggestion{}, nil
	}

	suggestions := toSuggestions(c.index.FilterConditions(trimmed, c.cfg.Limit), entities.SuggestionSourceLocal)
	if c.remote == nil {
		return suggestions, nil
	}

	names, err := c.fetchRemoteCompletions(ctx, trimmed)
	if err != nil {
		return suggestions, err
	}
	return mergeSuggestions(suggestions, names, c.cfg.Limit), nil
}

// AnalyzeMedication proxies the provider with cache-aside semantics.
func (c *SuggestionCoordinator) AnalyzeMedication(ctx context.Context, name string) (*entities.MedicationAnalysis, error) {
	key := "suggest:analysis:" + strings.ToLower(strings.TrimSpace(name))

	if c.cache != nil {
		if data, err := c.cache.Get(ctx, key); err == nil {
			var analysis entities.MedicationAnalysis
			if json.Unmarshal(data, &analysis) == nil {
				return &analysis, nil
			}
		}
	}

	if c.remote == nil {
		return nil, nil
	}
	analysis, err := c.remote.AnalyzeMedication(ctx, name)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if data, err := json.Marshal(analysis); err == nil {
			if err := c.cache.Set(ctx, key, data, c.cfg.CacheTTLSeconds); err != nil {
				log.Warn().Err(err).Msg("failed to cache medication analysis")
			}
		}
	}
	return analysis, nil
}

// SuggestTreatments proxies the provider with cache-aside semantics.
func (c *SuggestionCoordinator) SuggestTreatments(ctx context.Context, conditionName string) ([]string, error) {
	key := "suggest:treatments:" + strings.ToLower(strings.TrimSpace(conditionName))

	if c.cache != nil {
		if data, err := c.cache.Get(ctx, key); err == nil {
			var treatments []string
			if json.Unmarshal(data, &treatments) == nil {
				return treatments, nil
			}
		}
	}

	if c.remote == nil {
		return []string{}, nil
	}
	treatments, err := c.remote.SuggestTreatments(ctx, conditionName)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if data, err := json.Marshal(treatments); err == nil {
			if err := c.cache.Set(ctx, key, data, c.cfg.CacheTTLSeconds); err != nil {
				log.Warn().Err(err).Msg("failed to cache treatment suggestions")
			}
		}
	}
	return treatments, nil
}

// Close cancels every pending debounce. In-flight remote calls finish on
// their own and are discarded by the sequence check.
func (c *SuggestionCoordinator) Close() {
	c.debouncer.Close()
}

func toSuggestions(names []string, source entities.SuggestionSource) []entities.Suggestion {
	suggestions := make([]entities.Suggestion, 0, len(names))
	for _, name := range names {
		suggestions = append(suggestions, entities.Suggestion{Text: name, Source: source})
	}
	return suggestions
}

// mergeSuggestions fills the slots remaining under limit with remote names
// not already present case-insensitively. Local results stay first: they
// were on screen before the remote reply and must not jump around. The
// merged list never exceeds limit.
func mergeSuggestions(existing []entities.Suggestion, remoteNames []string, limit int) []entities.Suggestion {
	seen := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		seen[strings.ToLower(s.Text)] = struct{}{}
	}

	merged := existing
	for _, name := range remoteNames {
		if len(merged) >= limit {
			break
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, entities.Suggestion{Text: name, Source: entities.SuggestionSourceRemote})
	}
	return merged
}

// Package memory is a native.Runtime that keeps every span in process memory.
//
// It is the runtime used by tests and by tools that want to inspect a call tree
// after the fact. Spans are recorded as SpanRecord values; handlers registered
// with OnSpanClosed or OnSpanClosedAsync receive a snapshot of each span as it
// closes.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"facette.io/natsort"
	"github.com/amp-labs/llmtrace/bgworker"
	"github.com/amp-labs/llmtrace/logger"
	"github.com/amp-labs/llmtrace/native"
	"github.com/google/uuid"
	"github.com/zoobzio/clockz"
	"go.uber.org/atomic"
)

// ErrorRecord is what RecordError stored on a span.
type ErrorRecord struct {
	Code    int
	Message string
	Trace   string
}

// SpanRecord is a snapshot of one span.
type SpanRecord struct {
	ID       string
	ParentID string
	Name     string

	Inputs     native.Inputs
	Output     any
	ReturnType string
	Error      *ErrorRecord

	Tags   map[string]string
	Events []native.Event
	State  native.SpanState

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// SortedTagKeys returns the tag keys in natural order ("attempt2" before "attempt10").
func (r SpanRecord) SortedTagKeys() []string {
	keys := make([]string, 0, len(r.Tags))
	for k := range r.Tags {
		keys = append(keys, k)
	}

	natsort.Sort(keys)

	return keys
}

// SpanHandler is called with a snapshot of a span once it has closed.
type SpanHandler func(SpanRecord)

type handlerEntry struct {
	handler SpanHandler
	ctx     context.Context //nolint:containedctx
	async   bool
}

// span is the handle given out by CreateChildSpan.
type span struct {
	mu     sync.Mutex
	rec    SpanRecord
	closed *atomic.Bool
}

func (s *span) ID() string       { return s.rec.ID }
func (s *span) ParentID() string { return s.rec.ParentID }
func (s *span) Name() string     { return s.rec.Name }

func (s *span) snapshot() SpanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.rec
	out.Tags = maps.Clone(s.rec.Tags)
	out.Events = append([]native.Event(nil), s.rec.Events...)

	if s.rec.Error != nil {
		errCopy := *s.rec.Error
		out.Error = &errCopy
	}

	return out
}

// Runtime records spans in memory. Safe for concurrent use.
type Runtime struct {
	clock clockz.Clock

	mu          sync.RWMutex
	spans       map[string]*span
	order       []string
	processTags map[string]string

	handlersLock sync.RWMutex
	handlers     []handlerEntry
	pending      sync.WaitGroup

	closedCount *atomic.Int64
}

var _ native.Runtime = (*Runtime)(nil)

// Option configures a Runtime.
type Option func(*Runtime)

// WithClock sets the clock used for span timestamps.
// Inject a fake clock for deterministic durations in tests.
func WithClock(clock clockz.Clock) Option {
	return func(r *Runtime) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// New creates an empty in-memory runtime.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		clock:       clockz.RealClock,
		spans:       make(map[string]*span),
		processTags: make(map[string]string),
		closedCount: atomic.NewInt64(0),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// OnSpanClosed registers a handler called synchronously by CloseSpan.
func (r *Runtime) OnSpanClosed(handler SpanHandler) {
	r.addHandler(handlerEntry{handler: handler})
}

// OnSpanClosedAsync registers a handler run on the background worker pool.
// Use Wait to block until every dispatched handler has finished.
func (r *Runtime) OnSpanClosedAsync(ctx context.Context, handler SpanHandler) {
	r.addHandler(handlerEntry{handler: handler, ctx: ctx, async: true})
}

func (r *Runtime) addHandler(entry handlerEntry) {
	if entry.handler == nil {
		return
	}

	r.handlersLock.Lock()
	defer r.handlersLock.Unlock()

	r.handlers = append(r.handlers, entry)
}

// Wait blocks until all asynchronous span-closed handlers dispatched so far have run.
func (r *Runtime) Wait() {
	r.pending.Wait()
}

func (r *Runtime) CreateChildSpan(ctx context.Context, name string, parent native.Span) native.Span {
	s := &span{
		rec: SpanRecord{
			ID:        uuid.NewString(),
			Name:      name,
			State:     native.SpanOpen,
			StartTime: r.clock.Now(),
		},
		closed: atomic.NewBool(false),
	}

	if parent != nil {
		s.rec.ParentID = parent.ID()
	}

	r.mu.Lock()
	r.spans[s.rec.ID] = s
	r.order = append(r.order, s.rec.ID)
	r.mu.Unlock()

	logger.Get(ctx).Debug("span opened", "span_id", s.rec.ID, "parent_id", s.rec.ParentID, "name", name)

	return s
}

// acquire maps a handle back to our span and locks it. Spans created by
// another runtime, and spans that already closed, are rejected. On success the
// caller owns s.mu and must unlock it.
func (r *Runtime) acquire(handle native.Span, op string) (*span, bool) {
	s, ok := handle.(*span)
	if !ok || s == nil {
		logger.Get().Warn("memory runtime: span not created by this runtime", "op", op)

		return nil, false
	}

	s.mu.Lock()

	// closed only flips under s.mu, so this check holds until we unlock.
	if s.closed.Load() {
		s.mu.Unlock()

		logger.Get().Debug("memory runtime: span already closed", "op", op, "span_id", s.rec.ID)

		return nil, false
	}

	return s, true
}

func (r *Runtime) RecordInputs(handle native.Span, inputs native.Inputs) {
	s, ok := r.acquire(handle, "RecordInputs")
	if !ok {
		return
	}
	defer s.mu.Unlock()

	s.rec.Inputs = native.Inputs{
		Args:     append([]native.ArgMetadata(nil), inputs.Args...),
		Values:   inputs.Positional(),
		AsKwargs: inputs.AsKwargs,
	}
}

func (r *Runtime) RecordOutput(handle native.Span, value any, returnType string) {
	s, ok := r.acquire(handle, "RecordOutput")
	if !ok {
		return
	}
	defer s.mu.Unlock()

	s.rec.Output = value
	s.rec.ReturnType = returnType
}

func (r *Runtime) RecordError(handle native.Span, code int, message, trace string) {
	s, ok := r.acquire(handle, "RecordError")
	if !ok {
		return
	}
	defer s.mu.Unlock()

	s.rec.Error = &ErrorRecord{Code: code, Message: message, Trace: trace}
}

func (r *Runtime) CloseSpan(handle native.Span) {
	s, ok := handle.(*span)
	if !ok || s == nil {
		logger.Get().Warn("memory runtime: span not created by this runtime", "op", "CloseSpan")

		return
	}

	s.mu.Lock()

	if !s.closed.CompareAndSwap(false, true) {
		s.mu.Unlock()

		return
	}

	s.rec.EndTime = r.clock.Now()
	s.rec.Duration = s.rec.EndTime.Sub(s.rec.StartTime)

	if s.rec.Error != nil {
		s.rec.State = native.SpanClosedError
	} else {
		s.rec.State = native.SpanClosedOK
	}
	s.mu.Unlock()

	r.closedCount.Inc()
	r.dispatch(s.snapshot())
}

func (r *Runtime) dispatch(rec SpanRecord) {
	r.handlersLock.RLock()
	handlers := append([]handlerEntry(nil), r.handlers...)
	r.handlersLock.RUnlock()

	for _, h := range handlers {
		if !h.async {
			h.handler(rec)

			continue
		}

		entry := h

		r.pending.Add(1)

		bgworker.Submit(entry.ctx, func() {
			defer r.pending.Done()

			entry.handler(rec)
		})
	}
}

func (r *Runtime) SetTags(handle native.Span, tags native.Tags) {
	if handle == nil {
		r.mu.Lock()
		defer r.mu.Unlock()

		mergeTags(r.processTags, tags)

		return
	}

	s, ok := r.acquire(handle, "SetTags")
	if !ok {
		return
	}
	defer s.mu.Unlock()

	if s.rec.Tags == nil {
		s.rec.Tags = make(map[string]string, len(tags))
	}

	mergeTags(s.rec.Tags, tags)
}

func mergeTags(dst map[string]string, tags native.Tags) {
	for key, value := range tags {
		if v, ok := value.Get(); ok {
			dst[key] = v
		} else {
			delete(dst, key)
		}
	}
}

func (r *Runtime) LogEvent(handle native.Span, event native.Event) {
	s, ok := r.acquire(handle, "LogEvent")
	if !ok {
		return
	}
	defer s.mu.Unlock()

	s.rec.Events = append(s.rec.Events, native.Event{
		Name:    event.Name,
		Payload: append([]byte(nil), event.Payload...),
	})
}

// Spans returns snapshots of every span in the order they were opened.
func (r *Runtime) Spans() []SpanRecord {
	r.mu.RLock()
	handles := make([]*span, 0, len(r.order))

	for _, id := range r.order {
		handles = append(handles, r.spans[id])
	}
	r.mu.RUnlock()

	out := make([]SpanRecord, 0, len(handles))
	for _, s := range handles {
		out = append(out, s.snapshot())
	}

	return out
}

// Get returns the span with the given id.
func (r *Runtime) Get(id string) (SpanRecord, bool) {
	r.mu.RLock()
	s, ok := r.spans[id]
	r.mu.RUnlock()

	if !ok {
		return SpanRecord{}, false
	}

	return s.snapshot(), true
}

// Find returns every span with the given name, in open order.
func (r *Runtime) Find(name string) []SpanRecord {
	var out []SpanRecord

	for _, rec := range r.Spans() {
		if rec.Name == name {
			out = append(out, rec)
		}
	}

	return out
}

// Children returns the direct children of the span with the given id.
func (r *Runtime) Children(id string) []SpanRecord {
	var out []SpanRecord

	for _, rec := range r.Spans() {
		if rec.ParentID == id {
			out = append(out, rec)
		}
	}

	return out
}

// ProcessTags returns a copy of the tags set while no span was current.
func (r *Runtime) ProcessTags() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return maps.Clone(r.processTags)
}

// ClosedCount is the number of spans closed so far.
func (r *Runtime) ClosedCount() int64 {
	return r.closedCount.Load()
}

// Reset forgets all recorded spans and process tags. Handlers stay registered.
func (r *Runtime) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.spans = make(map[string]*span)
	r.order = nil
	r.processTags = make(map[string]string)
}

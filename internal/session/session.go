// Package session implements the client-side conversation state machine:
// submit gating, streamed exchange tracking, stale-result discarding and
// conversation loading.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/zygotrix/zigi-go/internal/cache"
	"github.com/zygotrix/zigi-go/internal/metrics"
	"github.com/zygotrix/zigi-go/internal/models"
	"github.com/zygotrix/zigi-go/internal/render"
	"github.com/zygotrix/zigi-go/internal/stream"
	"github.com/zygotrix/zigi-go/internal/transport"
)

// NewConversationTitle is the display title before the server assigns one.
const NewConversationTitle = "New Conversation"

// cacheTimeout bounds advisory snapshot reads and writes.
const cacheTimeout = 3 * time.Second

// defaultFlushInterval paces placeholder updates when the host provides no
// scheduler.
const defaultFlushInterval = 50 * time.Millisecond

// Transport is the server surface the session needs. *transport.Client
// satisfies it; tests substitute fakes serving canned streams.
type Transport interface {
	Send(ctx context.Context, req transport.ChatRequest) (*stream.Decoder, error)
	Regenerate(ctx context.Context, conversationID, messageID string) (*transport.ChatResponse, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	GetMessages(ctx context.Context, conversationID string) ([]models.Message, error)
}

// Options configures a Session. Transport is required; everything else has
// a working default.
type Options struct {
	Transport Transport
	// Cache is the optional advisory snapshot store.
	Cache cache.Store
	// Gate windows; the zero value selects DefaultGateConfig.
	Gate GateConfig
	// Scheduler paces placeholder content updates.
	Scheduler render.Scheduler
	Logger    *slog.Logger
	Metrics   *metrics.Collector

	// Stream requests server-side streaming. Non-streaming responses are
	// normalized by the decoder either way.
	Stream       bool
	Model        string
	EnabledTools []string

	// OnChange is invoked after every observable state change, outside any
	// session lock.
	OnChange func()
	// OnConversationCreated fires when the server assigns an id to a
	// conversation started by this session, before OnChange for the same
	// exchange.
	OnConversationCreated func(id, title string)
}

// Session owns the state of the currently displayed conversation. All
// exported methods are safe for concurrent use.
type Session struct {
	transport Transport
	cache     cache.Store
	gate      *Gate
	guard     *Guard
	scheduler render.Scheduler
	logger    *slog.Logger
	metrics   *metrics.Collector

	stream       bool
	model        string
	enabledTools []string

	onChange              func()
	onConversationCreated func(id, title string)

	mu             sync.Mutex
	conversationID string
	title          string
	messages       []*models.Message
	loading        bool
	err            error
	exchanges      map[string]*exchange
}

// exchange tracks one in-flight message round trip.
type exchange struct {
	transientID string
	userText    string
	buffer      *render.Buffer
	placeholder *models.Message
	meta        models.Metadata
	start       time.Time
	abandoned   bool
}

// New creates a session. Options.Transport must be non-nil.
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	scheduler := opts.Scheduler
	if scheduler == nil {
		scheduler = render.NewTickScheduler(defaultFlushInterval)
	}
	gateCfg := opts.Gate
	if gateCfg == (GateConfig{}) {
		gateCfg = DefaultGateConfig()
	}

	return &Session{
		transport:             opts.Transport,
		cache:                 opts.Cache,
		gate:                  NewGate(gateCfg),
		guard:                 NewGuard(),
		scheduler:             scheduler,
		logger:                logger,
		metrics:               opts.Metrics,
		stream:                opts.Stream,
		model:                 opts.Model,
		enabledTools:          opts.EnabledTools,
		onChange:              opts.OnChange,
		onConversationCreated: opts.OnConversationCreated,
		title:                 NewConversationTitle,
		exchanges:             make(map[string]*exchange),
	}
}

// ConversationID returns the active conversation id, empty before the
// server has assigned one.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Title returns the active conversation title.
func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// Messages returns a copy of the displayed transcript.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = *m
	}
	return out
}

// IsLoading reports whether a conversation load is in progress.
func (s *Session) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// IsStreaming reports whether any exchange is still producing content for
// the active view.
func (s *Session) IsStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ex := range s.exchanges {
		if !ex.abandoned {
			return true
		}
	}
	return false
}

// Err returns the last surfaced error. Cleared by the next successful
// submission, navigation or ClearMessages.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stats returns the session metrics snapshot, or a zero snapshot when no
// collector is attached.
func (s *Session) Stats() metrics.Snapshot {
	if s.metrics == nil {
		return metrics.Snapshot{}
	}
	return s.metrics.Snapshot()
}

// SendMessage submits user content on the active conversation. The
// exchange runs asynchronously; progress arrives through OnChange.
// Suppressed submissions (duplicate, too fast, already in flight) return
// nil without side effects. Empty content with no attachments returns
// ErrEmptyMessage.
func (s *Session) SendMessage(ctx context.Context, content string, attachments []models.Attachment) error {
	conversationID := s.ConversationID()

	release, err := s.gate.Begin(content, len(attachments) > 0, conversationID)
	switch {
	case errors.Is(err, ErrEmptyMessage):
		return err
	case errors.Is(err, ErrDuplicateSubmission), errors.Is(err, ErrExchangeInFlight):
		s.logger.Debug("suppressed submission", "reason", err, "conversation_id", conversationID)
		return nil
	case err != nil:
		return err
	}

	trimmed := strings.TrimSpace(content)
	tag := s.guard.Capture()
	transientID := s.beginExchange(trimmed, attachments)

	req := transport.ChatRequest{
		ConversationID: conversationID,
		Message:        trimmed,
		Attachments:    attachments,
		Model:          s.model,
		Stream:         s.stream,
		EnabledTools:   s.enabledTools,
	}

	go s.runExchange(ctx, tag, transientID, req, release)
	return nil
}

// beginExchange appends the user message and a streaming placeholder, and
// registers the exchange. Returns the placeholder's transient id.
func (s *Session) beginExchange(content string, attachments []models.Attachment) string {
	user := models.NewUserMessage(content, attachments)
	placeholder := models.NewPlaceholder()

	ex := &exchange{
		transientID: placeholder.ID,
		userText:    content,
		placeholder: placeholder,
		start:       time.Now(),
	}
	ex.buffer = render.NewBuffer(s.scheduler, func(text string) {
		s.appendContent(ex, text)
	})

	s.mu.Lock()
	user.ConversationID = s.conversationID
	placeholder.ConversationID = s.conversationID
	s.messages = append(s.messages, user, placeholder)
	s.err = nil
	s.exchanges[ex.transientID] = ex
	s.mu.Unlock()

	s.notify()
	return ex.transientID
}

// appendContent is the render buffer consumer: one coalesced delta batch
// lands on the placeholder.
func (s *Session) appendContent(ex *exchange, text string) {
	s.mu.Lock()
	if ex.abandoned {
		s.mu.Unlock()
		return
	}
	ex.placeholder.Content += text
	s.mu.Unlock()

	s.notify()
}

// runExchange drives one exchange to completion on its own goroutine.
func (s *Session) runExchange(ctx context.Context, tag Tag, transientID string, req transport.ChatRequest, release func()) {
	defer release()

	dec, err := s.transport.Send(ctx, req)
	if err != nil {
		if !tag.Live() {
			s.logger.Debug("discarding stale exchange error", "error", err)
			s.Abandon(transientID)
			return
		}
		s.failExchange(transientID, err)
		return
	}
	defer dec.Close()

	for {
		ev, err := dec.Next()
		if err == io.EOF {
			return
		}
		if err != nil {
			if !tag.Live() {
				s.logger.Debug("discarding stale stream error", "error", err)
				s.Abandon(transientID)
				return
			}
			s.failExchange(transientID, err)
			return
		}
		if !tag.Live() {
			s.logger.Debug("discarding stale stream events", "transient_id", transientID)
			s.Abandon(transientID)
			return
		}
		s.ApplyEvent(transientID, ev)
	}
}

// ApplyEvent feeds one decoded event into the exchange. Events for unknown
// or abandoned exchanges are dropped silently.
func (s *Session) ApplyEvent(transientID string, ev stream.Event) {
	s.mu.Lock()
	ex, ok := s.exchanges[transientID]
	if !ok || ex.abandoned {
		s.mu.Unlock()
		return
	}

	switch ev.Type {
	case stream.EventContent:
		s.mu.Unlock()
		ex.buffer.Append(ev.Content)

	case stream.EventMetadata:
		ex.meta.MergeMap(ev.Metadata)
		meta := ex.meta
		ex.placeholder.Metadata = &meta
		s.mu.Unlock()
		s.notify()

	case stream.EventError:
		s.mu.Unlock()
		ex.buffer.Close()
		s.failExchange(transientID, errors.New(ev.Error))

	case stream.EventDone:
		s.mu.Unlock()
		// Close flushes any residual content into the placeholder before
		// the message is finalized.
		ex.buffer.Close()
		s.finishExchange(ex, ev)

	default:
		s.mu.Unlock()
	}
}

// finishExchange finalizes the placeholder from the terminal event.
func (s *Session) finishExchange(ex *exchange, ev stream.Event) {
	s.mu.Lock()

	// The lock was dropped for the residue flush; a navigation may have
	// abandoned the exchange in that window. Its done event must then
	// leave the new view untouched.
	if ex.abandoned || s.exchanges[ex.transientID] != ex {
		s.mu.Unlock()
		return
	}

	if ev.Content != "" {
		ex.placeholder.Content = ev.Content
	}
	if ev.MessageID != "" {
		ex.placeholder.ID = ev.MessageID
	}
	ex.meta.MergeMap(ev.Metadata)
	ex.meta.LatencyMs = time.Since(ex.start).Milliseconds()
	meta := ex.meta
	ex.placeholder.Metadata = &meta
	ex.placeholder.Streaming = false

	var createdID, createdTitle string
	if ev.ConversationID != "" {
		if s.conversationID == "" {
			createdID = ev.ConversationID
			createdTitle = models.ProvisionalTitle(ex.userText)
			s.title = createdTitle
		}
		s.conversationID = ev.ConversationID
		for _, m := range s.messages {
			if m.ConversationID == "" {
				m.ConversationID = ev.ConversationID
			}
		}
	}

	delete(s.exchanges, ex.transientID)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordExchange(time.Since(ex.start), int64(meta.InputTokens), int64(meta.OutputTokens))
	}
	if createdID != "" && s.onConversationCreated != nil {
		s.onConversationCreated(createdID, createdTitle)
	}
	s.notify()
	s.persistSnapshot()
}

// failExchange removes the placeholder, keeps the user message for retry
// and surfaces the error.
func (s *Session) failExchange(transientID string, cause error) {
	s.mu.Lock()
	ex, ok := s.exchanges[transientID]
	if !ok || ex.abandoned {
		s.mu.Unlock()
		return
	}
	ex.abandoned = true
	delete(s.exchanges, transientID)

	for i, m := range s.messages {
		if m == ex.placeholder {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			break
		}
	}
	s.err = cause
	s.mu.Unlock()

	s.logger.Error("exchange failed", "error", cause)
	s.notify()
}

// Abandon detaches an exchange from the view. Its placeholder stops
// updating but is not removed; buffered deltas are dropped.
func (s *Session) Abandon(transientID string) {
	s.mu.Lock()
	ex, ok := s.exchanges[transientID]
	if !ok || ex.abandoned {
		s.mu.Unlock()
		return
	}
	ex.abandoned = true
	delete(s.exchanges, transientID)
	s.mu.Unlock()

	ex.buffer.Close()
}

// LoadConversation switches the view to a conversation. A cached snapshot
// is shown immediately when available; the fresh server copy supersedes it.
func (s *Session) LoadConversation(ctx context.Context, id string) {
	tag := s.activate(id)
	go s.runLoad(ctx, tag, id)
}

// activate resets view state for a navigation and returns the new tag.
func (s *Session) activate(id string) Tag {
	s.guard.Bump()
	tag := s.guard.Capture()

	s.mu.Lock()
	s.abandonAllLocked()
	s.conversationID = id
	s.title = ""
	s.messages = nil
	s.err = nil
	s.loading = true
	s.mu.Unlock()

	s.notify()
	return tag
}

func (s *Session) runLoad(ctx context.Context, tag Tag, id string) {
	start := time.Now()

	if snap := s.loadSnapshot(id); snap != nil {
		s.mu.Lock()
		if tag.Live() {
			s.title = snap.Conversation.Title
			s.messages = toPointers(snap.Messages)
			s.mu.Unlock()
			s.notify()
		} else {
			s.mu.Unlock()
		}
	}

	conv, err := s.transport.GetConversation(ctx, id)
	var msgs []models.Message
	if err == nil {
		msgs, err = s.transport.GetMessages(ctx, id)
	}

	s.mu.Lock()
	if !tag.Live() {
		s.mu.Unlock()
		s.logger.Debug("discarding stale conversation load", "conversation_id", id)
		return
	}
	if err != nil {
		s.err = err
		s.loading = false
		s.mu.Unlock()
		s.logger.Error("conversation load failed", "conversation_id", id, "error", err)
		s.notify()
		return
	}

	s.title = conv.Title
	s.messages = toPointers(msgs)
	s.loading = false
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordTiming(metrics.OpLoad, time.Since(start))
	}
	s.notify()
	s.persistSnapshot()
}

// StartNewConversation resets the view to an empty, unsaved conversation.
func (s *Session) StartNewConversation() {
	s.guard.Bump()

	s.mu.Lock()
	s.abandonAllLocked()
	s.conversationID = ""
	s.title = NewConversationTitle
	s.messages = nil
	s.err = nil
	s.loading = false
	s.mu.Unlock()

	s.notify()
}

// ClearMessages empties the displayed transcript without navigating away.
func (s *Session) ClearMessages() {
	s.guard.Bump()

	s.mu.Lock()
	s.abandonAllLocked()
	s.messages = nil
	s.err = nil
	s.mu.Unlock()

	s.notify()
}

// RegenerateMessage asks the server to redo an assistant message and
// replaces it in the transcript.
func (s *Session) RegenerateMessage(ctx context.Context, messageID string) error {
	conversationID := s.ConversationID()
	if conversationID == "" {
		return errors.New("no active conversation")
	}
	tag := s.guard.Capture()

	resp, err := s.transport.Regenerate(ctx, conversationID, messageID)
	if err != nil {
		if tag.Live() {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			s.notify()
		}
		return err
	}
	if !tag.Live() {
		s.logger.Debug("discarding stale regeneration", "message_id", messageID)
		return nil
	}

	s.mu.Lock()
	for i, m := range s.messages {
		if m.ID == messageID {
			replacement := resp.Message
			if replacement.ConversationID == "" {
				replacement.ConversationID = conversationID
			}
			s.messages[i] = &replacement
			break
		}
	}
	s.mu.Unlock()

	s.notify()
	s.persistSnapshot()
	return nil
}

// abandonAllLocked detaches every in-flight exchange. Caller holds s.mu.
func (s *Session) abandonAllLocked() {
	for id, ex := range s.exchanges {
		ex.abandoned = true
		delete(s.exchanges, id)
	}
}

// persistSnapshot writes the current transcript to the advisory cache.
func (s *Session) persistSnapshot() {
	if s.cache == nil {
		return
	}

	s.mu.Lock()
	id := s.conversationID
	if id == "" {
		s.mu.Unlock()
		return
	}
	snap := cache.ConversationSnapshot{
		Conversation: models.Conversation{
			ID:           id,
			Title:        s.title,
			MessageCount: len(s.messages),
			UpdatedAt:    time.Now(),
		},
		Messages: make([]models.Message, len(s.messages)),
		CachedAt: time.Now(),
	}
	for i, m := range s.messages {
		snap.Messages[i] = *m
	}
	s.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		s.logger.Warn("marshal snapshot", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()

	start := time.Now()
	if err := s.cache.Set(ctx, cache.ConversationKey(id), data, cache.DefaultTTL); err != nil {
		s.logger.Warn("snapshot write failed", "conversation_id", id, "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordTiming(metrics.OpCacheWrite, time.Since(start))
	}
}

// loadSnapshot reads the advisory cache; any failure degrades to nil.
func (s *Session) loadSnapshot(id string) *cache.ConversationSnapshot {
	if s.cache == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()

	start := time.Now()
	data, err := s.cache.Get(ctx, cache.ConversationKey(id))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	if err != nil {
		s.logger.Warn("snapshot read failed", "conversation_id", id, "error", err)
		return nil
	}
	if s.metrics != nil {
		s.metrics.RecordTiming(metrics.OpCacheRead, time.Since(start))
	}

	var snap cache.ConversationSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("corrupt snapshot", "conversation_id", id, "error", err)
		return nil
	}
	return &snap
}

func (s *Session) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

func toPointers(msgs []models.Message) []*models.Message {
	out := make([]*models.Message, len(msgs))
	for i := range msgs {
		out[i] = &msgs[i]
	}
	return out
}

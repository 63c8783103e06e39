package assistant

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyMessage indicates SendMessage was called with blank input.
var ErrEmptyMessage = errors.New("empty message")

// TenantResolver reports the currently selected tenant, if any. It is
// consulted at the start of every turn; every tool call is scoped to the
// returned ID.
type TenantResolver func() (uuid.UUID, bool)

// SessionConfig contains all required parameters for a Session.
type SessionConfig struct {
	Orchestrator  *Orchestrator
	Snapshots     *SnapshotStore
	ResolveTenant TenantResolver
	Logger        *slog.Logger
}

func (cfg SessionConfig) validate() error {
	if cfg.Orchestrator == nil {
		return errors.New("orchestrator is required")
	}
	if cfg.Snapshots == nil {
		return errors.New("snapshot store is required")
	}
	if cfg.ResolveTenant == nil {
		return errors.New("tenant resolver is required")
	}
	return nil
}

// Session is the externally observable surface of the assistant: the message
// log, a loading flag and the SendMessage entry point. The UI renders
// Messages and drives SendMessage; everything else is internal.
//
// Session owns the conversation log exclusively. Overlapping SendMessage
// calls are serialized (not rejected) so appends keep strict turn order;
// Messages and IsLoading remain observable while a turn is in flight.
type Session struct {
	orch      *Orchestrator
	snapshots *SnapshotStore
	resolve   TenantResolver
	logger    *slog.Logger

	turnMu sync.Mutex // serializes SendMessage turns

	stateMu  sync.RWMutex // guards messages and loading
	messages []Message
	loading  bool

	now func() time.Time
}

// NewSession creates a Session seeded from the persisted snapshot.
func NewSession(cfg SessionConfig) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		orch:      cfg.Orchestrator,
		snapshots: cfg.Snapshots,
		resolve:   cfg.ResolveTenant,
		logger:    logger,
		now:       time.Now,
	}
	s.messages = cfg.Snapshots.Load()
	return s, nil
}

// Messages returns a copy of the conversation log.
func (s *Session) Messages() []Message {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// IsLoading reports whether a turn is currently in flight.
func (s *Session) IsLoading() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.loading
}

// SendMessage runs one full turn: append the user message, drive the model
// (dispatching any tool calls it requests) and append exactly one new model
// message. The loading flag is always cleared before returning.
//
// Only two failures propagate: ErrNoTenant when no tenant is resolvable
// (checked before any network call) and ErrEmptyMessage. Model and network
// failures are absorbed into the apology reply.
func (s *Session) SendMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	tenantID, ok := s.resolve()
	if !ok || tenantID == uuid.Nil {
		return ErrNoTenant
	}

	s.append(Message{Role: RoleUser, Content: text, Timestamp: s.now()})
	s.setLoading(true)
	defer s.setLoading(false)

	reply, err := s.orch.Run(ctx, tenantID, s.Messages())
	if err != nil {
		if errors.Is(err, ErrNoTenant) {
			// Tenant vanished between the precondition check and the turn.
			return err
		}
		s.logger.Error("assistant turn failed", "tenant_id", tenantID, "error", err)
		reply = ApologyText
	}

	s.append(Message{Role: RoleModel, Content: reply, Timestamp: s.now()})
	return nil
}

// Clear resets the conversation to a fresh welcome log and drops the
// persisted snapshot.
func (s *Session) Clear() {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	s.stateMu.Lock()
	s.messages = []Message{WelcomeMessage(s.now())}
	s.stateMu.Unlock()

	s.snapshots.Clear()
}

// append adds a message to the log and synchronously persists the snapshot,
// so a crash mid-turn loses at most the in-flight turn.
func (s *Session) append(msg Message) {
	s.stateMu.Lock()
	s.messages = append(s.messages, msg)
	snapshotCopy := make([]Message, len(s.messages))
	copy(snapshotCopy, s.messages)
	s.stateMu.Unlock()

	s.snapshots.Save(snapshotCopy)
}

func (s *Session) setLoading(v bool) {
	s.stateMu.Lock()
	s.loading = v
	s.stateMu.Unlock()
}

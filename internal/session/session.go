// Package session owns one conversation: the ordered message history, the
// selected model, and the send flow that delegates billing to settlement.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zerochat/zerochat/internal/ledger"
	"github.com/zerochat/zerochat/internal/network"
	"github.com/zerochat/zerochat/internal/pricing"
	"github.com/zerochat/zerochat/internal/registry"
	"github.com/zerochat/zerochat/internal/settlement"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the conversation. Messages are append-only and
// never mutated after creation.
type Message struct {
	ID        int64 // monotonic within the session
	Role      Role
	Content   string
	Timestamp time.Time
	ModelID   string // set on assistant messages
	Verified  bool   // set on assistant messages per provider attestation
}

// Session is a conversation bound to a ledger and a backend. All methods are
// safe for concurrent use; the intended discipline is still one send in
// flight at a time.
type Session struct {
	registry  *registry.Registry
	ledger    *ledger.Ledger
	estimator *pricing.Estimator
	backend   network.Backend
	account   string

	mu       sync.Mutex
	model    registry.Model
	messages []Message
	nextID   int64
	inFlight bool
}

// NewSession creates a session with the given active model. account is the
// wallet address included in exports; it may be empty.
func NewSession(reg *registry.Registry, led *ledger.Ledger, est *pricing.Estimator, backend network.Backend, model registry.Model, account string) *Session {
	return &Session{
		registry:  reg,
		ledger:    led,
		estimator: est,
		backend:   backend,
		account:   account,
		model:     model,
		nextID:    1,
	}
}

// Exchange is the outcome of one successful send: the assistant reply plus
// the billing details of its settlement.
type Exchange struct {
	Reply     Message
	TokensIn  int
	TokensOut int
	Cost      decimal.Decimal
	Estimate  decimal.Decimal
}

// Send appends text as a user message and drives one settlement. The user
// message is appended optimistically and survives any failure; on success
// the assistant reply is appended and returned with its billing details.
func (s *Session) Send(ctx context.Context, text string) (Exchange, error) {
	s.mu.Lock()
	model := s.model
	s.inFlight = true
	s.append(Message{Role: RoleUser, Content: text})
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	res, err := settlement.New(s.ledger, s.estimator, s.backend).Run(ctx, model, text)
	if err != nil {
		return Exchange{}, fmt.Errorf("send message: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	reply := s.append(Message{
		Role:     RoleAssistant,
		Content:  res.Content,
		ModelID:  model.ID,
		Verified: res.Verified,
	})
	return Exchange{
		Reply:     reply,
		TokensIn:  res.TokensIn,
		TokensOut: res.TokensOut,
		Cost:      res.Cost,
		Estimate:  res.Estimate,
	}, nil
}

// SelectModel changes the active model for subsequent sends. In-flight
// settlements keep the model they started with.
func (s *Session) SelectModel(id string) error {
	m, err := s.registry.Get(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = m
	return nil
}

// Model returns the active model.
func (s *Session) Model() registry.Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// EstimateCost returns the pre-send estimate for a draft against the active
// model, for display next to the input box.
func (s *Session) EstimateCost(draft string) string {
	return s.estimator.Estimate(s.Model(), draft).String()
}

// Messages returns a copy of the conversation in creation order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Clear empties the message history. Balance and transaction history are
// untouched; message IDs keep counting up.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}

// Busy reports whether a send is in flight. Front ends use this to disable
// the send control; it is advisory, not a lock.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Seed appends pre-existing messages, for restoring a conversation. IDs and
// timestamps are assigned as for regular appends.
func (s *Session) Seed(msgs []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		s.append(m)
	}
}

// append assigns an ID and timestamp and adds m to the history.
// Caller must hold mu.
func (s *Session) append(m Message) Message {
	m.ID = s.nextID
	s.nextID++
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	s.messages = append(s.messages, m)
	return m
}

package transcript

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"finquery-client/internal/constant"
	"finquery-client/internal/model"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// ErrNotActive is returned when a mutation targets an entry that is not
// the open assistant entry.
var ErrNotActive = errors.New("message is not the active assistant entry")

// Change kinds published on the transcript events topic.
const (
	KindAppended = "appended"
	KindContent  = "content"
	KindSources  = "sources"
	KindClosed   = "closed"
)

// ChangeEvent is the payload of one transcript notification. Content
// changes carry the appended delta so the display layer can stream
// without re-reading the log.
type ChangeEvent struct {
	MessageId uuid.UUID `json:"message_id"`
	Role      string    `json:"role"`
	Kind      string    `json:"kind"`
	Delta     string    `json:"delta,omitempty"`
}

// Store is the append-only conversation log. Entries are never removed
// or reordered; the single permitted in-place mutation is content and
// source accumulation on the one active assistant entry, addressed by
// its id rather than by position.
//
// The controller goroutine is the only writer. The lock exists for the
// display layer, which reads from its own goroutine.
type Store struct {
	mu        sync.RWMutex
	messages  []model.Message
	active    uuid.UUID
	hasActive bool
	publisher message.Publisher
}

func NewStore(publisher message.Publisher) *Store {
	return &Store{publisher: publisher}
}

// AppendUser appends an immutable user entry.
func (s *Store) AppendUser(content string) uuid.UUID {
	s.mu.Lock()
	id := uuid.New()
	s.messages = append(s.messages, model.Message{
		Id:        id,
		Role:      constant.ChatMessageRoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	})
	s.mu.Unlock()

	s.publish(ChangeEvent{MessageId: id, Role: constant.ChatMessageRoleUser, Kind: KindAppended})
	return id
}

// AppendAssistant appends an empty assistant entry and marks it as the
// active streaming target. Only one entry is active at a time.
func (s *Store) AppendAssistant() uuid.UUID {
	s.mu.Lock()
	id := uuid.New()
	s.messages = append(s.messages, model.Message{
		Id:        id,
		Role:      constant.ChatMessageRoleAssistant,
		CreatedAt: time.Now(),
	})
	s.active = id
	s.hasActive = true
	s.mu.Unlock()

	s.publish(ChangeEvent{MessageId: id, Role: constant.ChatMessageRoleAssistant, Kind: KindAppended})
	return id
}

// AppendContent accumulates answer text on the active assistant entry.
func (s *Store) AppendContent(id uuid.UUID, text string) error {
	if err := s.mutateActive(id, func(m *model.Message) {
		m.Content += text
	}); err != nil {
		return err
	}

	s.publish(ChangeEvent{MessageId: id, Role: constant.ChatMessageRoleAssistant, Kind: KindContent, Delta: text})
	return nil
}

// SetContent replaces the active assistant entry's text. Used for the
// degraded blocking transport and for fallback error text.
func (s *Store) SetContent(id uuid.UUID, text string) error {
	if err := s.mutateActive(id, func(m *model.Message) {
		m.Content = text
	}); err != nil {
		return err
	}

	s.publish(ChangeEvent{MessageId: id, Role: constant.ChatMessageRoleAssistant, Kind: KindContent, Delta: text})
	return nil
}

// SetSources assigns citations to the active assistant entry.
func (s *Store) SetSources(id uuid.UUID, sources []model.Citation) error {
	if err := s.mutateActive(id, func(m *model.Message) {
		m.Sources = sources
	}); err != nil {
		return err
	}

	s.publish(ChangeEvent{MessageId: id, Role: constant.ChatMessageRoleAssistant, Kind: KindSources})
	return nil
}

// Close releases the active entry. No further mutation is permitted on
// it; a later exchange opens its own entry.
func (s *Store) Close(id uuid.UUID) {
	s.mu.Lock()
	if !s.hasActive || s.active != id {
		s.mu.Unlock()
		return
	}
	s.hasActive = false
	s.mu.Unlock()

	s.publish(ChangeEvent{MessageId: id, Role: constant.ChatMessageRoleAssistant, Kind: KindClosed})
}

func (s *Store) mutateActive(id uuid.UUID, mutate func(*model.Message)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasActive || s.active != id {
		return ErrNotActive
	}
	for i := range s.messages {
		if s.messages[i].Id == id {
			mutate(&s.messages[i])
			return nil
		}
	}
	return ErrNotActive
}

// Messages returns a copy of the log in order.
func (s *Store) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Get returns one entry by id.
func (s *Store) Get(id uuid.UUID) (model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.messages {
		if m.Id == id {
			return m, true
		}
	}
	return model.Message{}, false
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

func (s *Store) publish(evt ChangeEvent) {
	if s.publisher == nil {
		return
	}
	data, _ := json.Marshal(evt)
	_ = s.publisher.Publish(constant.TranscriptEventsTopic, message.NewMessage(watermill.NewUUID(), data))
}

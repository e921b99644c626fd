// Package memory is an in-process storage driver used for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"chatapp/internal/domain/chat"
	"chatapp/internal/domain/message"
	"chatapp/internal/repository"
	chatapp_errors "chatapp/pkg/errors"
)

func NewStore() repository.Store {
	return repository.Store{
		Chats:    NewChatRepository(),
		Messages: NewMessageRepository(),
		Users:    NewUserRepository(),
		Ping:     func(context.Context) error { return nil },
		Close:    func(context.Context) error { return nil },
	}
}

type chatRepository struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]*chat.Chat
	byKey map[string]uuid.UUID
	order []uuid.UUID
}

func NewChatRepository() repository.ChatRepository {
	return &chatRepository{
		byID:  make(map[uuid.UUID]*chat.Chat),
		byKey: make(map[string]uuid.UUID),
	}
}

func (r *chatRepository) Create(_ context.Context, c *chat.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byKey[c.MemberKey]; exists {
		return chatapp_errors.ErrConflict
	}
	stored := cloneChat(c)
	r.byID[c.ID] = stored
	r.byKey[c.MemberKey] = c.ID
	r.order = append(r.order, c.ID)
	return nil
}

func (r *chatRepository) GetByID(_ context.Context, id uuid.UUID) (*chat.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, chatapp_errors.ErrNotFound
	}
	return cloneChat(c), nil
}

func (r *chatRepository) GetByMemberKey(_ context.Context, key string) (*chat.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byKey[key]
	if !ok {
		return nil, chatapp_errors.ErrNotFound
	}
	return cloneChat(r.byID[id]), nil
}

func (r *chatRepository) ListForUser(_ context.Context, userID uuid.UUID) ([]chat.Chat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chats := lo.FilterMap(r.order, func(id uuid.UUID, _ int) (chat.Chat, bool) {
		c := r.byID[id]
		if !c.HasMember(userID) {
			return chat.Chat{}, false
		}
		return *cloneChat(c), true
	})
	return chats, nil
}

func (r *chatRepository) IncrementMessageCount(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return chatapp_errors.ErrNotFound
	}
	c.MessageCount++
	return nil
}

func cloneChat(c *chat.Chat) *chat.Chat {
	out := *c
	out.Members = append([]uuid.UUID{}, c.Members...)
	return &out
}

// messageRepository keeps one bucket per chat. Mutations of a single message
// are serialized by the bucket lock, which stands in for a row level
// conditional update.
type messageRepository struct {
	mu      sync.RWMutex
	buckets map[uuid.UUID]*bucket
	index   map[uuid.UUID]uuid.UUID // message id -> chat id
}

type bucket struct {
	mu       sync.RWMutex
	nextSeq  int64
	messages []*message.Message
}

func NewMessageRepository() repository.MessageRepository {
	return &messageRepository{
		buckets: make(map[uuid.UUID]*bucket),
		index:   make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *messageRepository) bucketFor(chatID uuid.UUID, create bool) *bucket {
	r.mu.RLock()
	b, ok := r.buckets[chatID]
	r.mu.RUnlock()
	if ok || !create {
		return b
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok = r.buckets[chatID]; !ok {
		b = &bucket{}
		r.buckets[chatID] = b
	}
	return b
}

func (r *messageRepository) Create(_ context.Context, m *message.Message) error {
	b := r.bucketFor(m.ChatID, true)
	b.mu.Lock()
	b.nextSeq++
	m.Seq = b.nextSeq
	b.messages = append(b.messages, m.Clone())
	b.mu.Unlock()

	r.mu.Lock()
	r.index[m.ID] = m.ChatID
	r.mu.Unlock()
	return nil
}

func (r *messageRepository) bucketOf(id uuid.UUID) (*bucket, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chatID, ok := r.index[id]
	if !ok {
		return nil, false
	}
	b, ok := r.buckets[chatID]
	return b, ok
}

func (r *messageRepository) GetByID(_ context.Context, id uuid.UUID) (*message.Message, error) {
	b, ok := r.bucketOf(id)
	if !ok {
		return nil, chatapp_errors.ErrNotFound
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, m := range b.messages {
		if m.ID == id {
			return m.Clone(), nil
		}
	}
	return nil, chatapp_errors.ErrNotFound
}

func (r *messageRepository) active(chatID uuid.UUID) []message.Message {
	b := r.bucketFor(chatID, false)
	if b == nil {
		return []message.Message{}
	}
	b.mu.RLock()
	out := lo.FilterMap(b.messages, func(m *message.Message, _ int) (message.Message, bool) {
		if m.IsDeleted {
			return message.Message{}, false
		}
		return *m.Clone(), true
	})
	b.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func (r *messageRepository) ListActive(_ context.Context, chatID uuid.UUID) ([]message.Message, error) {
	return r.active(chatID), nil
}

func (r *messageRepository) LatestActive(_ context.Context, chatID uuid.UUID) (*message.Message, error) {
	msgs := r.active(chatID)
	if len(msgs) == 0 {
		return nil, chatapp_errors.ErrNotFound
	}
	last := msgs[len(msgs)-1]
	return &last, nil
}

func (r *messageRepository) CountUnreadFor(_ context.Context, chatID, viewerID uuid.UUID) (int64, error) {
	return int64(lo.CountBy(r.active(chatID), func(m message.Message) bool {
		return m.SenderID != viewerID
	})), nil
}

func (r *messageRepository) mutate(id, requesterID uuid.UUID, now time.Time, window time.Duration, apply func(*message.Message)) (*message.Message, error) {
	b, ok := r.bucketOf(id)
	if !ok {
		return nil, chatapp_errors.ErrNotFound
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.messages {
		if m.ID != id {
			continue
		}
		if err := m.CheckMutable(requesterID, now, window); err != nil {
			return nil, err
		}
		apply(m)
		return m.Clone(), nil
	}
	return nil, chatapp_errors.ErrNotFound
}

func (r *messageRepository) ApplyEdit(_ context.Context, id, requesterID uuid.UUID, newBody string, now time.Time, window time.Duration) (*message.Message, error) {
	return r.mutate(id, requesterID, now, window, func(m *message.Message) {
		m.ApplyEdit(newBody, now)
	})
}

func (r *messageRepository) ApplyDelete(_ context.Context, id, requesterID uuid.UUID, now time.Time, window time.Duration) (*message.Message, error) {
	return r.mutate(id, requesterID, now, window, func(m *message.Message) {
		m.MarkDeleted(now)
	})
}

// UserRepository is an in-memory user directory. Put seeds display names.
type UserRepository struct {
	mu    sync.RWMutex
	names map[uuid.UUID]string
}

func NewUserRepository() *UserRepository {
	return &UserRepository{names: make(map[uuid.UUID]string)}
}

func (r *UserRepository) Put(userID uuid.UUID, displayName string) {
	r.mu.Lock()
	r.names[userID] = displayName
	r.mu.Unlock()
}

func (r *UserRepository) PutUser(_ context.Context, userID uuid.UUID, displayName, _ string) error {
	r.Put(userID, displayName)
	return nil
}

func (r *UserRepository) DisplayName(_ context.Context, userID uuid.UUID) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[userID]
	if !ok {
		return "", chatapp_errors.ErrNotFound
	}
	return name, nil
}

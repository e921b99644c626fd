package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chatapp/internal/commands"
	"chatapp/internal/domain/chat"
	"chatapp/internal/domain/message"
	"chatapp/internal/mocks"
	"chatapp/internal/repository"
	"chatapp/internal/repository/memory"
	chatapp_errors "chatapp/pkg/errors"
	"chatapp/pkg/logger"
)

type messageFixture struct {
	store       repository.Store
	clock       *fakeClock
	broadcaster *mocks.MockBroadcaster
	service     *MessageService
	chat        *chat.Chat
	alice, bob  uuid.UUID
}

func newMessageFixture(t *testing.T, cfg MessageConfig) *messageFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &messageFixture{
		store:       memory.NewStore(),
		clock:       newFakeClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)),
		broadcaster: mocks.NewMockBroadcaster(ctrl),
		alice:       uuid.New(),
		bob:         uuid.New(),
	}
	f.service = NewMessageService(f.store.Messages, f.store.Chats, f.broadcaster, cfg, logger.Nop(), WithClock(f.clock.Now))

	chats := NewChatService(f.store.Chats, logger.Nop())
	c, _, err := chats.FindOrCreate(context.Background(), commands.CreateChatCommand{UserA: f.alice, UserB: f.bob})
	require.NoError(t, err)
	f.chat = c
	return f
}

func (f *messageFixture) send(t *testing.T, sender uuid.UUID, body string) *message.Message {
	t.Helper()
	f.broadcaster.EXPECT().PublishMessage(gomock.Any(), f.chat.ID, gomock.Any())
	m, err := f.service.Send(context.Background(), commands.SendMessageCommand{
		ChatID:     f.chat.ID,
		SenderID:   sender,
		SenderName: "someone",
		Body:       body,
	})
	require.NoError(t, err)
	return m
}

func TestMessageService_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("should persist then publish the message", func(t *testing.T) {
		// Given
		f := newMessageFixture(t, DefaultMessageConfig())
		var published *message.Message
		f.broadcaster.EXPECT().
			PublishMessage(gomock.Any(), f.chat.ID, gomock.Any()).
			Do(func(_ context.Context, _ uuid.UUID, m *message.Message) {
				stored, err := f.store.Messages.GetByID(ctx, m.ID)
				require.NoError(t, err, "message must be stored before it is published")
				published = stored
			})

		// When
		m, err := f.service.Send(ctx, commands.SendMessageCommand{
			ChatID: f.chat.ID, SenderID: f.alice, SenderName: "Alice", Body: "hello",
		})

		// Then
		require.NoError(t, err)
		require.Equal(t, m.ID, published.ID)
		require.Equal(t, f.clock.Now(), m.Timestamp)
		require.False(t, m.IsEdited)
		require.False(t, m.IsDeleted)
		require.Empty(t, m.EditHistory)

		msgs, err := f.service.ListActive(ctx, f.chat.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		require.Equal(t, "hello", msgs[0].Body)

		c, err := f.store.Chats.GetByID(ctx, f.chat.ID)
		require.NoError(t, err)
		require.EqualValues(t, 1, c.MessageCount)
	})

	t.Run("should list messages in send order", func(t *testing.T) {
		f := newMessageFixture(t, DefaultMessageConfig())
		f.send(t, f.alice, "one")
		f.send(t, f.bob, "two")
		f.send(t, f.alice, "three")

		msgs, err := f.service.ListActive(ctx, f.chat.ID)
		require.NoError(t, err)
		require.Equal(t, []string{"one", "two", "three"}, []string{msgs[0].Body, msgs[1].Body, msgs[2].Body})
	})

	t.Run("should not publish when the chat does not exist", func(t *testing.T) {
		f := newMessageFixture(t, DefaultMessageConfig())

		_, err := f.service.Send(ctx, commands.SendMessageCommand{
			ChatID: uuid.New(), SenderID: f.alice, SenderName: "Alice", Body: "hello",
		})
		require.ErrorIs(t, err, chatapp_errors.ErrNotFound)
	})

	t.Run("should reject an empty message by default", func(t *testing.T) {
		f := newMessageFixture(t, DefaultMessageConfig())

		_, err := f.service.Send(ctx, commands.SendMessageCommand{
			ChatID: f.chat.ID, SenderID: f.alice, SenderName: "Alice",
		})
		require.ErrorIs(t, err, chatapp_errors.ErrInvalidInput)
	})

	t.Run("should accept an attachment without body", func(t *testing.T) {
		f := newMessageFixture(t, DefaultMessageConfig())
		f.broadcaster.EXPECT().PublishMessage(gomock.Any(), f.chat.ID, gomock.Any())

		m, err := f.service.Send(ctx, commands.SendMessageCommand{
			ChatID: f.chat.ID, SenderID: f.alice, SenderName: "Alice", AttachmentRef: "/uploads/cat.png",
		})
		require.NoError(t, err)
		require.Equal(t, "/uploads/cat.png", m.AttachmentRef)
	})

	t.Run("should accept an empty message when content is optional", func(t *testing.T) {
		cfg := DefaultMessageConfig()
		cfg.RequireContent = false
		f := newMessageFixture(t, cfg)
		f.broadcaster.EXPECT().PublishMessage(gomock.Any(), f.chat.ID, gomock.Any())

		_, err := f.service.Send(ctx, commands.SendMessageCommand{
			ChatID: f.chat.ID, SenderID: f.alice, SenderName: "Alice",
		})
		require.NoError(t, err)
	})

	t.Run("should forbid a sender outside the chat", func(t *testing.T) {
		f := newMessageFixture(t, DefaultMessageConfig())

		_, err := f.service.Send(ctx, commands.SendMessageCommand{
			ChatID: f.chat.ID, SenderID: uuid.New(), SenderName: "Mallory", Body: "hi",
		})
		require.ErrorIs(t, err, chatapp_errors.ErrForbidden)
	})

	t.Run("should reject a body over the length limit", func(t *testing.T) {
		cfg := DefaultMessageConfig()
		cfg.MaxLength = 5
		f := newMessageFixture(t, cfg)

		_, err := f.service.Send(ctx, commands.SendMessageCommand{
			ChatID: f.chat.ID, SenderID: f.alice, SenderName: "Alice", Body: "too long",
		})
		require.ErrorIs(t, err, chatapp_errors.ErrInvalidInput)
	})
}

func TestMessageService_CheckSend(t *testing.T) {
	ctx := context.Background()

	t.Run("should accept a member of an existing chat", func(t *testing.T) {
		f := newMessageFixture(t, DefaultMessageConfig())

		require.NoError(t, f.service.CheckSend(ctx, f.chat.ID, f.bob, ""))
	})

	t.Run("should reject what Send would reject before any content exists", func(t *testing.T) {
		cfg := DefaultMessageConfig()
		cfg.MaxLength = 5
		f := newMessageFixture(t, cfg)

		require.ErrorIs(t, f.service.CheckSend(ctx, uuid.New(), f.alice, ""), chatapp_errors.ErrNotFound)
		require.ErrorIs(t, f.service.CheckSend(ctx, f.chat.ID, uuid.New(), ""), chatapp_errors.ErrForbidden)
		require.ErrorIs(t, f.service.CheckSend(ctx, f.chat.ID, f.alice, "too long"), chatapp_errors.ErrInvalidInput)
		require.ErrorIs(t, f.service.CheckSend(ctx, uuid.Nil, f.alice, ""), chatapp_errors.ErrInvalidIdentifier)
	})
}

func TestMessageService_Edit(t *testing.T) {
	ctx := context.Background()

	t.Run("should still allow an edit exactly at the window boundary", func(t *testing.T) {
		// Given
		f := newMessageFixture(t, DefaultMessageConfig())
		f.clock.Set(time.Date(2024, 5, 1, 10, 0, 0, 987654321, time.UTC))
		m := f.send(t, f.alice, "v1")
		f.broadcaster.EXPECT().PublishMessageEdited(gomock.Any(), f.chat.ID, gomock.Any())

		// When
		stored, err := f.service.GetByID(ctx, m.ID)
		require.NoError(t, err)
		f.clock.Set(stored.Timestamp.Add(DefaultMessageConfig().EditWindow))
		_, err = f.service.Edit(ctx, commands.EditMessageCommand{MessageID: m.ID, RequesterID: f.alice, NewBody: "v2"})
		require.NoError(t, err)
		f.clock.Advance(time.Millisecond)
		_, err = f.service.Edit(ctx, commands.EditMessageCommand{MessageID: m.ID, RequesterID: f.alice, NewBody: "v3"})

		// Then
		require.Equal(t, m.Timestamp, stored.Timestamp)
		require.ErrorIs(t, err, chatapp_errors.ErrWindowExpired)
	})

	t.Run("should allow edits until the window closes", func(t *testing.T) {
		// Given
		f := newMessageFixture(t, DefaultMessageConfig())
		sentAt := f.clock.Now()
		m := f.send(t, f.alice, "v1")
		f.broadcaster.EXPECT().PublishMessageEdited(gomock.Any(), f.chat.ID, gomock.Any()).Times(2)

		// When
		f.clock.Set(sentAt.Add(time.Hour))
		_, err := f.service.Edit(ctx, commands.EditMessageCommand{MessageID: m.ID, RequesterID: f.alice, NewBody: "v2"})
		require.NoError(t, err)

		f.clock.Set(sentAt.Add(3*time.Hour + 59*time.Minute))
		edited, err := f.service.Edit(ctx, commands.EditMessageCommand{MessageID: m.ID, RequesterID: f.alice, NewBody: "v3"})

		// Then
		require.NoError(t, err)
		require.Equal(t, "v3", edited.Body)
		require.True(t, edited.IsEdited)
		require.Len(t, edited.EditHistory, 2)
		require.Equal(t, "v1", edited.EditHistory[0].PreviousBody)
		require.Equal(t, "v2", edited.EditHistory[1].PreviousBody)
		require.Equal(t, sentAt, edited.Timestamp)

		f.clock.Set(sentAt.Add(4*time.Hour + time.Second))
		_, err = f.service.Edit(ctx, commands.EditMessageCommand{MessageID: m.ID, RequesterID: f.alice, NewBody: "v4"})
		require.ErrorIs(t, err, chatapp_errors.ErrWindowExpired)
	})

	t.Run("should forbid edits by anyone but the sender", func(t *testing.T) {
		f := newMessageFixture(t, DefaultMessageConfig())
		m := f.send(t, f.alice, "mine")

		_, err := f.service.Edit(ctx, commands.EditMessageCommand{MessageID: m.ID, RequesterID: f.bob, NewBody: "yours"})
		require.ErrorIs(t, err, chatapp_errors.ErrForbidden)

		f.clock.Advance(10 * time.Hour)
		_, err = f.service.Edit(ctx, commands.EditMessageCommand{MessageID: m.ID, RequesterID: f.bob, NewBody: "yours"})
		require.ErrorIs(t, err, chatapp_errors.ErrForbidden)
	})

	t.Run("should return not found for an unknown message", func(t *testing.T) {
		f := newMessageFixture(t, DefaultMessageConfig())

		_, err := f.service.Edit(ctx, commands.EditMessageCommand{MessageID: uuid.New(), RequesterID: f.alice, NewBody: "x"})
		require.ErrorIs(t, err, chatapp_errors.ErrNotFound)
	})

	t.Run("should not edit a deleted message", func(t *testing.T) {
		f := newMessageFixture(t, DefaultMessageConfig())
		m := f.send(t, f.alice, "gone")
		f.broadcaster.EXPECT().PublishMessageDeleted(gomock.Any(), f.chat.ID, gomock.Any())
		_, err := f.service.Delete(ctx, commands.DeleteMessageCommand{MessageID: m.ID, RequesterID: f.alice})
		require.NoError(t, err)

		_, err = f.service.Edit(ctx, commands.EditMessageCommand{MessageID: m.ID, RequesterID: f.alice, NewBody: "back"})
		require.ErrorIs(t, err, chatapp_errors.ErrAlreadyDeleted)
	})
}

func TestMessageService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("should hide the message but keep it addressable", func(t *testing.T) {
		// Given
		f := newMessageFixture(t, DefaultMessageConfig())
		m := f.send(t, f.alice, "bye")
		f.broadcaster.EXPECT().PublishMessageDeleted(gomock.Any(), f.chat.ID, gomock.Any())

		// When
		deleted, err := f.service.Delete(ctx, commands.DeleteMessageCommand{MessageID: m.ID, RequesterID: f.alice})

		// Then
		require.NoError(t, err)
		require.True(t, deleted.IsDeleted)
		require.NotNil(t, deleted.DeletedAt)

		msgs, err := f.service.ListActive(ctx, f.chat.ID)
		require.NoError(t, err)
		require.Empty(t, msgs)

		got, err := f.service.GetByID(ctx, m.ID)
		require.NoError(t, err)
		require.True(t, got.IsDeleted)

		_, err = f.service.Delete(ctx, commands.DeleteMessageCommand{MessageID: m.ID, RequesterID: f.alice})
		require.ErrorIs(t, err, chatapp_errors.ErrAlreadyDeleted)
	})

	t.Run("should forbid deletes by anyone but the sender", func(t *testing.T) {
		f := newMessageFixture(t, DefaultMessageConfig())
		m := f.send(t, f.alice, "keep")

		_, err := f.service.Delete(ctx, commands.DeleteMessageCommand{MessageID: m.ID, RequesterID: f.bob})
		require.ErrorIs(t, err, chatapp_errors.ErrForbidden)
	})

	t.Run("should refuse to delete after the window", func(t *testing.T) {
		f := newMessageFixture(t, DefaultMessageConfig())
		m := f.send(t, f.alice, "old")
		f.clock.Advance(4*time.Hour + time.Second)

		_, err := f.service.Delete(ctx, commands.DeleteMessageCommand{MessageID: m.ID, RequesterID: f.alice})
		require.ErrorIs(t, err, chatapp_errors.ErrWindowExpired)
	})
}

func TestMessageService_CountUnreadFor(t *testing.T) {
	ctx := context.Background()

	t.Run("should follow sends and deletes of the counterpart", func(t *testing.T) {
		f := newMessageFixture(t, DefaultMessageConfig())
		f.send(t, f.alice, "mine")

		n, err := f.service.CountUnreadFor(ctx, f.chat.ID, f.alice)
		require.NoError(t, err)
		require.Zero(t, n)

		m := f.send(t, f.bob, "theirs")
		n, err = f.service.CountUnreadFor(ctx, f.chat.ID, f.alice)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)

		f.broadcaster.EXPECT().PublishMessageDeleted(gomock.Any(), f.chat.ID, gomock.Any())
		_, err = f.service.Delete(ctx, commands.DeleteMessageCommand{MessageID: m.ID, RequesterID: f.bob})
		require.NoError(t, err)

		n, err = f.service.CountUnreadFor(ctx, f.chat.ID, f.alice)
		require.NoError(t, err)
		require.Zero(t, n)
	})
}

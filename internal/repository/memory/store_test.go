package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chatapp/internal/domain/chat"
	"chatapp/internal/domain/message"
	chatapp_errors "chatapp/pkg/errors"
)

func TestChatRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("should reject a second chat for the same pair", func(t *testing.T) {
		repo := NewChatRepository()
		a, b := uuid.New(), uuid.New()
		first, _ := chat.New(a, b, time.Now())
		second, _ := chat.New(b, a, time.Now())

		require.NoError(t, repo.Create(ctx, first))
		require.ErrorIs(t, repo.Create(ctx, second), chatapp_errors.ErrConflict)

		found, err := repo.GetByMemberKey(ctx, chat.MemberKey(b, a))
		require.NoError(t, err)
		require.Equal(t, first.ID, found.ID)
	})

	t.Run("should list only chats the user belongs to", func(t *testing.T) {
		repo := NewChatRepository()
		a, b, c := uuid.New(), uuid.New(), uuid.New()
		ab, _ := chat.New(a, b, time.Now())
		bc, _ := chat.New(b, c, time.Now())
		require.NoError(t, repo.Create(ctx, ab))
		require.NoError(t, repo.Create(ctx, bc))

		chats, err := repo.ListForUser(ctx, a)
		require.NoError(t, err)
		require.Len(t, chats, 1)
		require.Equal(t, ab.ID, chats[0].ID)

		chats, err = repo.ListForUser(ctx, b)
		require.NoError(t, err)
		require.Len(t, chats, 2)
	})

	t.Run("should return not found for an unknown id", func(t *testing.T) {
		repo := NewChatRepository()
		_, err := repo.GetByID(ctx, uuid.New())
		require.ErrorIs(t, err, chatapp_errors.ErrNotFound)
		require.ErrorIs(t, repo.IncrementMessageCount(ctx, uuid.New()), chatapp_errors.ErrNotFound)
	})
}

func TestMessageRepository(t *testing.T) {
	ctx := context.Background()
	chatID := uuid.New()
	alice, bob := uuid.New(), uuid.New()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("should order equal timestamps by insertion", func(t *testing.T) {
		repo := NewMessageRepository()
		for _, body := range []string{"one", "two", "three"} {
			require.NoError(t, repo.Create(ctx, message.New(chatID, alice, "Alice", body, "", base)))
		}

		msgs, err := repo.ListActive(ctx, chatID)
		require.NoError(t, err)
		require.Equal(t, []string{"one", "two", "three"}, []string{msgs[0].Body, msgs[1].Body, msgs[2].Body})

		latest, err := repo.LatestActive(ctx, chatID)
		require.NoError(t, err)
		require.Equal(t, "three", latest.Body)
	})

	t.Run("should hide deleted messages but keep them addressable", func(t *testing.T) {
		repo := NewMessageRepository()
		m := message.New(chatID, alice, "Alice", "bye", "", base)
		require.NoError(t, repo.Create(ctx, m))

		_, err := repo.ApplyDelete(ctx, m.ID, alice, base.Add(time.Minute), message.DefaultEditWindow)
		require.NoError(t, err)

		msgs, err := repo.ListActive(ctx, chatID)
		require.NoError(t, err)
		require.Empty(t, msgs)

		_, err = repo.LatestActive(ctx, chatID)
		require.ErrorIs(t, err, chatapp_errors.ErrNotFound)

		got, err := repo.GetByID(ctx, m.ID)
		require.NoError(t, err)
		require.True(t, got.IsDeleted)

		_, err = repo.ApplyDelete(ctx, m.ID, alice, base.Add(2*time.Minute), message.DefaultEditWindow)
		require.ErrorIs(t, err, chatapp_errors.ErrAlreadyDeleted)
	})

	t.Run("should count messages not sent by the viewer", func(t *testing.T) {
		repo := NewMessageRepository()
		require.NoError(t, repo.Create(ctx, message.New(chatID, alice, "Alice", "a1", "", base)))
		require.NoError(t, repo.Create(ctx, message.New(chatID, bob, "Bob", "b1", "", base)))
		require.NoError(t, repo.Create(ctx, message.New(chatID, bob, "Bob", "b2", "", base)))

		n, err := repo.CountUnreadFor(ctx, chatID, alice)
		require.NoError(t, err)
		require.EqualValues(t, 2, n)

		n, err = repo.CountUnreadFor(ctx, chatID, bob)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
	})

	t.Run("should not expose stored state through returned values", func(t *testing.T) {
		repo := NewMessageRepository()
		m := message.New(chatID, alice, "Alice", "v1", "", base)
		require.NoError(t, repo.Create(ctx, m))
		m.Body = "tampered"

		got, err := repo.GetByID(ctx, m.ID)
		require.NoError(t, err)
		require.Equal(t, "v1", got.Body)
	})

	t.Run("should apply exactly one of two concurrent deletes", func(t *testing.T) {
		repo := NewMessageRepository()
		m := message.New(chatID, alice, "Alice", "race", "", base)
		require.NoError(t, repo.Create(ctx, m))

		var wg sync.WaitGroup
		errs := make(chan error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.ApplyDelete(ctx, m.ID, alice, base.Add(time.Minute), message.DefaultEditWindow)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		var ok, already int
		for err := range errs {
			switch {
			case err == nil:
				ok++
			case chatapp_errors.Kind(err) == chatapp_errors.CodeAlreadyDeleted:
				already++
			}
		}
		require.Equal(t, 1, ok)
		require.Equal(t, 1, already)
	})
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"chatapp/internal/domain/chat"
	chatapp_errors "chatapp/pkg/errors"
)

const chatColumns = `id, member_a, member_b, member_key, created_at, message_count`

type chatRepository struct {
	db DBTX
}

func NewChatRepository(db DBTX) ChatRepository {
	return &chatRepository{db: db}
}

func scanChat(row rowScanner) (*chat.Chat, error) {
	var (
		c    chat.Chat
		a, b uuid.UUID
	)
	if err := row.Scan(&c.ID, &a, &b, &c.MemberKey, &c.CreatedAt, &c.MessageCount); err != nil {
		return nil, err
	}
	c.Members = []uuid.UUID{a, b}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (r *chatRepository) Create(ctx context.Context, c *chat.Chat) error {
	if len(c.Members) != 2 {
		return fmt.Errorf("%w: chat needs two members", chatapp_errors.ErrInvalidInput)
	}
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO chats (id, member_a, member_b, member_key, created_at, message_count)
        VALUES ($1,$2,$3,$4,$5,$6)
    `, c.ID, c.Members[0], c.Members[1], c.MemberKey, c.CreatedAt, c.MessageCount)
	if err != nil {
		if isUniqueViolation(err) {
			return chatapp_errors.ErrConflict
		}
		return err
	}
	return nil
}

func (r *chatRepository) getOne(ctx context.Context, where string, arg interface{}) (*chat.Chat, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+chatColumns+` FROM chats WHERE `+where, arg)
	c, err := scanChat(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, chatapp_errors.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *chatRepository) GetByID(ctx context.Context, id uuid.UUID) (*chat.Chat, error) {
	return r.getOne(ctx, `id = $1`, id)
}

func (r *chatRepository) GetByMemberKey(ctx context.Context, key string) (*chat.Chat, error) {
	return r.getOne(ctx, `member_key = $1`, key)
}

func (r *chatRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]chat.Chat, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+chatColumns+`
        FROM chats
        WHERE member_a = $1 OR member_b = $1
        ORDER BY created_at ASC
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chats := []chat.Chat{}
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return chats, nil
}

func (r *chatRepository) IncrementMessageCount(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE chats
        SET message_count = message_count + 1
        WHERE id = $1
    `, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return chatapp_errors.ErrNotFound
	}
	return nil
}

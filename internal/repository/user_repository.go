package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	chatapp_errors "chatapp/pkg/errors"
)

// userRepository reads display names from the users table, which is owned
// by the account service. A user without a name is shown by email.
type userRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) DisplayName(ctx context.Context, userID uuid.UUID) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(NULLIF(display_name, ''), email) FROM users WHERE id = $1`, userID).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", chatapp_errors.ErrNotFound
		}
		return "", err
	}
	if name == "" {
		return "", chatapp_errors.ErrNotFound
	}
	return name, nil
}

func (r *userRepository) PutUser(ctx context.Context, userID uuid.UUID, displayName, email string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name, email = EXCLUDED.email`,
		userID, displayName, email)
	return err
}

// NewPostgresStore wires the postgres repositories over one connection pool.
func NewPostgresStore(db *sql.DB) Store {
	return Store{
		Chats:    NewChatRepository(db),
		Messages: NewMessageRepository(db),
		Users:    NewUserRepository(db),
		Ping:     db.PingContext,
		Close: func(context.Context) error {
			return db.Close()
		},
	}
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"chatapp/internal/domain/message"
	chatapp_errors "chatapp/pkg/errors"
)

const messageColumns = `seq, id, chat_id, sender_id, sender_name, body, attachment_ref, created_at,
        is_edited, is_deleted, edit_history, last_edited_at, deleted_at`

// editRow is the JSONB shape of one edit history entry.
type editRow struct {
	PreviousBody string    `json:"previousBody"`
	EditedAt     time.Time `json:"editedAt"`
}

type messageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) MessageRepository {
	return &messageRepository{db: db}
}

func scanMessage(row rowScanner) (*message.Message, error) {
	var (
		m            message.Message
		history      []byte
		lastEditedAt sql.NullTime
		deletedAt    sql.NullTime
	)
	if err := row.Scan(
		&m.Seq,
		&m.ID,
		&m.ChatID,
		&m.SenderID,
		&m.SenderName,
		&m.Body,
		&m.AttachmentRef,
		&m.Timestamp,
		&m.IsEdited,
		&m.IsDeleted,
		&history,
		&lastEditedAt,
		&deletedAt,
	); err != nil {
		return nil, err
	}
	var edits []editRow
	if len(history) > 0 {
		if err := json.Unmarshal(history, &edits); err != nil {
			return nil, err
		}
	}
	m.EditHistory = lo.Map(edits, func(e editRow, _ int) message.Edit {
		return message.Edit{PreviousBody: e.PreviousBody, EditedAt: e.EditedAt.UTC()}
	})
	m.Timestamp = m.Timestamp.UTC()
	m.LastEditedAt = timePtr(lastEditedAt)
	m.DeletedAt = timePtr(deletedAt)
	return &m, nil
}

func (r *messageRepository) Create(ctx context.Context, m *message.Message) error {
	err := r.db.QueryRowContext(ctx, `
        INSERT INTO messages (id, chat_id, sender_id, sender_name, body, attachment_ref, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING seq
    `,
		m.ID,
		m.ChatID,
		m.SenderID,
		m.SenderName,
		m.Body,
		m.AttachmentRef,
		m.Timestamp,
	).Scan(&m.Seq)
	if err != nil {
		if isUniqueViolation(err) {
			return chatapp_errors.ErrConflict
		}
		return err
	}
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id uuid.UUID) (*message.Message, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, chatapp_errors.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *messageRepository) ListActive(ctx context.Context, chatID uuid.UUID) ([]message.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+messageColumns+`
        FROM messages
        WHERE chat_id = $1 AND is_deleted = false
        ORDER BY created_at ASC, seq ASC
    `, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []message.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepository) LatestActive(ctx context.Context, chatID uuid.UUID) (*message.Message, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT `+messageColumns+`
        FROM messages
        WHERE chat_id = $1 AND is_deleted = false
        ORDER BY created_at DESC, seq DESC
        LIMIT 1
    `, chatID)
	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, chatapp_errors.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *messageRepository) CountUnreadFor(ctx context.Context, chatID, viewerID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
        SELECT COUNT(*)
        FROM messages
        WHERE chat_id = $1 AND sender_id <> $2 AND is_deleted = false
    `, chatID, viewerID).Scan(&n)
	return n, err
}

// ApplyEdit updates the row only while the requester owns it, it is not
// deleted and the window is open. The old body is read by the same statement
// so concurrent edits cannot lose a history entry.
func (r *messageRepository) ApplyEdit(ctx context.Context, id, requesterID uuid.UUID, newBody string, now time.Time, window time.Duration) (*message.Message, error) {
	now = now.UTC()
	row := r.db.QueryRowContext(ctx, `
        UPDATE messages
        SET edit_history = edit_history || jsonb_build_array(jsonb_build_object('previousBody', body, 'editedAt', $4::text)),
            body = $2,
            is_edited = true,
            last_edited_at = $3
        WHERE id = $1 AND sender_id = $5 AND is_deleted = false AND created_at >= $6
        RETURNING `+messageColumns,
		id, newBody, now, now.Format(time.RFC3339Nano), requesterID, now.Add(-window),
	)
	return r.conditional(ctx, row, id, requesterID, now, window)
}

func (r *messageRepository) ApplyDelete(ctx context.Context, id, requesterID uuid.UUID, now time.Time, window time.Duration) (*message.Message, error) {
	now = now.UTC()
	row := r.db.QueryRowContext(ctx, `
        UPDATE messages
        SET is_deleted = true, deleted_at = $2
        WHERE id = $1 AND sender_id = $3 AND is_deleted = false AND created_at >= $4
        RETURNING `+messageColumns,
		id, now, requesterID, now.Add(-window),
	)
	return r.conditional(ctx, row, id, requesterID, now, window)
}

// conditional scans the result of a guarded update and, when no row matched,
// re-reads the message to report why.
func (r *messageRepository) conditional(ctx context.Context, row *sql.Row, id, requesterID uuid.UUID, now time.Time, window time.Duration) (*message.Message, error) {
	m, err := scanMessage(row)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, ClassifyRejectedMutation(current, requesterID, now, window)
}

package repository

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS chats (
		id UUID PRIMARY KEY,
		member_a UUID NOT NULL,
		member_b UUID NOT NULL,
		member_key TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		message_count BIGINT NOT NULL DEFAULT 0,
		CONSTRAINT chats_distinct_members CHECK (member_a <> member_b)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_chats_member_key ON chats (member_key)`,
	`CREATE INDEX IF NOT EXISTS idx_chats_member_a ON chats (member_a)`,
	`CREATE INDEX IF NOT EXISTS idx_chats_member_b ON chats (member_b)`,
	`CREATE TABLE IF NOT EXISTS messages (
		seq BIGSERIAL NOT NULL,
		id UUID PRIMARY KEY,
		chat_id UUID NOT NULL REFERENCES chats (id),
		sender_id UUID NOT NULL,
		sender_name TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		attachment_ref TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		is_edited BOOLEAN NOT NULL DEFAULT false,
		is_deleted BOOLEAN NOT NULL DEFAULT false,
		edit_history JSONB NOT NULL DEFAULT '[]'::jsonb,
		last_edited_at TIMESTAMPTZ,
		deleted_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_chat_active ON messages (chat_id, created_at, seq) WHERE is_deleted = false`,
}

// InitSchema creates the tables and indexes used by the postgres driver.
// Every statement is idempotent.
func InitSchema(ctx context.Context, db DBTX) error {
	return WithTx(ctx, db, func(tx DBTX) error {
		for i, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("schema statement %d: %w", i+1, err)
			}
		}
		return nil
	})
}

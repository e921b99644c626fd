// Package mongostore implements the repositories on MongoDB using the
// chats, messages and users collections.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chatapp/internal/domain/chat"
	"chatapp/internal/domain/message"
	"chatapp/internal/repository"
	"chatapp/pkg/database"
	chatapp_errors "chatapp/pkg/errors"
)

// ChatDocument is the stored shape of a chat.
type ChatDocument struct {
	ID           string    `bson:"_id"`
	Members      []string  `bson:"members"`
	MemberKey    string    `bson:"memberKey"`
	CreatedAt    time.Time `bson:"createdAt"`
	MessageCount int64     `bson:"messageCount"`
	// MessageSeq hands out per chat insertion sequence numbers.
	MessageSeq int64 `bson:"messageSeq"`
}

type EditDocument struct {
	PreviousBody string    `bson:"previousMessage"`
	EditedAt     time.Time `bson:"editedAt"`
}

// MessageDocument is the stored shape of a message.
type MessageDocument struct {
	ID            string         `bson:"_id"`
	ChatID        string         `bson:"chatId"`
	SenderID      string         `bson:"senderId"`
	SenderName    string         `bson:"senderName"`
	Body          string         `bson:"message"`
	AttachmentRef string         `bson:"fileUrl"`
	Timestamp     time.Time      `bson:"timestamp"`
	Seq           int64          `bson:"seq"`
	IsEdited      bool           `bson:"isEdited"`
	IsDeleted     bool           `bson:"isDeleted"`
	EditHistory   []EditDocument `bson:"editHistory"`
	LastEditedAt  *time.Time     `bson:"lastEditedAt,omitempty"`
	DeletedAt     *time.Time     `bson:"deletedAt,omitempty"`
}

type UserDocument struct {
	ID   string `bson:"_id"`
	Name string `bson:"name"`
	Mail string `bson:"mail"`
}

func NewStore(db *database.MongoDB) repository.Store {
	return repository.Store{
		Chats:    &chatRepository{coll: db.Chats},
		Messages: &messageRepository{coll: db.Messages, chats: db.Chats},
		Users:    &userRepository{coll: db.Users},
		Ping:     db.Ping,
		Close:    db.Close,
	}
}

// EnsureIndexes creates the indexes the store relies on. The unique member
// key index is what makes chat creation race safe.
func EnsureIndexes(ctx context.Context, db *database.MongoDB) error {
	_, err := db.Chats.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "memberKey", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "members", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create chat indexes: %w", err)
	}
	_, err = db.Messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "chatId", Value: 1}, {Key: "timestamp", Value: 1}, {Key: "seq", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}
	return nil
}

func parseID(raw string) uuid.UUID {
	id, _ := uuid.Parse(raw)
	return id
}

func toChat(doc ChatDocument) chat.Chat {
	return chat.Chat{
		ID:           parseID(doc.ID),
		Members:      lo.Map(doc.Members, func(m string, _ int) uuid.UUID { return parseID(m) }),
		MemberKey:    doc.MemberKey,
		CreatedAt:    doc.CreatedAt.UTC(),
		MessageCount: doc.MessageCount,
	}
}

func toMessage(doc MessageDocument) *message.Message {
	m := &message.Message{
		ID:            parseID(doc.ID),
		ChatID:        parseID(doc.ChatID),
		SenderID:      parseID(doc.SenderID),
		SenderName:    doc.SenderName,
		Body:          doc.Body,
		AttachmentRef: doc.AttachmentRef,
		Timestamp:     doc.Timestamp.UTC(),
		Seq:           doc.Seq,
		IsEdited:      doc.IsEdited,
		IsDeleted:     doc.IsDeleted,
		EditHistory: lo.Map(doc.EditHistory, func(e EditDocument, _ int) message.Edit {
			return message.Edit{PreviousBody: e.PreviousBody, EditedAt: e.EditedAt.UTC()}
		}),
	}
	if doc.LastEditedAt != nil {
		t := doc.LastEditedAt.UTC()
		m.LastEditedAt = &t
	}
	if doc.DeletedAt != nil {
		t := doc.DeletedAt.UTC()
		m.DeletedAt = &t
	}
	return m
}

type chatRepository struct {
	coll *mongo.Collection
}

func (r *chatRepository) Create(ctx context.Context, c *chat.Chat) error {
	doc := ChatDocument{
		ID:           c.ID.String(),
		Members:      lo.Map(c.Members, func(m uuid.UUID, _ int) string { return m.String() }),
		MemberKey:    c.MemberKey,
		CreatedAt:    c.CreatedAt,
		MessageCount: c.MessageCount,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return chatapp_errors.ErrConflict
		}
		return fmt.Errorf("failed to save chat: %w", err)
	}
	return nil
}

func (r *chatRepository) findOne(ctx context.Context, filter bson.M) (*chat.Chat, error) {
	var doc ChatDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, chatapp_errors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	c := toChat(doc)
	return &c, nil
}

func (r *chatRepository) GetByID(ctx context.Context, id uuid.UUID) (*chat.Chat, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *chatRepository) GetByMemberKey(ctx context.Context, key string) (*chat.Chat, error) {
	return r.findOne(ctx, bson.M{"memberKey": key})
}

func (r *chatRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]chat.Chat, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"members": userID.String()}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer cursor.Close(ctx)

	chats := []chat.Chat{}
	for cursor.Next(ctx) {
		var doc ChatDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode chat: %w", err)
		}
		chats = append(chats, toChat(doc))
	}
	return chats, cursor.Err()
}

func (r *chatRepository) IncrementMessageCount(ctx context.Context, id uuid.UUID) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id.String()}, bson.M{"$inc": bson.M{"messageCount": 1}})
	if err != nil {
		return fmt.Errorf("failed to update message count: %w", err)
	}
	if res.MatchedCount == 0 {
		return chatapp_errors.ErrNotFound
	}
	return nil
}

type messageRepository struct {
	coll  *mongo.Collection
	chats *mongo.Collection
}

func (r *messageRepository) nextSeq(ctx context.Context, chatID uuid.UUID) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"messageSeq": 1})
	var doc ChatDocument
	err := r.chats.FindOneAndUpdate(ctx, bson.M{"_id": chatID.String()}, bson.M{"$inc": bson.M{"messageSeq": 1}}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, chatapp_errors.ErrNotFound
		}
		return 0, fmt.Errorf("failed to allocate message sequence: %w", err)
	}
	return doc.MessageSeq, nil
}

func (r *messageRepository) Create(ctx context.Context, m *message.Message) error {
	seq, err := r.nextSeq(ctx, m.ChatID)
	if err != nil {
		return err
	}
	m.Seq = seq
	doc := MessageDocument{
		ID:            m.ID.String(),
		ChatID:        m.ChatID.String(),
		SenderID:      m.SenderID.String(),
		SenderName:    m.SenderName,
		Body:          m.Body,
		AttachmentRef: m.AttachmentRef,
		Timestamp:     m.Timestamp,
		Seq:           m.Seq,
		EditHistory:   []EditDocument{},
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return chatapp_errors.ErrConflict
		}
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id uuid.UUID) (*message.Message, error) {
	var doc MessageDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, chatapp_errors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return toMessage(doc), nil
}

func activeFilter(chatID uuid.UUID) bson.M {
	return bson.M{"chatId": chatID.String(), "isDeleted": false}
}

func (r *messageRepository) ListActive(ctx context.Context, chatID uuid.UUID) ([]message.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "seq", Value: 1}})
	cursor, err := r.coll.Find(ctx, activeFilter(chatID), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer cursor.Close(ctx)

	msgs := []message.Message{}
	for cursor.Next(ctx) {
		var doc MessageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		msgs = append(msgs, *toMessage(doc))
	}
	return msgs, cursor.Err()
}

func (r *messageRepository) LatestActive(ctx context.Context, chatID uuid.UUID) (*message.Message, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "seq", Value: -1}})
	var doc MessageDocument
	if err := r.coll.FindOne(ctx, activeFilter(chatID), opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, chatapp_errors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get last message: %w", err)
	}
	return toMessage(doc), nil
}

func (r *messageRepository) CountUnreadFor(ctx context.Context, chatID, viewerID uuid.UUID) (int64, error) {
	filter := activeFilter(chatID)
	filter["senderId"] = bson.M{"$ne": viewerID.String()}
	n, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return n, nil
}

func mutableFilter(id, requesterID uuid.UUID, now time.Time, window time.Duration) bson.M {
	return bson.M{
		"_id":       id.String(),
		"senderId":  requesterID.String(),
		"isDeleted": false,
		"timestamp": bson.M{"$gte": now.Add(-window)},
	}
}

// ApplyEdit uses an update pipeline so the previous body is copied into the
// history by the same atomic write that replaces it.
func (r *messageRepository) ApplyEdit(ctx context.Context, id, requesterID uuid.UUID, newBody string, now time.Time, window time.Duration) (*message.Message, error) {
	now = now.UTC()
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "editHistory", Value: bson.M{"$concatArrays": bson.A{
				bson.M{"$ifNull": bson.A{"$editHistory", bson.A{}}},
				bson.A{bson.M{"previousMessage": "$message", "editedAt": now}},
			}}},
			{Key: "message", Value: bson.M{"$literal": newBody}},
			{Key: "isEdited", Value: true},
			{Key: "lastEditedAt", Value: now},
		}}},
	}
	return r.conditional(ctx, mutableFilter(id, requesterID, now, window), update, id, requesterID, now, window)
}

func (r *messageRepository) ApplyDelete(ctx context.Context, id, requesterID uuid.UUID, now time.Time, window time.Duration) (*message.Message, error) {
	now = now.UTC()
	update := bson.M{"$set": bson.M{"isDeleted": true, "deletedAt": now}}
	return r.conditional(ctx, mutableFilter(id, requesterID, now, window), update, id, requesterID, now, window)
}

func (r *messageRepository) conditional(ctx context.Context, filter bson.M, update interface{}, id, requesterID uuid.UUID, now time.Time, window time.Duration) (*message.Message, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc MessageDocument
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return toMessage(doc), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update message: %w", err)
	}
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, repository.ClassifyRejectedMutation(current, requesterID, now, window)
}

type userRepository struct {
	coll *mongo.Collection
}

func (r *userRepository) DisplayName(ctx context.Context, userID uuid.UUID) (string, error) {
	opts := options.FindOne().SetProjection(bson.M{"name": 1, "mail": 1})
	var doc UserDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": userID.String()}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", chatapp_errors.ErrNotFound
		}
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	name := lo.CoalesceOrEmpty(doc.Name, doc.Mail)
	if name == "" {
		return "", chatapp_errors.ErrNotFound
	}
	return name, nil
}

func (r *userRepository) PutUser(ctx context.Context, userID uuid.UUID, displayName, email string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID.String()},
		bson.M{"$set": bson.M{"name": displayName, "mail": email}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

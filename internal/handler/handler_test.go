package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chatapp/internal/commands"
	"chatapp/internal/middleware"
	"chatapp/internal/mocks"
	"chatapp/internal/repository/memory"
	"chatapp/internal/services"
	"chatapp/internal/storage"
	chatapp_errors "chatapp/pkg/errors"
	"chatapp/pkg/logger"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

type apiFixture struct {
	engine      *gin.Engine
	broadcaster *mocks.MockBroadcaster
	users       *memory.UserRepository
	chats       *services.ChatService
	uploadDir   string
	clock       time.Time
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &apiFixture{
		broadcaster: mocks.NewMockBroadcaster(gomock.NewController(t)),
		uploadDir:   t.TempDir(),
		clock:       time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	store := memory.NewStore()
	f.users = store.Users.(*memory.UserRepository)
	f.chats = services.NewChatService(store.Chats, logger.Nop())
	messages := services.NewMessageService(store.Messages, store.Chats, f.broadcaster,
		services.DefaultMessageConfig(), logger.Nop(), services.WithClock(func() time.Time { return f.clock }))
	summaries := services.NewSummaryService(store.Chats, store.Messages, store.Users, logger.Nop())

	chatHandler := NewChatHandler(f.chats, summaries)
	messageHandler := NewMessageHandler(messages, storage.NewDiskStore(f.uploadDir, "/uploads"), 1024)

	f.engine = gin.New()
	f.engine.Use(middleware.ErrorHandler(logger.Nop()))
	f.engine.GET("/chats/user/:userId", chatHandler.ListForUser)
	f.engine.POST("/chats/create", chatHandler.Create)
	f.engine.GET("/chats/:chatId", chatHandler.Get)
	f.engine.POST("/messages/send", messageHandler.Send)
	f.engine.GET("/messages/chat/:chatId", messageHandler.ListActive)
	f.engine.GET("/messages/:messageId", messageHandler.Get)
	f.engine.PUT("/messages/edit/:messageId", messageHandler.Edit)
	f.engine.DELETE("/messages/delete/:messageId", messageHandler.Delete)
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return f.serve(t, req)
}

func (f *apiFixture) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func (f *apiFixture) newChat(t *testing.T) (uuid.UUID, uuid.UUID, uuid.UUID) {
	t.Helper()
	a, b := uuid.New(), uuid.New()
	c, _, err := f.chats.FindOrCreate(context.Background(), commands.CreateChatCommand{UserA: a, UserB: b})
	require.NoError(t, err)
	return c.ID, a, b
}

func (f *apiFixture) sendText(t *testing.T, chatID, sender uuid.UUID, text string) map[string]any {
	t.Helper()
	f.broadcaster.EXPECT().PublishMessage(gomock.Any(), chatID, gomock.Any())
	rec, env := f.do(t, http.MethodPost, "/messages/send", map[string]string{
		"chatId": chatID.String(), "senderId": sender.String(), "senderName": "Alice", "message": text,
	})
	require.Equal(t, http.StatusCreated, rec.Code, env.Error)
	var m map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &m))
	return m
}

func TestChatHandler(t *testing.T) {
	t.Run("should create a chat once and return it afterwards", func(t *testing.T) {
		// Given
		f := newAPIFixture(t)
		a, b := uuid.New(), uuid.New()

		// When
		first, env1 := f.do(t, http.MethodPost, "/chats/create", map[string]string{"userId1": a.String(), "userId2": b.String()})
		second, env2 := f.do(t, http.MethodPost, "/chats/create", map[string]string{"userId1": b.String(), "userId2": a.String()})

		// Then
		require.Equal(t, http.StatusCreated, first.Code)
		require.Equal(t, http.StatusOK, second.Code)
		var c1, c2 map[string]any
		require.NoError(t, json.Unmarshal(env1.Data, &c1))
		require.NoError(t, json.Unmarshal(env2.Data, &c2))
		require.Equal(t, c1["_id"], c2["_id"])
		require.Equal(t, []any{a.String(), b.String()}, c1["members"])
	})

	t.Run("should reject a chat with oneself", func(t *testing.T) {
		f := newAPIFixture(t)
		a := uuid.New().String()

		rec, env := f.do(t, http.MethodPost, "/chats/create", map[string]string{"userId1": a, "userId2": a})

		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, chatapp_errors.CodeSameUser, env.Code)
		require.False(t, env.Success)
	})

	t.Run("should reject malformed identifiers", func(t *testing.T) {
		f := newAPIFixture(t)

		rec, env := f.do(t, http.MethodPost, "/chats/create", map[string]string{"userId1": "abc", "userId2": uuid.New().String()})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, chatapp_errors.CodeInvalidIdentifier, env.Code)

		rec, env = f.do(t, http.MethodPost, "/chats/create", map[string]string{"userId1": uuid.New().String()})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, chatapp_errors.CodeInvalidInput, env.Code)
	})

	t.Run("should list summaries with placeholders", func(t *testing.T) {
		f := newAPIFixture(t)
		chatID, alice, bob := f.newChat(t)
		f.users.Put(bob, "Bob")

		rec, env := f.do(t, http.MethodGet, "/chats/user/"+alice.String(), nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var list []map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &list))
		require.Len(t, list, 1)
		require.Equal(t, chatID.String(), list[0]["_id"])
		require.Equal(t, "Bob", list[0]["userName"])
		require.Equal(t, "No messages yet", list[0]["lastMessage"])
		require.Nil(t, list[0]["lastMessageTime"])
		require.EqualValues(t, 0, list[0]["unreadCount"])
		require.Equal(t, false, list[0]["isOnline"])
	})

	t.Run("should return not found for an unknown chat", func(t *testing.T) {
		f := newAPIFixture(t)

		rec, env := f.do(t, http.MethodGet, "/chats/"+uuid.NewString(), nil)

		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, chatapp_errors.CodeNotFound, env.Code)
	})
}

func TestMessageHandler(t *testing.T) {
	t.Run("should send and list messages in order", func(t *testing.T) {
		// Given
		f := newAPIFixture(t)
		chatID, alice, bob := f.newChat(t)

		// When
		f.sendText(t, chatID, alice, "first")
		f.clock = f.clock.Add(time.Second)
		f.sendText(t, chatID, bob, "second")
		rec, env := f.do(t, http.MethodGet, "/messages/chat/"+chatID.String(), nil)

		// Then
		require.Equal(t, http.StatusOK, rec.Code)
		var list []map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &list))
		require.Len(t, list, 2)
		require.Equal(t, "first", list[0]["message"])
		require.Equal(t, "second", list[1]["message"])
	})

	t.Run("should reject an empty message", func(t *testing.T) {
		f := newAPIFixture(t)
		chatID, alice, _ := f.newChat(t)

		rec, env := f.do(t, http.MethodPost, "/messages/send", map[string]string{
			"chatId": chatID.String(), "senderId": alice.String(), "senderName": "Alice",
		})

		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, chatapp_errors.CodeInvalidInput, env.Code)
	})

	t.Run("should edit within the window and refuse after it", func(t *testing.T) {
		f := newAPIFixture(t)
		chatID, alice, _ := f.newChat(t)
		sent := f.sendText(t, chatID, alice, "helo")
		path := "/messages/edit/" + sent["_id"].(string)

		f.clock = f.clock.Add(3*time.Hour + 59*time.Minute)
		f.broadcaster.EXPECT().PublishMessageEdited(gomock.Any(), chatID, gomock.Any())
		rec, env := f.do(t, http.MethodPut, path, map[string]string{"newMessage": "hello", "userId": alice.String()})
		require.Equal(t, http.StatusOK, rec.Code, env.Error)
		var edited map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &edited))
		require.Equal(t, "hello", edited["message"])
		require.Equal(t, true, edited["isEdited"])
		require.Len(t, edited["editHistory"], 1)

		f.clock = f.clock.Add(2 * time.Minute)
		rec, env = f.do(t, http.MethodPut, path, map[string]string{"newMessage": "hello!", "userId": alice.String()})
		require.Equal(t, http.StatusConflict, rec.Code)
		require.Equal(t, chatapp_errors.CodeWindowExpired, env.Code)
	})

	t.Run("should only let the sender edit", func(t *testing.T) {
		f := newAPIFixture(t)
		chatID, alice, bob := f.newChat(t)
		sent := f.sendText(t, chatID, alice, "mine")

		rec, env := f.do(t, http.MethodPut, "/messages/edit/"+sent["_id"].(string),
			map[string]string{"newMessage": "yours", "userId": bob.String()})

		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, chatapp_errors.CodeForbidden, env.Code)
	})

	t.Run("should soft delete once", func(t *testing.T) {
		f := newAPIFixture(t)
		chatID, alice, _ := f.newChat(t)
		sent := f.sendText(t, chatID, alice, "oops")
		id := sent["_id"].(string)

		f.broadcaster.EXPECT().PublishMessageDeleted(gomock.Any(), chatID, gomock.Any())
		rec, _ := f.do(t, http.MethodDelete, "/messages/delete/"+id, map[string]string{"userId": alice.String()})
		require.Equal(t, http.StatusOK, rec.Code)

		rec, env := f.do(t, http.MethodDelete, "/messages/delete/"+id, map[string]string{"userId": alice.String()})
		require.Equal(t, http.StatusConflict, rec.Code)
		require.Equal(t, chatapp_errors.CodeAlreadyDeleted, env.Code)

		_, env = f.do(t, http.MethodGet, "/messages/chat/"+chatID.String(), nil)
		require.JSONEq(t, "[]", string(env.Data))

		rec, env = f.do(t, http.MethodGet, "/messages/"+id, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var got map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &got))
		require.Equal(t, true, got["isDeleted"])
		require.NotContains(t, got, "message")
	})

	t.Run("should store a multipart attachment", func(t *testing.T) {
		f := newAPIFixture(t)
		chatID, alice, _ := f.newChat(t)

		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		require.NoError(t, w.WriteField("chatId", chatID.String()))
		require.NoError(t, w.WriteField("senderId", alice.String()))
		require.NoError(t, w.WriteField("senderName", "Alice"))
		part, err := w.CreateFormFile("file", "note.txt")
		require.NoError(t, err)
		_, err = part.Write([]byte("attached"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/messages/send", &body)
		req.Header.Set("Content-Type", w.FormDataContentType())
		f.broadcaster.EXPECT().PublishMessage(gomock.Any(), chatID, gomock.Any())

		rec, env := f.serve(t, req)

		require.Equal(t, http.StatusCreated, rec.Code, env.Error)
		var m map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &m))
		ref := m["attachmentRef"].(string)
		require.True(t, strings.HasPrefix(ref, "/uploads/attachments/"))
		content, err := os.ReadFile(filepath.Join(f.uploadDir, strings.TrimPrefix(ref, "/uploads/")))
		require.NoError(t, err)
		require.Equal(t, "attached", string(content))
	})

	t.Run("should reject an attachment over the size limit", func(t *testing.T) {
		f := newAPIFixture(t)
		chatID, alice, _ := f.newChat(t)

		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		require.NoError(t, w.WriteField("chatId", chatID.String()))
		require.NoError(t, w.WriteField("senderId", alice.String()))
		require.NoError(t, w.WriteField("senderName", "Alice"))
		part, err := w.CreateFormFile("file", "big.bin")
		require.NoError(t, err)
		_, err = part.Write(bytes.Repeat([]byte("x"), 2048))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/messages/send", &body)
		req.Header.Set("Content-Type", w.FormDataContentType())

		rec, env := f.serve(t, req)

		require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		require.Equal(t, chatapp_errors.CodeTooLarge, env.Code)
	})

	t.Run("should not keep an upload for a rejected message", func(t *testing.T) {
		f := newAPIFixture(t)
		chatID, alice, _ := f.newChat(t)

		for _, tc := range []struct {
			name       string
			chatID     uuid.UUID
			senderID   uuid.UUID
			senderName string
			status     int
			code       string
		}{
			{"unknown chat", uuid.New(), alice, "Alice", http.StatusNotFound, chatapp_errors.CodeNotFound},
			{"sender outside the chat", chatID, uuid.New(), "Mallory", http.StatusForbidden, chatapp_errors.CodeForbidden},
			{"blank sender name", chatID, alice, "   ", http.StatusBadRequest, chatapp_errors.CodeInvalidInput},
		} {
			t.Run(tc.name, func(t *testing.T) {
				// Given
				req := multipartSend(t, tc.chatID, tc.senderID, tc.senderName, "note.txt", []byte("attached"))

				// When
				rec, env := f.serve(t, req)

				// Then
				require.Equal(t, tc.status, rec.Code, env.Error)
				require.Equal(t, tc.code, env.Code)
				require.Zero(t, countFiles(t, f.uploadDir))
			})
		}
	})
}

func multipartSend(t *testing.T, chatID, senderID uuid.UUID, senderName, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("chatId", chatID.String()))
	require.NoError(t, w.WriteField("senderId", senderID.String()))
	require.NoError(t, w.WriteField("senderName", senderName))
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/messages/send", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

package yawebhook_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/YaCodeDev/GoYaBotKit/yabot"
	"github.com/YaCodeDev/GoYaBotKit/yalogger"
	"github.com/YaCodeDev/GoYaBotKit/yawebhook"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rawMessage = `{
	"update_id": 10,
	"message": {
		"message_id": 3,
		"date": 1700000000,
		"from": {"id": 7, "is_bot": false, "first_name": "Ya"},
		"chat": {"id": -42, "type": "supergroup"},
		"text": "/start"
	}
}`

type recordingBot struct {
	mu    sync.Mutex
	calls []yabot.Method
}

func (*recordingBot) ID() int64 { return 1 }

func (b *recordingBot) Call(_ context.Context, method yabot.Method) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = append(b.calls, method)

	return true, nil
}

func (b *recordingBot) Calls() []yabot.Method {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]yabot.Method(nil), b.calls...)
}

func setup(t *testing.T, options yawebhook.Options, handler yabot.HandlerFunc) (*gin.Engine, *yawebhook.Handler, *recordingBot, *test.Hook) {
	t.Helper()

	logger, hook := test.NewNullLogger()
	options.Logger = yalogger.NewLogrusLogger(logger)

	dp := yabot.NewDispatcher(yabot.Options{Logger: options.Logger})
	dp.Message.Register(handler)

	bot := &recordingBot{}
	webhook := yawebhook.NewHandler(dp, bot, options)

	gin.SetMode(gin.TestMode)

	engine := gin.New()
	webhook.Register(engine, "/webhook")

	return engine, webhook, bot, hook
}

func deliver(engine *gin.Engine, body string, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	if token != "" {
		req.Header.Set(yawebhook.SecretTokenHeader, token)
	}

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return body
}

func TestHandler_ReplyWithMethod(t *testing.T) {
	engine, _, bot, _ := setup(t, yawebhook.Options{SecretToken: "secret"},
		func(_ context.Context, event any, _ *yabot.Context) (any, error) {
			message := event.(*yabot.Message)

			return &yabot.SendMessage{ChatID: message.Chat.ID, Text: "hello"}, nil
		})

	rec := deliver(engine, rawMessage, "secret")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{
		"method":  "sendMessage",
		"chat_id": float64(-42),
		"text":    "hello",
	}, decode(t, rec))
	assert.Empty(t, bot.Calls())
}

func TestHandler_PlainResult(t *testing.T) {
	engine, _, _, _ := setup(t, yawebhook.Options{}, func(context.Context, any, *yabot.Context) (any, error) {
		return true, nil
	})

	rec := deliver(engine, rawMessage, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec))
}

func TestHandler_SecretToken(t *testing.T) {
	called := false

	engine, _, _, _ := setup(t, yawebhook.Options{SecretToken: "secret"},
		func(context.Context, any, *yabot.Context) (any, error) {
			called = true

			return true, nil
		})

	for _, token := range []string{"", "wrong"} {
		rec := deliver(engine, rawMessage, token)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, "token %q", token)
	}

	assert.False(t, called)
}

func TestHandler_InvalidBody(t *testing.T) {
	engine, _, _, hook := setup(t, yawebhook.Options{}, func(context.Context, any, *yabot.Context) (any, error) {
		return true, nil
	})

	for _, body := range []string{"", "{broken", "[1, 2]"} {
		rec := deliver(engine, body, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}

	require.NotEmpty(t, hook.AllEntries())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestHandler_HandlerErrorIsAcknowledged(t *testing.T) {
	engine, _, _, hook := setup(t, yawebhook.Options{}, func(context.Context, any, *yabot.Context) (any, error) {
		return nil, errors.New("boom")
	})

	rec := deliver(engine, rawMessage, "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var logged bool

	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel && strings.Contains(entry.Message, "[WEBHOOK]") {
			logged = true
		}
	}

	assert.True(t, logged)
}

func TestHandler_Background(t *testing.T) {
	engine, webhook, bot, _ := setup(t, yawebhook.Options{Background: true},
		func(_ context.Context, _ any, data *yabot.Context) (any, error) {
			request, ok := yabot.Value[*http.Request](data, yawebhook.KeyRequest)
			if !ok || request == nil {
				return nil, errors.New("request is missing")
			}

			return &yabot.SendMessage{ChatID: -42, Text: "later"}, nil
		})

	rec := deliver(engine, rawMessage, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec))

	webhook.Wait()

	calls := bot.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, &yabot.SendMessage{ChatID: -42, Text: "later"}, calls[0])
}

func TestMethodPayload(t *testing.T) {
	payload, err := yawebhook.MethodPayload(&yabot.AnswerCallbackQuery{CallbackQueryID: "q1", ShowAlert: true})
	require.Nil(t, err)

	assert.Equal(t, map[string]any{
		"method":            "answerCallbackQuery",
		"callback_query_id": "q1",
		"show_alert":        true,
	}, payload)
}

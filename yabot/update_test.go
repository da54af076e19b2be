package yabot_test

import (
	"testing"

	"github.com/YaCodeDev/GoYaBotKit/yabot"
	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUpdate(t *testing.T) {
	t.Run("[Message] decodes the slot", func(t *testing.T) {
		update, err := yabot.ParseUpdate([]byte(rawMessage))
		require.Nil(t, err)

		kind, event := update.Event()

		assert.Equal(t, yabot.KindMessage, kind)
		assert.Equal(t, int64(10), update.UpdateID)

		message, ok := event.(*yabot.Message)
		require.True(t, ok)

		assert.Equal(t, "/start", message.Text)
		assert.Equal(t, "uk", message.From.LanguageCode)
		assert.Equal(t, yabot.ChatTypeSupergroup, message.Chat.Type)
	})

	t.Run("[Unknown] fields are ignored", func(t *testing.T) {
		update, err := yabot.ParseUpdate([]byte(`{"update_id": 3, "business_message": {"text": "x"}}`))
		require.Nil(t, err)

		kind, event := update.Event()

		assert.Empty(t, kind)
		assert.Nil(t, event)
	})

	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `update`},
		{name: "array", raw: `[{"update_id": 1}]`},
		{name: "wrong type", raw: `{"update_id": "one"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := yabot.ParseUpdate([]byte(tt.raw))
			require.NotNil(t, err)

			assert.ErrorIs(t, err, yabot.ErrInvalidUpdate)
			assert.Equal(t, 400, yaerrors.CodeOf(err))
		})
	}
}

func TestPeekUpdate(t *testing.T) {
	assert.Equal(t, yabot.KindMessage, yabot.PeekEventKind([]byte(rawMessage)))
	assert.Equal(t, int64(10), yabot.PeekUpdateID([]byte(rawMessage)))
	assert.Equal(
		t,
		yabot.KindCallbackQuery,
		yabot.PeekEventKind([]byte(`{"update_id": 1, "extra": {}, "callback_query": {"id": "q"}}`)),
	)
	assert.Empty(t, yabot.PeekEventKind([]byte(`{"update_id": 1}`)))
	assert.Empty(t, yabot.PeekEventKind([]byte(`nope`)))
	assert.Zero(t, yabot.PeekUpdateID([]byte(`{}`)))
}

func TestResolveEventContext(t *testing.T) {
	user := yabot.User{ID: 7}
	chat := yabot.Chat{ID: -42, Type: yabot.ChatTypeGroup}

	tests := []struct {
		name   string
		kind   yabot.EventKind
		event  any
		chatID int64
		userID int64
		ok     bool
	}{
		{
			name:   "message",
			kind:   yabot.KindMessage,
			event:  &yabot.Message{Chat: chat, From: &user},
			chatID: -42, userID: 7, ok: true,
		},
		{
			name:   "channel post without author",
			kind:   yabot.KindChannelPost,
			event:  &yabot.Message{Chat: chat},
			chatID: -42, userID: 0, ok: false,
		},
		{
			name:   "callback with message",
			kind:   yabot.KindCallbackQuery,
			event:  &yabot.CallbackQuery{From: user, Message: &yabot.Message{Chat: chat}},
			chatID: -42, userID: 7, ok: true,
		},
		{
			name:   "inline callback",
			kind:   yabot.KindCallbackQuery,
			event:  &yabot.CallbackQuery{From: user, InlineMessageID: "m"},
			chatID: 7, userID: 7, ok: true,
		},
		{
			name:   "inline query",
			kind:   yabot.KindInlineQuery,
			event:  &yabot.InlineQuery{From: user},
			chatID: 7, userID: 7, ok: true,
		},
		{
			name:   "pre checkout",
			kind:   yabot.KindPreCheckoutQuery,
			event:  &yabot.PreCheckoutQuery{From: user},
			chatID: 7, userID: 7, ok: true,
		},
		{
			name:   "poll",
			kind:   yabot.KindPoll,
			event:  &yabot.Poll{ID: "p"},
			chatID: 0, userID: 0, ok: false,
		},
		{
			name:   "poll answer",
			kind:   yabot.KindPollAnswer,
			event:  &yabot.PollAnswer{User: &user},
			chatID: 7, userID: 7, ok: true,
		},
		{
			name:   "chat member",
			kind:   yabot.KindChatMember,
			event:  &yabot.ChatMemberUpdated{Chat: chat, From: user},
			chatID: -42, userID: 7, ok: true,
		},
		{
			name:   "join request",
			kind:   yabot.KindChatJoinRequest,
			event:  &yabot.ChatJoinRequest{Chat: chat, From: user},
			chatID: -42, userID: 7, ok: true,
		},
		{
			name:   "anonymous reaction",
			kind:   yabot.KindMessageReaction,
			event:  &yabot.MessageReactionUpdated{Chat: chat},
			chatID: -42, userID: 0, ok: false,
		},
		{
			name:  "mismatched event",
			kind:  yabot.KindMessage,
			event: &yabot.Poll{ID: "p"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved := yabot.ResolveEventContext(tt.kind, tt.event)

			assert.Equal(t, tt.chatID, resolved.ChatID())
			assert.Equal(t, tt.userID, resolved.UserID())
			assert.Equal(t, tt.ok, resolved.HasIdentity())
		})
	}
}

package yabot

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
	"github.com/tidwall/gjson"
)

// EventKind names one slot of an Update or a synthetic event.
type EventKind string

const (
	KindMessage            EventKind = "message"
	KindEditedMessage      EventKind = "edited_message"
	KindChannelPost        EventKind = "channel_post"
	KindEditedChannelPost  EventKind = "edited_channel_post"
	KindCallbackQuery      EventKind = "callback_query"
	KindInlineQuery        EventKind = "inline_query"
	KindChosenInlineResult EventKind = "chosen_inline_result"
	KindShippingQuery      EventKind = "shipping_query"
	KindPreCheckoutQuery   EventKind = "pre_checkout_query"
	KindPoll               EventKind = "poll"
	KindPollAnswer         EventKind = "poll_answer"
	KindMyChatMember       EventKind = "my_chat_member"
	KindChatMember         EventKind = "chat_member"
	KindChatJoinRequest    EventKind = "chat_join_request"
	KindMessageReaction    EventKind = "message_reaction"

	// KindUpdate is the envelope itself.
	KindUpdate EventKind = "update"
	// KindError carries an *ErrorEvent.
	KindError EventKind = "error"
)

// EventKinds lists the envelope slots in resolution order.
func EventKinds() []EventKind {
	return []EventKind{
		KindMessage,
		KindEditedMessage,
		KindChannelPost,
		KindEditedChannelPost,
		KindCallbackQuery,
		KindInlineQuery,
		KindChosenInlineResult,
		KindShippingQuery,
		KindPreCheckoutQuery,
		KindPoll,
		KindPollAnswer,
		KindMyChatMember,
		KindChatMember,
		KindChatJoinRequest,
		KindMessageReaction,
	}
}

type User struct {
	ID           int64  `json:"id"`
	IsBot        bool   `json:"is_bot"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// Chat types.
const (
	ChatTypePrivate    = "private"
	ChatTypeGroup      = "group"
	ChatTypeSupergroup = "supergroup"
	ChatTypeChannel    = "channel"
)

type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
}

type Message struct {
	MessageID       int64    `json:"message_id"`
	MessageThreadID int64    `json:"message_thread_id,omitempty"`
	From            *User    `json:"from,omitempty"`
	SenderChat      *Chat    `json:"sender_chat,omitempty"`
	Chat            Chat     `json:"chat"`
	Date            int64    `json:"date"`
	Text            string   `json:"text,omitempty"`
	Caption         string   `json:"caption,omitempty"`
	ReplyToMessage  *Message `json:"reply_to_message,omitempty"`
}

// Content returns the text or, for media, the caption.
func (m *Message) Content() string {
	if m.Text != "" {
		return m.Text
	}

	return m.Caption
}

// Answer builds a reply into the same chat.
func (m *Message) Answer(text string) *SendMessage {
	return &SendMessage{
		ChatID:          m.Chat.ID,
		MessageThreadID: m.MessageThreadID,
		Text:            text,
	}
}

// Reply builds a reply quoting the message.
func (m *Message) Reply(text string) *SendMessage {
	method := m.Answer(text)
	method.ReplyToMessageID = m.MessageID

	return method
}

type CallbackQuery struct {
	ID              string   `json:"id"`
	From            User     `json:"from"`
	Message         *Message `json:"message,omitempty"`
	InlineMessageID string   `json:"inline_message_id,omitempty"`
	ChatInstance    string   `json:"chat_instance"`
	Data            string   `json:"data,omitempty"`
}

// Answer builds an answerCallbackQuery call.
func (c *CallbackQuery) Answer(text string) *AnswerCallbackQuery {
	return &AnswerCallbackQuery{
		CallbackQueryID: c.ID,
		Text:            text,
	}
}

type InlineQuery struct {
	ID       string `json:"id"`
	From     User   `json:"from"`
	Query    string `json:"query"`
	Offset   string `json:"offset"`
	ChatType string `json:"chat_type,omitempty"`
}

type ChosenInlineResult struct {
	ResultID        string `json:"result_id"`
	From            User   `json:"from"`
	Query           string `json:"query"`
	InlineMessageID string `json:"inline_message_id,omitempty"`
}

type ShippingQuery struct {
	ID             string `json:"id"`
	From           User   `json:"from"`
	InvoicePayload string `json:"invoice_payload"`
}

type PreCheckoutQuery struct {
	ID             string `json:"id"`
	From           User   `json:"from"`
	Currency       string `json:"currency"`
	TotalAmount    int64  `json:"total_amount"`
	InvoicePayload string `json:"invoice_payload"`
}

type PollOption struct {
	Text       string `json:"text"`
	VoterCount int64  `json:"voter_count"`
}

type Poll struct {
	ID       string       `json:"id"`
	Question string       `json:"question"`
	Options  []PollOption `json:"options"`
	IsClosed bool         `json:"is_closed"`
}

type PollAnswer struct {
	PollID    string  `json:"poll_id"`
	VoterChat *Chat   `json:"voter_chat,omitempty"`
	User      *User   `json:"user,omitempty"`
	OptionIDs []int64 `json:"option_ids"`
}

type ChatMember struct {
	Status string `json:"status"`
	User   User   `json:"user"`
}

type ChatMemberUpdated struct {
	Chat          Chat       `json:"chat"`
	From          User       `json:"from"`
	Date          int64      `json:"date"`
	OldChatMember ChatMember `json:"old_chat_member"`
	NewChatMember ChatMember `json:"new_chat_member"`
}

type ChatJoinRequest struct {
	Chat       Chat   `json:"chat"`
	From       User   `json:"from"`
	UserChatID int64  `json:"user_chat_id"`
	Date       int64  `json:"date"`
	Bio        string `json:"bio,omitempty"`
}

type MessageReactionUpdated struct {
	Chat      Chat  `json:"chat"`
	MessageID int64 `json:"message_id"`
	User      *User `json:"user,omitempty"`
	ActorChat *Chat `json:"actor_chat,omitempty"`
	Date      int64 `json:"date"`
}

// Update is the envelope delivered by the platform. At most one slot is set.
type Update struct {
	UpdateID           int64                   `json:"update_id"`
	Message            *Message                `json:"message,omitempty"`
	EditedMessage      *Message                `json:"edited_message,omitempty"`
	ChannelPost        *Message                `json:"channel_post,omitempty"`
	EditedChannelPost  *Message                `json:"edited_channel_post,omitempty"`
	CallbackQuery      *CallbackQuery          `json:"callback_query,omitempty"`
	InlineQuery        *InlineQuery            `json:"inline_query,omitempty"`
	ChosenInlineResult *ChosenInlineResult     `json:"chosen_inline_result,omitempty"`
	ShippingQuery      *ShippingQuery          `json:"shipping_query,omitempty"`
	PreCheckoutQuery   *PreCheckoutQuery       `json:"pre_checkout_query,omitempty"`
	Poll               *Poll                   `json:"poll,omitempty"`
	PollAnswer         *PollAnswer             `json:"poll_answer,omitempty"`
	MyChatMember       *ChatMemberUpdated      `json:"my_chat_member,omitempty"`
	ChatMember         *ChatMemberUpdated      `json:"chat_member,omitempty"`
	ChatJoinRequest    *ChatJoinRequest        `json:"chat_join_request,omitempty"`
	MessageReaction    *MessageReactionUpdated `json:"message_reaction,omitempty"`
}

// Event returns the first populated slot, or ("", nil) for an empty envelope.
//
// Example:
//
//	kind, event := update.Event()
//	if kind == yabot.KindMessage {
//	    message := event.(*yabot.Message)
//	}
func (u *Update) Event() (EventKind, any) {
	if u == nil {
		return "", nil
	}

	switch {
	case u.Message != nil:
		return KindMessage, u.Message
	case u.EditedMessage != nil:
		return KindEditedMessage, u.EditedMessage
	case u.ChannelPost != nil:
		return KindChannelPost, u.ChannelPost
	case u.EditedChannelPost != nil:
		return KindEditedChannelPost, u.EditedChannelPost
	case u.CallbackQuery != nil:
		return KindCallbackQuery, u.CallbackQuery
	case u.InlineQuery != nil:
		return KindInlineQuery, u.InlineQuery
	case u.ChosenInlineResult != nil:
		return KindChosenInlineResult, u.ChosenInlineResult
	case u.ShippingQuery != nil:
		return KindShippingQuery, u.ShippingQuery
	case u.PreCheckoutQuery != nil:
		return KindPreCheckoutQuery, u.PreCheckoutQuery
	case u.Poll != nil:
		return KindPoll, u.Poll
	case u.PollAnswer != nil:
		return KindPollAnswer, u.PollAnswer
	case u.MyChatMember != nil:
		return KindMyChatMember, u.MyChatMember
	case u.ChatMember != nil:
		return KindChatMember, u.ChatMember
	case u.ChatJoinRequest != nil:
		return KindChatJoinRequest, u.ChatJoinRequest
	case u.MessageReaction != nil:
		return KindMessageReaction, u.MessageReaction
	default:
		return "", nil
	}
}

// ParseUpdate validates raw as a JSON object and decodes it.
//
// Example:
//
//	update, err := yabot.ParseUpdate([]byte(`{"update_id":1,"message":{...}}`))
func ParseUpdate(raw []byte) (*Update, yaerrors.Error) {
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		return nil, yaerrors.FromError(
			http.StatusBadRequest,
			ErrInvalidUpdate,
			"[UPDATE] payload is not a json object",
		)
	}

	var update Update

	if err := json.Unmarshal(raw, &update); err != nil {
		return nil, yaerrors.FromError(
			http.StatusBadRequest,
			fmt.Errorf("%w: %w", ErrInvalidUpdate, err),
			"[UPDATE] failed to decode update",
		)
	}

	return &update, nil
}

// PeekEventKind returns the kind of the first known slot present in raw
// without decoding the whole payload.
func PeekEventKind(raw []byte) EventKind {
	if !gjson.ValidBytes(raw) {
		return ""
	}

	known := make(map[string]struct{}, len(EventKinds()))

	for _, kind := range EventKinds() {
		known[string(kind)] = struct{}{}
	}

	var kind EventKind

	gjson.ParseBytes(raw).ForEach(func(key, value gjson.Result) bool {
		if _, ok := known[key.String()]; ok && value.IsObject() {
			kind = EventKind(key.String())

			return false
		}

		return true
	})

	return kind
}

// PeekUpdateID reads update_id from raw, 0 when absent.
func PeekUpdateID(raw []byte) int64 {
	return gjson.GetBytes(raw, "update_id").Int()
}

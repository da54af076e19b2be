package yabot

import (
	"context"
	"fmt"
)

// Bot is the outbound transport consumed by the dispatcher.
type Bot interface {
	ID() int64
	Call(ctx context.Context, method Method) (any, error)
}

// Method is one platform API call.
type Method interface {
	MethodName() string
}

// Parse modes.
const (
	ParseModeHTML     = "HTML"
	ParseModeMarkdown = "MarkdownV2"
)

type SendMessage struct {
	ChatID           int64  `json:"chat_id"`
	MessageThreadID  int64  `json:"message_thread_id,omitempty"`
	Text             string `json:"text"`
	ParseMode        string `json:"parse_mode,omitempty"`
	ReplyToMessageID int64  `json:"reply_to_message_id,omitempty"`
	ReplyMarkup      any    `json:"reply_markup,omitempty"`
}

func (*SendMessage) MethodName() string {
	return "sendMessage"
}

type AnswerCallbackQuery struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
	ShowAlert       bool   `json:"show_alert,omitempty"`
	URL             string `json:"url,omitempty"`
}

func (*AnswerCallbackQuery) MethodName() string {
	return "answerCallbackQuery"
}

// APIError is returned by Bot.Call when the platform rejects a call.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed with %d: %s", e.Method, e.Code, e.Description)
}

package yabot_test

import (
	"context"

	"github.com/YaCodeDev/GoYaBotKit/yabot"
)

type fakeBot struct {
	id int64
}

func (b fakeBot) ID() int64 {
	return b.id
}

func (fakeBot) Call(context.Context, yabot.Method) (any, error) {
	return true, nil
}

func newMessage(chatID, userID int64, text string) *yabot.Message {
	return &yabot.Message{
		MessageID: 1,
		From:      &yabot.User{ID: userID, FirstName: "Ya"},
		Chat:      yabot.Chat{ID: chatID, Type: yabot.ChatTypeGroup},
		Text:      text,
	}
}

func messageUpdate(chatID, userID int64, text string) *yabot.Update {
	return &yabot.Update{UpdateID: 1, Message: newMessage(chatID, userID, text)}
}

func reply(value any) yabot.HandlerFunc {
	return func(context.Context, any, *yabot.Context) (any, error) {
		return value, nil
	}
}

func inject(key string, value any) yabot.Filter {
	return yabot.FilterFunc(func(context.Context, any, *yabot.Context) (yabot.Outcome, error) {
		return yabot.Matched(map[string]any{key: value}), nil
	})
}

package yabot

// EventContext is the conversation identity resolved from an event.
type EventContext struct {
	Chat *Chat
	User *User
}

// ChatID returns the chat id, falling back to the user id.
func (e EventContext) ChatID() int64 {
	switch {
	case e.Chat != nil:
		return e.Chat.ID
	case e.User != nil:
		return e.User.ID
	default:
		return 0
	}
}

func (e EventContext) UserID() int64 {
	if e.User == nil {
		return 0
	}

	return e.User.ID
}

// HasIdentity reports whether the event can be bound to an FSM key.
func (e EventContext) HasIdentity() bool {
	return e.User != nil
}

// ResolveEventContext extracts chat and user from event. Kinds without a
// natural chat (inline queries, payments) only carry the user, polls carry
// neither.
func ResolveEventContext(kind EventKind, event any) EventContext {
	switch kind {
	case KindMessage, KindEditedMessage, KindChannelPost, KindEditedChannelPost:
		if message, ok := event.(*Message); ok && message != nil {
			return EventContext{Chat: &message.Chat, User: message.From}
		}
	case KindCallbackQuery:
		if query, ok := event.(*CallbackQuery); ok && query != nil {
			resolved := EventContext{User: &query.From}
			if query.Message != nil {
				resolved.Chat = &query.Message.Chat
			}

			return resolved
		}
	case KindInlineQuery:
		if query, ok := event.(*InlineQuery); ok && query != nil {
			return EventContext{User: &query.From}
		}
	case KindChosenInlineResult:
		if result, ok := event.(*ChosenInlineResult); ok && result != nil {
			return EventContext{User: &result.From}
		}
	case KindShippingQuery:
		if query, ok := event.(*ShippingQuery); ok && query != nil {
			return EventContext{User: &query.From}
		}
	case KindPreCheckoutQuery:
		if query, ok := event.(*PreCheckoutQuery); ok && query != nil {
			return EventContext{User: &query.From}
		}
	case KindPollAnswer:
		if answer, ok := event.(*PollAnswer); ok && answer != nil {
			return EventContext{Chat: answer.VoterChat, User: answer.User}
		}
	case KindMyChatMember, KindChatMember:
		if updated, ok := event.(*ChatMemberUpdated); ok && updated != nil {
			return EventContext{Chat: &updated.Chat, User: &updated.From}
		}
	case KindChatJoinRequest:
		if request, ok := event.(*ChatJoinRequest); ok && request != nil {
			return EventContext{Chat: &request.Chat, User: &request.From}
		}
	case KindMessageReaction:
		if reaction, ok := event.(*MessageReactionUpdated); ok && reaction != nil {
			return EventContext{Chat: &reaction.Chat, User: reaction.User}
		}
	}

	return EventContext{}
}

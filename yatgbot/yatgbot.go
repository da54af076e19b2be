// Package yatgbot feeds MTProto updates received through gotd into a yabot
// dispatcher.
//
// Example usage:
//
//	updateDispatcher := tg.NewUpdateDispatcher()
//
//	bridge := yatgbot.NewBridge(dp, bot, self.ID)
//	bridge.Bind(&updateDispatcher)
//
//	client := telegram.NewClient(appID, appHash, telegram.Options{UpdateHandler: updateDispatcher})
package yatgbot

import (
	"context"
	"strconv"
	"sync/atomic"

	"github.com/YaCodeDev/GoYaBotKit/yabot"
	"github.com/YaCodeDev/GoYaBotKit/yalogger"
	"github.com/gotd/td/tg"
)

// Context keys set for every bridged update.
const (
	KeyEntities  = "tg_entities"
	KeyRawUpdate = "tg_update"
	KeyInputPeer = "tg_input_peer"
)

// Bridge converts gotd updates into yabot updates.
type Bridge struct {
	dp       *yabot.Dispatcher
	bot      yabot.Bot
	selfID   int64
	log      yalogger.Logger
	sequence atomic.Int64
}

// NewBridge returns a bridge feeding dp. Messages sent by selfID are ignored.
func NewBridge(dp *yabot.Dispatcher, bot yabot.Bot, selfID int64) *Bridge {
	return &Bridge{
		dp:     dp,
		bot:    bot,
		selfID: selfID,
		log:    yalogger.NewLogger(),
	}
}

// WithLogger replaces the bridge logger.
func (b *Bridge) WithLogger(log yalogger.Logger) *Bridge {
	b.log = log

	return b
}

// Bind registers the bridge on tgDispatcher. Call it once during setup.
func (b *Bridge) Bind(tgDispatcher *tg.UpdateDispatcher) {
	tgDispatcher.OnNewMessage(func(ctx context.Context, ents tg.Entities, upd *tg.UpdateNewMessage) error {
		return b.Handle(ctx, ents, upd)
	})
	tgDispatcher.OnEditMessage(func(ctx context.Context, ents tg.Entities, upd *tg.UpdateEditMessage) error {
		return b.Handle(ctx, ents, upd)
	})
	tgDispatcher.OnNewChannelMessage(func(ctx context.Context, ents tg.Entities, upd *tg.UpdateNewChannelMessage) error {
		return b.Handle(ctx, ents, upd)
	})
	tgDispatcher.OnEditChannelMessage(func(ctx context.Context, ents tg.Entities, upd *tg.UpdateEditChannelMessage) error {
		return b.Handle(ctx, ents, upd)
	})
	tgDispatcher.OnBotCallbackQuery(func(ctx context.Context, ents tg.Entities, upd *tg.UpdateBotCallbackQuery) error {
		return b.Handle(ctx, ents, upd)
	})
	tgDispatcher.OnBotInlineQuery(func(ctx context.Context, ents tg.Entities, upd *tg.UpdateBotInlineQuery) error {
		return b.Handle(ctx, ents, upd)
	})
	tgDispatcher.OnBotPrecheckoutQuery(func(ctx context.Context, ents tg.Entities, upd *tg.UpdateBotPrecheckoutQuery) error {
		return b.Handle(ctx, ents, upd)
	})
	tgDispatcher.OnChannelParticipant(func(ctx context.Context, ents tg.Entities, upd *tg.UpdateChannelParticipant) error {
		return b.Handle(ctx, ents, upd)
	})
}

// Handle converts upd and feeds it. A Method result is sent through the bot.
// Unsupported updates and the bot's own messages are skipped.
func (b *Bridge) Handle(ctx context.Context, ents tg.Entities, upd tg.UpdateClass) error {
	update, peer, ok := b.Convert(ents, upd)
	if !ok {
		b.log.Tracef("[BRIDGE] skipping %T", upd)

		return nil
	}

	extra := map[string]any{
		KeyEntities:  ents,
		KeyRawUpdate: upd,
	}

	if input, ok := InputPeer(peer, ents); ok {
		extra[KeyInputPeer] = input
	}

	result, err := b.dp.FeedUpdate(ctx, b.bot, update, extra)
	if err != nil {
		return err
	}

	if method, ok := result.(yabot.Method); ok {
		if _, err := b.bot.Call(ctx, method); err != nil {
			b.log.Errorf("[BRIDGE] failed to call %s: %v", method.MethodName(), err)

			return err
		}
	}

	return nil
}

// Convert builds the yabot update for upd together with the peer it came from.
func (b *Bridge) Convert(ents tg.Entities, upd tg.UpdateClass) (*yabot.Update, tg.PeerClass, bool) {
	update := &yabot.Update{UpdateID: b.sequence.Add(1)}

	switch u := upd.(type) {
	case *tg.UpdateNewMessage:
		return b.fillMessage(update, ents, u.Message, false)
	case *tg.UpdateEditMessage:
		return b.fillMessage(update, ents, u.Message, true)
	case *tg.UpdateNewChannelMessage:
		return b.fillMessage(update, ents, u.Message, false)
	case *tg.UpdateEditChannelMessage:
		return b.fillMessage(update, ents, u.Message, true)
	case *tg.UpdateBotCallbackQuery:
		query := &yabot.CallbackQuery{
			ID:           strconv.FormatInt(u.QueryID, 10),
			From:         convertUser(u.UserID, ents),
			ChatInstance: strconv.FormatInt(u.ChatInstance, 10),
			Data:         string(u.Data),
		}

		if chat, ok := convertChat(u.Peer, ents); ok {
			query.Message = &yabot.Message{MessageID: int64(u.MsgID), Chat: chat}
		}

		update.CallbackQuery = query

		return update, u.Peer, true
	case *tg.UpdateBotInlineQuery:
		update.InlineQuery = &yabot.InlineQuery{
			ID:     strconv.FormatInt(u.QueryID, 10),
			From:   convertUser(u.UserID, ents),
			Query:  u.Query,
			Offset: u.Offset,
		}

		return update, &tg.PeerUser{UserID: u.UserID}, true
	case *tg.UpdateBotPrecheckoutQuery:
		update.PreCheckoutQuery = &yabot.PreCheckoutQuery{
			ID:             strconv.FormatInt(u.QueryID, 10),
			From:           convertUser(u.UserID, ents),
			Currency:       u.Currency,
			TotalAmount:    u.TotalAmount,
			InvoicePayload: string(u.Payload),
		}

		return update, &tg.PeerUser{UserID: u.UserID}, true
	case *tg.UpdateChannelParticipant:
		peer := &tg.PeerChannel{ChannelID: u.ChannelID}
		chat, _ := convertChat(peer, ents)

		member := &yabot.ChatMemberUpdated{
			Chat:          chat,
			From:          convertUser(u.ActorID, ents),
			Date:          int64(u.Date),
			OldChatMember: convertParticipant(u.PrevParticipant, u.UserID, ents),
			NewChatMember: convertParticipant(u.NewParticipant, u.UserID, ents),
		}

		if u.ActorID == 0 {
			member.From = convertUser(u.UserID, ents)
		}

		if u.UserID == b.selfID {
			update.MyChatMember = member
		} else {
			update.ChatMember = member
		}

		return update, peer, true
	default:
		return nil, nil, false
	}
}

func (b *Bridge) fillMessage(
	update *yabot.Update,
	ents tg.Entities,
	raw tg.MessageClass,
	edited bool,
) (*yabot.Update, tg.PeerClass, bool) {
	msg, ok := raw.(*tg.Message)
	if !ok || b.isOwn(msg) {
		return nil, nil, false
	}

	message, ok := convertMessage(msg, ents)
	if !ok {
		return nil, nil, false
	}

	post := isBroadcast(msg.PeerID, ents)

	switch {
	case post && edited:
		update.EditedChannelPost = message
	case post:
		update.ChannelPost = message
	case edited:
		update.EditedMessage = message
	default:
		update.Message = message
	}

	return update, msg.PeerID, true
}

func (b *Bridge) isOwn(msg *tg.Message) bool {
	if msg.Out {
		return true
	}

	from, ok := msg.FromID.(*tg.PeerUser)

	return ok && from.UserID == b.selfID
}

func convertMessage(msg *tg.Message, ents tg.Entities) (*yabot.Message, bool) {
	chat, ok := convertChat(msg.PeerID, ents)
	if !ok {
		return nil, false
	}

	message := &yabot.Message{
		MessageID: int64(msg.ID),
		Chat:      chat,
		Date:      int64(msg.Date),
		Text:      msg.Message,
	}

	switch from := msg.FromID.(type) {
	case *tg.PeerUser:
		user := convertUser(from.UserID, ents)
		message.From = &user
	case *tg.PeerChannel, *tg.PeerChat:
		if sender, ok := convertChat(from, ents); ok {
			message.SenderChat = &sender
		}
	case nil:
		// Private chats omit the sender, the peer is the author.
		if peer, ok := msg.PeerID.(*tg.PeerUser); ok {
			user := convertUser(peer.UserID, ents)
			message.From = &user
		}
	}

	return message, true
}

// Chat member statuses.
const (
	StatusCreator       = "creator"
	StatusAdministrator = "administrator"
	StatusMember        = "member"
	StatusRestricted    = "restricted"
	StatusLeft          = "left"
	StatusKicked        = "kicked"
)

func convertParticipant(participant tg.ChannelParticipantClass, userID int64, ents tg.Entities) yabot.ChatMember {
	member := yabot.ChatMember{Status: StatusLeft, User: convertUser(userID, ents)}

	switch p := participant.(type) {
	case *tg.ChannelParticipantCreator:
		member.Status = StatusCreator
	case *tg.ChannelParticipantAdmin:
		member.Status = StatusAdministrator
	case *tg.ChannelParticipant, *tg.ChannelParticipantSelf:
		member.Status = StatusMember
	case *tg.ChannelParticipantBanned:
		member.Status = StatusRestricted

		if p.Left || p.BannedRights.ViewMessages {
			member.Status = StatusKicked
		}
	case *tg.ChannelParticipantLeft:
		member.Status = StatusLeft
	}

	return member
}

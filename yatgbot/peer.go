package yatgbot

import (
	"github.com/YaCodeDev/GoYaBotKit/yabot"
	"github.com/gotd/td/tg"
)

// channelIDShift turns an MTProto channel id into a Bot API chat id.
const channelIDShift int64 = 1_000_000_000_000

// ChatID returns the Bot API id of peer: users stay positive, basic groups
// are negated and channels are shifted below -10^12.
//
// Example:
//
//	yatgbot.ChatID(&tg.PeerChannel{ChannelID: 1234}) // -1000000001234
func ChatID(peer tg.PeerClass) (int64, bool) {
	switch v := peer.(type) {
	case *tg.PeerUser:
		return v.UserID, true
	case *tg.PeerChat:
		return -v.ChatID, true
	case *tg.PeerChannel:
		return -(channelIDShift + v.ChannelID), true
	default:
		return 0, false
	}
}

// ChannelChatID is ChatID for a bare channel id.
func ChannelChatID(channelID int64) int64 {
	id, _ := ChatID(&tg.PeerChannel{ChannelID: channelID})

	return id
}

// InputPeer converts peer into an input peer using the access hashes of ents.
func InputPeer(peer tg.PeerClass, ents tg.Entities) (tg.InputPeerClass, bool) {
	switch v := peer.(type) {
	case *tg.PeerUser:
		user, ok := ents.Users[v.UserID]
		if !ok {
			return nil, false
		}

		return &tg.InputPeerUser{UserID: v.UserID, AccessHash: user.AccessHash}, true
	case *tg.PeerChat:
		return &tg.InputPeerChat{ChatID: v.ChatID}, true
	case *tg.PeerChannel:
		channel, ok := ents.Channels[v.ChannelID]
		if !ok {
			return nil, false
		}

		return &tg.InputPeerChannel{ChannelID: v.ChannelID, AccessHash: channel.AccessHash}, true
	default:
		return nil, false
	}
}

// convertUser falls back to a bare id when ents does not carry the user.
func convertUser(userID int64, ents tg.Entities) yabot.User {
	user, ok := ents.Users[userID]
	if !ok {
		return yabot.User{ID: userID}
	}

	return yabot.User{
		ID:           user.ID,
		IsBot:        user.Bot,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Username:     user.Username,
		LanguageCode: user.LangCode,
	}
}

func convertChat(peer tg.PeerClass, ents tg.Entities) (yabot.Chat, bool) {
	id, ok := ChatID(peer)
	if !ok {
		return yabot.Chat{}, false
	}

	chat := yabot.Chat{ID: id}

	switch v := peer.(type) {
	case *tg.PeerUser:
		chat.Type = yabot.ChatTypePrivate

		if user, ok := ents.Users[v.UserID]; ok {
			chat.Username = user.Username
		}
	case *tg.PeerChat:
		chat.Type = yabot.ChatTypeGroup

		if group, ok := ents.Chats[v.ChatID]; ok {
			chat.Title = group.Title
		}
	case *tg.PeerChannel:
		chat.Type = yabot.ChatTypeSupergroup

		if channel, ok := ents.Channels[v.ChannelID]; ok {
			chat.Title = channel.Title
			chat.Username = channel.Username

			if channel.Broadcast {
				chat.Type = yabot.ChatTypeChannel
			}
		}
	}

	return chat, true
}

// isBroadcast reports whether peer is a broadcast channel known to ents.
func isBroadcast(peer tg.PeerClass, ents tg.Entities) bool {
	channel, ok := peer.(*tg.PeerChannel)
	if !ok {
		return false
	}

	entity, ok := ents.Channels[channel.ChannelID]

	return ok && entity.Broadcast
}

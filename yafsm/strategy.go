package yafsm

import (
	"fmt"
	"strings"
)

// Strategy maps a resolved (chat, user) pair onto the pair used as storage key.
type Strategy uint8

const (
	// StrategyUserInChat keeps the pair unchanged.
	StrategyUserInChat Strategy = iota
	// StrategyChat shares one state between all users of a chat.
	StrategyChat
	// StrategyGlobalUser shares one state between all chats of a user.
	StrategyGlobalUser
)

// Apply returns the effective (chat, user) pair.
//
// Example:
//
//	yafsm.StrategyChat.Apply(-42, 7)       // -42, -42
//	yafsm.StrategyGlobalUser.Apply(-42, 7) // 7, 7
func (s Strategy) Apply(chatID, userID int64) (int64, int64) {
	switch s {
	case StrategyChat:
		return chatID, chatID
	case StrategyGlobalUser:
		return userID, userID
	default:
		return chatID, userID
	}
}

// ApplyStrategy is Strategy.Apply in function form.
func ApplyStrategy(strategy Strategy, chatID, userID int64) (int64, int64) {
	return strategy.Apply(chatID, userID)
}

func (s Strategy) String() string {
	switch s {
	case StrategyUserInChat:
		return "user_in_chat"
	case StrategyChat:
		return "chat"
	case StrategyGlobalUser:
		return "global_user"
	default:
		return fmt.Sprintf("strategy(%d)", uint8(s))
	}
}

func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Strategy) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "user_in_chat":
		*s = StrategyUserInChat
	case "chat":
		*s = StrategyChat
	case "global_user":
		*s = StrategyGlobalUser
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, text)
	}

	return nil
}

package yafsm

import "fmt"

// DefaultDestiny is the destiny of the main conversation state.
const DefaultDestiny = "default"

// StorageKey identifies one conversation partition. It is comparable and can
// be used as a map key directly.
type StorageKey struct {
	BotID   int64
	ChatID  int64
	UserID  int64
	Destiny string
}

// NewStorageKey returns a key in the default destiny.
func NewStorageKey(botID, chatID, userID int64) StorageKey {
	return StorageKey{
		BotID:   botID,
		ChatID:  chatID,
		UserID:  userID,
		Destiny: DefaultDestiny,
	}
}

// WithDestiny returns a copy of the key in another destiny.
//
// Example:
//
//	historyKey := key.WithDestiny("scenes_history")
func (k StorageKey) WithDestiny(destiny string) StorageKey {
	k.Destiny = destiny

	return k
}

func (k StorageKey) String() string {
	destiny := k.Destiny
	if destiny == "" {
		destiny = DefaultDestiny
	}

	return fmt.Sprintf("%d:%d:%d:%s", k.BotID, k.ChatID, k.UserID, destiny)
}

func (k StorageKey) normalized() StorageKey {
	if k.Destiny == "" {
		k.Destiny = DefaultDestiny
	}

	return k
}

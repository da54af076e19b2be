package yabot

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"strings"

	"github.com/YaCodeDev/GoYaBotKit/yafsm"
)

// textOf extracts the matchable text of an event.
func textOf(event any) (string, bool) {
	switch typed := event.(type) {
	case *Message:
		return typed.Content(), typed.Content() != ""
	case *CallbackQuery:
		return typed.Data, typed.Data != ""
	case *InlineQuery:
		return typed.Query, true
	case *Poll:
		return typed.Question, true
	default:
		return "", false
	}
}

// TextEq matches events whose text equals text.
//
// Example:
//
//	router.Message.Register(onHello, yabot.TextEq("hello"))
func TextEq(text string) Filter {
	return TextIn(text)
}

// TextIn matches events whose text is one of values.
func TextIn(values ...string) Filter {
	return BoolFilter(func(event any, _ *Context) bool {
		text, ok := textOf(event)

		return ok && slices.Contains(values, text)
	})
}

// TextRegex matches events whose text matches re and injects the submatches
// under KeyMatch as []string.
//
// Example:
//
//	router.Message.Register(onOrder, yabot.TextRegex(regexp.MustCompile(`^order (\d+)$`)))
func TextRegex(re *regexp.Regexp) Filter {
	return FilterFunc(func(_ context.Context, event any, _ *Context) (Outcome, error) {
		text, ok := textOf(event)
		if !ok {
			return NotMatched(), nil
		}

		match := re.FindStringSubmatch(text)
		if match == nil {
			return NotMatched(), nil
		}

		return Matched(map[string]any{KeyMatch: match}), nil
	})
}

// CommandObject is a parsed bot command such as "/start@my_bot payload".
type CommandObject struct {
	Prefix  string
	Command string
	Mention string
	Args    string
}

// Text renders the command back.
func (c *CommandObject) Text() string {
	text := c.Prefix + c.Command

	if c.Mention != "" {
		text += "@" + c.Mention
	}

	if c.Args != "" {
		text += " " + c.Args
	}

	return text
}

// ParseCommand splits text into a CommandObject. It reports false when text
// does not start with one of prefixes.
func ParseCommand(text string, prefixes string) (*CommandObject, bool) {
	if text == "" || !strings.ContainsRune(prefixes, rune(text[0])) {
		return nil, false
	}

	head, args, _ := strings.Cut(text, " ")
	name, mention, _ := strings.Cut(head[1:], "@")

	if name == "" {
		return nil, false
	}

	return &CommandObject{
		Prefix:  head[:1],
		Command: name,
		Mention: mention,
		Args:    strings.TrimSpace(args),
	}, true
}

// CommandFilter matches message commands and injects KeyCommand.
type CommandFilter struct {
	Commands   []string
	Prefixes   string
	IgnoreCase bool
	// Mention, when set, rejects commands addressed to another bot.
	Mention string
}

// Command matches "/name" messages for any of commands. An empty list matches
// every command.
//
// Example:
//
//	router.Message.Register(onStart, yabot.Command("start"))
func Command(commands ...string) *CommandFilter {
	return &CommandFilter{
		Commands: commands,
		Prefixes: "/",
	}
}

func (f *CommandFilter) Check(_ context.Context, event any, _ *Context) (Outcome, error) {
	message, ok := event.(*Message)
	if !ok || message.Text == "" {
		return NotMatched(), nil
	}

	command, ok := ParseCommand(message.Text, f.Prefixes)
	if !ok {
		return NotMatched(), nil
	}

	if f.Mention != "" && command.Mention != "" && !strings.EqualFold(command.Mention, f.Mention) {
		return NotMatched(), nil
	}

	if len(f.Commands) > 0 && !slices.ContainsFunc(f.Commands, func(name string) bool {
		if f.IgnoreCase {
			return strings.EqualFold(name, command.Command)
		}

		return name == command.Command
	}) {
		return NotMatched(), nil
	}

	return Matched(map[string]any{KeyCommand: command}), nil
}

// CallbackEq matches callback queries carrying exactly data.
func CallbackEq(data string) Filter {
	return FilterFor(func(_ context.Context, query *CallbackQuery, _ *Context) (Outcome, error) {
		return Match(query.Data == data), nil
	})
}

// CallbackPrefix matches callback data starting with prefix and injects the
// rest under KeyCallbackSuffix.
//
// Example:
//
//	router.CallbackQuery.Register(onBuy, yabot.CallbackPrefix("buy:"))
func CallbackPrefix(prefix string) Filter {
	return FilterFor(func(_ context.Context, query *CallbackQuery, _ *Context) (Outcome, error) {
		suffix, ok := strings.CutPrefix(query.Data, prefix)
		if !ok {
			return NotMatched(), nil
		}

		return Matched(map[string]any{KeyCallbackSuffix: suffix}), nil
	})
}

// ChatTypeIs matches events whose resolved chat has one of types.
func ChatTypeIs(types ...string) Filter {
	return BoolFilter(func(_ any, data *Context) bool {
		chat, ok := Value[*Chat](data, KeyEventChat)

		return ok && chat != nil && slices.Contains(types, chat.Type)
	})
}

// FromUserIn matches events sent by one of ids.
func FromUserIn(ids ...int64) Filter {
	return BoolFilter(func(_ any, data *Context) bool {
		user, ok := Value[*User](data, KeyEventFromUser)

		return ok && user != nil && slices.Contains(ids, user.ID)
	})
}

// StateIs matches the current FSM state. A nil entry matches "no state" and
// yafsm.AnyState matches every state.
//
// Example:
//
//	router.Message.Register(onName, yabot.StateIs(form.State("name")))
//	router.Message.Register(onIdle, yabot.StateIs(nil))
func StateIs(states ...yafsm.State) Filter {
	return BoolFilter(func(_ any, data *Context) bool {
		raw, _ := Value[*string](data, KeyRawState)

		for _, state := range states {
			name := yafsm.StateOf(state)

			switch {
			case name == nil:
				if raw == nil {
					return true
				}
			case *name == string(yafsm.AnyState):
				return true
			case raw != nil && *raw == *name:
				return true
			}
		}

		return false
	})
}

// InStatesGroup matches any state of group.
func InStatesGroup(group *yafsm.StatesGroup) Filter {
	return BoolFilter(func(_ any, data *Context) bool {
		raw, _ := Value[*string](data, KeyRawState)

		return raw != nil && group.Contains(*raw)
	})
}

// ErrorIs matches error events whose error wraps target.
func ErrorIs(target error) Filter {
	return FilterFor(func(_ context.Context, event *ErrorEvent, _ *Context) (Outcome, error) {
		return Match(errors.Is(event.Err, target)), nil
	})
}

// ErrorContains matches error events whose message contains substr.
func ErrorContains(substr string) Filter {
	return FilterFor(func(_ context.Context, event *ErrorEvent, _ *Context) (Outcome, error) {
		return Match(event.Err != nil && strings.Contains(event.Err.Error(), substr)), nil
	})
}

// HasKey matches when every key is present in the context.
func HasKey(keys ...string) Filter {
	return BoolFilter(func(_ any, data *Context) bool {
		for _, key := range keys {
			if !data.Has(key) {
				return false
			}
		}

		return true
	})
}

// MagicData matches when predicate accepts the accumulated context.
//
// Example:
//
//	yabot.MagicData(func(data *yabot.Context) bool {
//	    locale, _ := yabot.Value[language.Tag](data, yabot.KeyLocale)
//	    return locale == language.Ukrainian
//	})
func MagicData(predicate func(data *Context) bool) Filter {
	return BoolFilter(func(_ any, data *Context) bool {
		return predicate(data)
	})
}

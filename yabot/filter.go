package yabot

import (
	"context"
	"maps"
)

// OutcomeKind is the result class of a filter.
type OutcomeKind uint8

const (
	// OutcomeNotMatched rejects the registration.
	OutcomeNotMatched OutcomeKind = iota
	// OutcomeMatched accepts the registration and may inject context.
	OutcomeMatched
	// OutcomeDeferred abandons the current observer; the search continues in
	// the next router.
	OutcomeDeferred
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeMatched:
		return "matched"
	case OutcomeDeferred:
		return "deferred"
	default:
		return "not_matched"
	}
}

// Outcome is what a filter decided.
type Outcome struct {
	kind   OutcomeKind
	values map[string]any
}

func NotMatched() Outcome {
	return Outcome{kind: OutcomeNotMatched}
}

// Matched accepts and merges values into the context seen by later filters
// and the handler.
func Matched(values map[string]any) Outcome {
	return Outcome{kind: OutcomeMatched, values: values}
}

func Deferred() Outcome {
	return Outcome{kind: OutcomeDeferred}
}

// Match converts a plain predicate result.
func Match(ok bool) Outcome {
	if ok {
		return Matched(nil)
	}

	return NotMatched()
}

func (o Outcome) Kind() OutcomeKind {
	return o.kind
}

func (o Outcome) IsMatched() bool {
	return o.kind == OutcomeMatched
}

func (o Outcome) IsDeferred() bool {
	return o.kind == OutcomeDeferred
}

// Values returns a copy of the injected entries.
func (o Outcome) Values() map[string]any {
	return maps.Clone(o.values)
}

// Filter decides whether a registration applies to event.
// An error is treated as a non-match of the one registration and logged.
type Filter interface {
	Check(ctx context.Context, event any, data *Context) (Outcome, error)
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(ctx context.Context, event any, data *Context) (Outcome, error)

func (f FilterFunc) Check(ctx context.Context, event any, data *Context) (Outcome, error) {
	return f(ctx, event, data)
}

// BoolFilter adapts a plain predicate to Filter.
//
// Example:
//
//	isAdmin := yabot.BoolFilter(func(_ any, data *yabot.Context) bool {
//	    user, _ := yabot.Value[*yabot.User](data, yabot.KeyEventFromUser)
//	    return user != nil && user.ID == adminID
//	})
type BoolFilter func(event any, data *Context) bool

func (f BoolFilter) Check(_ context.Context, event any, data *Context) (Outcome, error) {
	return Match(f(event, data)), nil
}

// FilterFor wraps a filter over a concrete event type. Other event types do not match.
//
// Example:
//
//	longText := yabot.FilterFor(func(_ context.Context, m *yabot.Message, _ *yabot.Context) (yabot.Outcome, error) {
//	    return yabot.Match(len(m.Text) > 100), nil
//	})
func FilterFor[T any](fn func(ctx context.Context, event T, data *Context) (Outcome, error)) Filter {
	return FilterFunc(func(ctx context.Context, event any, data *Context) (Outcome, error) {
		typed, ok := event.(T)
		if !ok {
			return NotMatched(), nil
		}

		return fn(ctx, typed, data)
	})
}

// evaluateChain runs filters left to right on data, merging every injection
// into data before the next filter runs. The first non-match stops the chain.
func evaluateChain(ctx context.Context, filters []Filter, event any, data *Context) (Outcome, error) {
	for _, filter := range filters {
		outcome, err := filter.Check(ctx, event, data)
		if err != nil {
			return NotMatched(), err
		}

		if !outcome.IsMatched() {
			return outcome, nil
		}

		data.Merge(outcome.values)
	}

	return Matched(nil), nil
}

type andFilter struct {
	filters []Filter
}

// And matches when every filter matches. Injections accumulate left to right
// and are all returned.
func And(filters ...Filter) Filter {
	return andFilter{filters: filters}
}

func (f andFilter) Check(ctx context.Context, event any, data *Context) (Outcome, error) {
	scratch := data.Clone()
	injected := make(map[string]any)

	for _, filter := range f.filters {
		outcome, err := filter.Check(ctx, event, scratch)
		if err != nil {
			return NotMatched(), err
		}

		if !outcome.IsMatched() {
			return outcome, nil
		}

		scratch.Merge(outcome.values)
		maps.Copy(injected, outcome.values)
	}

	return Matched(injected), nil
}

type orFilter struct {
	filters []Filter
}

// Or matches when any filter matches. It never injects context.
func Or(filters ...Filter) Filter {
	return orFilter{filters: filters}
}

func (f orFilter) Check(ctx context.Context, event any, data *Context) (Outcome, error) {
	for _, filter := range f.filters {
		outcome, err := filter.Check(ctx, event, data.Clone())
		if err != nil {
			return NotMatched(), err
		}

		switch outcome.Kind() {
		case OutcomeMatched:
			return Matched(nil), nil
		case OutcomeDeferred:
			return outcome, nil
		case OutcomeNotMatched:
		}
	}

	return NotMatched(), nil
}

type notFilter struct {
	filter Filter
}

// Not inverts a filter. It never injects context.
func Not(filter Filter) Filter {
	return notFilter{filter: filter}
}

func (f notFilter) Check(ctx context.Context, event any, data *Context) (Outcome, error) {
	outcome, err := f.filter.Check(ctx, event, data.Clone())
	if err != nil {
		return NotMatched(), err
	}

	switch outcome.Kind() {
	case OutcomeMatched:
		return NotMatched(), nil
	case OutcomeDeferred:
		return outcome, nil
	default:
		return Matched(nil), nil
	}
}

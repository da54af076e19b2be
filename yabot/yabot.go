// Package yabot routes chat platform updates through a tree of routers.
//
// A Dispatcher is the root Router. Each router owns one Observer per event
// kind; an observer runs its outer middlewares, then tries its registrations
// in order. A registration runs when all of its filters match, filters may
// inject values into the per event Context seen by the handler.
//
// Before routing, the dispatcher resolves the chat and user of the event,
// maps them to a yafsm.StorageKey with the configured strategy and exposes a
// *yafsm.FSMContext under KeyState.
//
// Example usage:
//
//	dp := yabot.NewDispatcher(yabot.Options{Strategy: yafsm.StrategyUserInChat})
//
//	dp.Message.Register(func(ctx context.Context, event any, data *yabot.Context) (any, error) {
//	    message := event.(*yabot.Message)
//	    return message.Answer("hello"), nil
//	}, yabot.Command("start"))
//
//	result, err := dp.FeedRawUpdate(ctx, bot, payload, nil)
package yabot

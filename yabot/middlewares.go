package yabot

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
	"github.com/YaCodeDev/GoYaBotKit/yaratelimit"
	"golang.org/x/text/language"
)

// FlagThrottlingGroup overrides the throttling group of a handler.
const FlagThrottlingGroup = "throttling_group"

// RecoverMiddleware turns a panic of the wrapped chain into ErrHandlerPanic.
func RecoverMiddleware(ctx context.Context, event any, data *Context, next HandlerFunc) (result any, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			result = nil
			err = yaerrors.FromErrorWithLog(
				http.StatusInternalServerError,
				fmt.Errorf("%w: %v", ErrHandlerPanic, recovered),
				"[RECOVER] handler panicked",
				loggerFrom(data),
			)
		}
	}()

	return next(ctx, event, data)
}

// LoggingMiddleware logs every event with its processing time.
func LoggingMiddleware(ctx context.Context, event any, data *Context, next HandlerFunc) (any, error) {
	log := loggerFrom(data)
	started := time.Now()

	result, err := next(ctx, event, data)

	elapsed := time.Since(started)

	switch {
	case err != nil:
		log.Errorf("[EVENT] %T failed after %s: %v", event, elapsed, err)
	case IsUnhandled(result):
		log.Debugf("[EVENT] %T not handled (%s)", event, elapsed)
	default:
		log.Debugf("[EVENT] %T handled in %s", event, elapsed)
	}

	return result, err
}

// ThrottlingMiddleware drops events of users that exceed limiter. Events
// without a user pass through. The group is taken from the
// FlagThrottlingGroup handler flag when present. Limiter failures let the
// event through.
//
// Example usage:
//
//	cache := yacache.NewCache(yacache.NewMemoryContainer())
//	limiter := yaratelimit.NewRateLimit(cache, 3, time.Second)
//	router.Message.Middleware(yabot.ThrottlingMiddleware(limiter, "message"))
func ThrottlingMiddleware(limiter yaratelimit.Limiter, group string) Middleware {
	return func(ctx context.Context, event any, data *Context, next HandlerFunc) (any, error) {
		user, ok := Value[*User](data, KeyEventFromUser)
		if !ok || user == nil {
			return next(ctx, event, data)
		}

		scope := group
		if flag, ok := GetFlag(data, FlagThrottlingGroup); ok {
			if name, ok := flag.(string); ok && name != "" {
				scope = name
			}
		}

		banned, err := limiter.Increment(ctx, user.ID, scope)
		if err != nil {
			loggerFrom(data).Warnf("[THROTTLING] limiter failed for %d: %v", user.ID, err)

			return next(ctx, event, data)
		}

		if banned {
			loggerFrom(data).Debugf("[THROTTLING] dropping %T of %d in `%s`", event, user.ID, scope)

			return nil, nil
		}

		return next(ctx, event, data)
	}
}

// LocaleMiddleware stores in KeyLocale the supported tag closest to the
// language of the user. supported[0] is the fallback.
//
// Example usage:
//
//	dp.Update.OuterMiddleware(yabot.LocaleMiddleware(language.English, language.Ukrainian))
func LocaleMiddleware(supported ...language.Tag) Middleware {
	if len(supported) == 0 {
		supported = []language.Tag{language.English}
	}

	matcher := language.NewMatcher(supported)

	return func(ctx context.Context, event any, data *Context, next HandlerFunc) (any, error) {
		locale := supported[0]

		if user, ok := Value[*User](data, KeyEventFromUser); ok && user != nil && user.LanguageCode != "" {
			if tag, err := language.Parse(user.LanguageCode); err == nil {
				_, index, confidence := matcher.Match(tag)
				if confidence != language.No {
					locale = supported[index]
				}
			}
		}

		data.Set(KeyLocale, locale)

		return next(ctx, event, data)
	}
}

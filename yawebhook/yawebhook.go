// Package yawebhook feeds webhook deliveries into a yabot dispatcher through gin.
//
// Example:
//
//	engine := gin.New()
//	handler := yawebhook.NewHandler(dp, bot, yawebhook.Options{SecretToken: "secret"})
//	handler.Register(engine, "/webhook")
//
//	_ = engine.Run(":8080")
package yawebhook

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/YaCodeDev/GoYaBotKit/yabot"
	"github.com/YaCodeDev/GoYaBotKit/yaencoding"
	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
	"github.com/YaCodeDev/GoYaBotKit/yalogger"
	"github.com/gin-gonic/gin"
)

// SecretTokenHeader carries the token configured with setWebhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// FieldMethod names the method inside a webhook reply.
const FieldMethod = "method"

// KeyRequest is the context key of the incoming *http.Request.
const KeyRequest = "webhook_request"

var (
	ErrInvalidSecretToken = errors.New("invalid secret token")
	ErrEmptyBody          = errors.New("empty request body")
)

// Middleware is a gin middleware component.
type Middleware interface {
	Handle(ctx *gin.Context)
}

type Options struct {
	// SecretToken is compared with SecretTokenHeader. Empty disables the check.
	SecretToken string
	// Background answers every delivery at once and dispatches it in a goroutine.
	// Method results are then sent through the bot instead of the reply.
	Background bool
	Logger     yalogger.Logger
}

// Handler turns webhook requests into dispatcher updates.
type Handler struct {
	dp      *yabot.Dispatcher
	bot     yabot.Bot
	secret  *SecretToken
	options Options
	tasks   sync.WaitGroup
}

var _ Middleware = (*Handler)(nil)

func NewHandler(dp *yabot.Dispatcher, bot yabot.Bot, options Options) *Handler {
	if options.Logger == nil {
		options.Logger = yalogger.NewLogger()
	}

	return &Handler{
		dp:      dp,
		bot:     bot,
		secret:  NewSecretToken(options.SecretToken),
		options: options,
	}
}

// Register mounts the handler on path behind the secret token check.
func (h *Handler) Register(router gin.IRouter, path string) {
	router.POST(path, h.secret.Handle, h.Handle)
}

// Handle reads one update and answers the delivery.
func (h *Handler) Handle(c *gin.Context) {
	raw, err := c.GetRawData()
	if err == nil && len(raw) == 0 {
		err = ErrEmptyBody
	}

	if err != nil {
		h.abort(c, yaerrors.FromError(http.StatusBadRequest, err, "[WEBHOOK] failed to read body"))

		return
	}

	update, yaerr := yabot.ParseUpdate(raw)
	if yaerr != nil {
		h.abort(c, yaerr.Wrap("[WEBHOOK] failed to parse update"))

		return
	}

	extra := map[string]any{KeyRequest: c.Request}

	if h.options.Background {
		ctx := context.WithoutCancel(c.Request.Context())

		h.tasks.Add(1)

		go func() {
			defer h.tasks.Done()

			h.process(ctx, update, extra)
		}()

		c.JSON(http.StatusOK, gin.H{})

		return
	}

	result, feedErr := h.dp.FeedUpdate(c.Request.Context(), h.bot, update, extra)
	if feedErr != nil {
		// Non 2xx answers are redelivered, handler failures are only logged.
		h.options.Logger.Errorf("[WEBHOOK] update %d failed: %v", update.UpdateID, feedErr)
		c.JSON(http.StatusOK, gin.H{})

		return
	}

	method, ok := result.(yabot.Method)
	if !ok {
		c.JSON(http.StatusOK, gin.H{})

		return
	}

	payload, yaerr := MethodPayload(method)
	if yaerr != nil {
		h.options.Logger.Errorf("[WEBHOOK] failed to encode %s: %v", method.MethodName(), yaerr)

		if _, callErr := h.bot.Call(c.Request.Context(), method); callErr != nil {
			h.options.Logger.Errorf("[WEBHOOK] failed to call %s: %v", method.MethodName(), callErr)
		}

		c.JSON(http.StatusOK, gin.H{})

		return
	}

	c.JSON(http.StatusOK, payload)
}

// Wait blocks until every background delivery is processed.
func (h *Handler) Wait() {
	h.tasks.Wait()
}

func (h *Handler) process(ctx context.Context, update *yabot.Update, extra map[string]any) {
	result, err := h.dp.FeedUpdate(ctx, h.bot, update, extra)
	if err != nil {
		h.options.Logger.Errorf("[WEBHOOK] update %d failed: %v", update.UpdateID, err)

		return
	}

	if method, ok := result.(yabot.Method); ok {
		if _, err := h.bot.Call(ctx, method); err != nil {
			h.options.Logger.Errorf("[WEBHOOK] failed to call %s: %v", method.MethodName(), err)
		}
	}
}

func (h *Handler) abort(c *gin.Context, err yaerrors.Error) {
	h.options.Logger.Warnf("[WEBHOOK] rejected delivery: %v", err)
	c.AbortWithStatusJSON(err.Code(), gin.H{"error": err.UnwrapLastError()})
}

// MethodPayload renders method as a webhook reply body.
//
// Example:
//
//	payload, _ := yawebhook.MethodPayload(&yabot.SendMessage{ChatID: 1, Text: "hi"})
//	// {"chat_id": 1, "method": "sendMessage", "text": "hi"}
func MethodPayload(method yabot.Method) (map[string]any, yaerrors.Error) {
	encoded, err := yaencoding.EncodeJSON(method)
	if err != nil {
		return nil, err.Wrap("[WEBHOOK] failed to encode method")
	}

	decoded, err := yaencoding.DecodeJSON[map[string]any](encoded)
	if err != nil {
		return nil, err.Wrap("[WEBHOOK] failed to decode method")
	}

	payload := *decoded
	if payload == nil {
		payload = map[string]any{}
	}

	payload[FieldMethod] = method.MethodName()

	return payload, nil
}

// Package yaratelimit implements a fixed-window rate limiter backed by a
// yacache.Cache. It is used by the bot throttling middleware to drop updates
// from users that send too many events.
//
// # Storage layout
//
// Each subject is addressed by a string key:
//
//	rate-limit-<id>-<group>
//
// The cache value is a compact CSV tuple:
//
//	"<count>,<window_start_unix_ms>"
//
// For example: "3,1726860000000" means 3 hits in the window that started at
// that unix millisecond. Records expire together with their window.
//
// # Semantics
//
//   - Increment(ctx, id, group) -> (banned bool, err)
//
//     Counts a hit. The first Limit hits of a window pass, every further hit
//     inside the same window is reported as banned and is not counted.
//
//   - Check(ctx, id, group) -> (banned bool, err)
//
//     Reports whether the next hit would be banned without counting it.
//
//   - Refresh(ctx, id, group)
//
//     Starts a new window with count=1.
//
//   - Get(ctx, id, group)
//
//     Returns the parsed [Window].
package yaratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/YaCodeDev/GoYaBotKit/yacache"
	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
)

// Limiter is the behaviour shared by every limiter regardless of cache backend.
//
// Example:
//
//	cache := yacache.NewCache(yacache.NewMemoryContainer())
//	var limiter yaratelimit.Limiter = yaratelimit.NewRateLimit(cache, 5, time.Minute)
//	banned, err := limiter.Increment(ctx, 42, "message")
type Limiter interface {
	Check(ctx context.Context, id int64, group string) (bool, yaerrors.Error)
	Refresh(ctx context.Context, id int64, group string) yaerrors.Error
	Increment(ctx context.Context, id int64, group string) (bool, yaerrors.Error)
	Get(ctx context.Context, id int64, group string) (*Window, yaerrors.Error)
}

// Window is the parsed representation of the CSV value in the cache.
type Window struct {
	// Count is the number of accepted hits in the window.
	Count uint32
	// Start is the unix millisecond of the first hit in the window.
	Start int64
}

// Expired reports whether the window of length rate has ended at now.
func (w *Window) Expired(now time.Time, rate time.Duration) bool {
	return !now.Before(time.UnixMilli(w.Start).Add(rate))
}

// RateLimit is a fixed-window limiter backed by a yacache.Cache.
// The zero value is not valid; use NewRateLimit.
type RateLimit[Cache yacache.Container] struct {
	Cache yacache.Cache[Cache]
	// Limit is the max accepted hits per window.
	Limit uint32
	// Rate is the window size.
	Rate time.Duration
}

// NewRateLimit wires dependencies and returns a ready-to-use limiter.
//
// Example:
//
//	rl := yaratelimit.NewRateLimit(cache, 5, time.Minute)
func NewRateLimit[Cache yacache.Container](
	cache yacache.Cache[Cache],
	limit uint32,
	rate time.Duration,
) *RateLimit[Cache] {
	return &RateLimit[Cache]{
		Cache: cache,
		Limit: limit,
		Rate:  rate,
	}
}

// Check reports whether the next Increment would be banned.
// A subject without a record is never banned.
//
// Example:
//
//	banned, err := rl.Check(ctx, userID, "message")
func (r *RateLimit[Cache]) Check(
	ctx context.Context,
	id int64,
	group string,
) (bool, yaerrors.Error) {
	window, err := r.lookup(ctx, id, group)
	if err != nil {
		return false, err.Wrap("failed to check window")
	}

	if window == nil || window.Expired(time.Now(), r.Rate) {
		return r.Limit == 0, nil
	}

	return window.Count >= r.Limit, nil
}

// Increment records a hit for (id, group) and reports whether it is over the limit.
//
// Example:
//
//	banned, err := rl.Increment(ctx, userID, "message")
//	if banned { /* drop */ }
func (r *RateLimit[Cache]) Increment(
	ctx context.Context,
	id int64,
	group string,
) (bool, yaerrors.Error) {
	window, err := r.lookup(ctx, id, group)
	if err != nil {
		return false, err.Wrap("failed to increment window")
	}

	now := time.Now()

	if window == nil || window.Expired(now, r.Rate) {
		if err := r.Refresh(ctx, id, group); err != nil {
			return false, err.Wrap("failed to refresh")
		}

		return r.Limit == 0, nil
	}

	if window.Count >= r.Limit {
		return true, nil
	}

	remaining := time.UnixMilli(window.Start).Add(r.Rate).Sub(now)

	if err := r.Cache.Set(
		ctx,
		FormatKey(id, group),
		FormatValue(window.Count+1, window.Start),
		remaining,
	); err != nil {
		return false, err.Wrap("failed to store window")
	}

	return false, nil
}

// Refresh starts a new window for (id, group) with count=1.
//
// Example:
//
//	_ = rl.Refresh(ctx, 42, "message")
func (r *RateLimit[Cache]) Refresh(
	ctx context.Context,
	id int64,
	group string,
) yaerrors.Error {
	if err := r.Cache.Set(
		ctx,
		FormatKey(id, group),
		FormatValue(1, time.Now().UnixMilli()),
		r.Rate,
	); err != nil {
		return err.Wrap("failed to set refreshed window")
	}

	return nil
}

// Get fetches and parses the cache record for (id, group).
// A missing record is a 404 error.
func (r *RateLimit[Cache]) Get(
	ctx context.Context,
	id int64,
	group string,
) (*Window, yaerrors.Error) {
	value, err := r.Cache.Get(ctx, FormatKey(id, group))
	if err != nil {
		return nil, err.Wrap("failed to get window")
	}

	return ParseValue(value)
}

func (r *RateLimit[Cache]) lookup(ctx context.Context, id int64, group string) (*Window, yaerrors.Error) {
	window, err := r.Get(ctx, id, group)
	if err != nil {
		if err.Code() == http.StatusNotFound {
			return nil, nil
		}

		return nil, err
	}

	return window, nil
}

// FormatKey constructs the cache key for (id, group).
//
// Example:
//
//	k := yaratelimit.FormatKey(100, "message") // "rate-limit-100-message"
func FormatKey(id int64, group string) string {
	return fmt.Sprintf("rate-limit-%d-%s", id, group)
}

// FormatValue serializes a (count, start) tuple to a cache string.
func FormatValue(count uint32, start int64) string {
	return fmt.Sprintf("%d,%d", count, start)
}

// ParseValue is the inverse of FormatValue.
func ParseValue(value string) (*Window, yaerrors.Error) {
	rawCount, rawStart, ok := strings.Cut(value, ",")
	if !ok {
		return nil, yaerrors.FromString(
			http.StatusInternalServerError,
			fmt.Sprintf("malformed rate limit window `%s`", value),
		)
	}

	count, err := strconv.ParseUint(rawCount, 10, 32)
	if err != nil {
		return nil, yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			"couldn't validate count",
		)
	}

	start, err := strconv.ParseInt(rawStart, 10, 64)
	if err != nil {
		return nil, yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			"couldn't validate window start",
		)
	}

	return &Window{
		Count: uint32(count),
		Start: start,
	}, nil
}

// Package sender runs batches of outbound Telegram calls concurrently with a
// bounded worker count. Each call is attempted once.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/ridebot/core/logger"
	"github.com/m3rciful/ridebot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

const component = "tg.sender"

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// Options controls the behaviour of FanOut.
type Options struct {
	Workers int
	// Timeout bounds a single task.
	Timeout time.Duration
}

// Task is one outbound call; Key identifies it in logs and results (e.g. a chat id).
type Task struct {
	Key string
	Run func(ctx context.Context) error
}

// Result reports the outcome of one Task.
type Result struct {
	Key  string
	Err  error
	Kind string
	Took time.Duration
}

// FanOut executes task batches with at most Workers calls in flight.
type FanOut struct {
	opts Options
	errs atomic.Uint64
}

// NewFanOut returns a FanOut with sane defaults if options are zeroed.
func NewFanOut(opts Options) *FanOut {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &FanOut{opts: opts}
}

// Run executes tasks and returns their results in input order. It blocks
// until every task has finished or ctx is done.
func (f *FanOut) Run(ctx context.Context, action string, tasks []Task) []Result {
	results := make([]Result, len(tasks))
	sem := make(chan struct{}, f.opts.Workers)
	var wg sync.WaitGroup

	for i, t := range tasks {
		results[i].Key = t.Key
		select {
		case <-ctx.Done():
			results[i].Err = ctx.Err()
			results[i].Kind = netutil.Kind(ctx.Err())
			continue
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int, t Task) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = f.runOne(ctx, action, t)
		}(i, t)
	}
	wg.Wait()
	return results
}

func (f *FanOut) runOne(ctx context.Context, action string, t Task) (res Result) {
	res.Key = t.Key
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Err = errors.New("telegram sender: task panicked")
			res.Kind = netutil.KindOther
			f.errs.Add(1)
			logger.Error(ctx, component, "send.panic",
				slog.String("action", action),
				slog.String("key", t.Key),
				slog.Any("err", r),
			)
		}
	}()

	taskCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	err := t.Run(taskCtx)
	res.Took = time.Since(start)
	if err != nil {
		res.Err = err
		res.Kind = ClassifyError(err)
		f.errs.Add(1)
		logger.Error(ctx, component, "send.fail",
			slog.String("action", action),
			slog.String("key", t.Key),
			slog.String("error", SanitizeErrorMessage(err)),
			slog.String("error_kind", res.Kind),
			slog.Int("elapsed_ms", durationToMS(res.Took)),
		)
		return res
	}
	logger.Debug(ctx, component, "send.success",
		slog.String("action", action),
		slog.String("key", t.Key),
		slog.Int("elapsed_ms", durationToMS(res.Took)),
	)
	return res
}

// ErrorCount returns the number of failed tasks since creation.
func (f *FanOut) ErrorCount() uint64 {
	return f.errs.Load()
}

func durationToMS(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(logger.RoundMS(d) / time.Millisecond)
}

// ClassifyError maps err to a low-cardinality kind, adding Telegram HTTP
// status classes to the transport kinds of netutil.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	if kind := netutil.Kind(err); kind != netutil.KindOther {
		return kind
	}
	status := httpStatusFromError(err)
	switch {
	case status == http.StatusTooManyRequests:
		return "rate_limited"
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	}
	return netutil.KindOther
}

// SanitizeErrorMessage prevents accidental leakage of Telegram bot tokens in logs.
func SanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}

func httpStatusFromError(err error) int {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}

	var floodErr tele.FloodError
	if errors.As(err, &floodErr) {
		return http.StatusTooManyRequests
	}

	var groupErr tele.GroupError
	if errors.As(err, &groupErr) {
		return http.StatusBadRequest
	}

	msg := err.Error()
	lastOpen := strings.LastIndex(msg, "(")
	lastClose := strings.LastIndex(msg, ")")
	if lastOpen >= 0 && lastClose > lastOpen+1 {
		codeStr := strings.TrimSpace(msg[lastOpen+1 : lastClose])
		if code, convErr := strconv.Atoi(codeStr); convErr == nil {
			return code
		}
	}
	return 0
}

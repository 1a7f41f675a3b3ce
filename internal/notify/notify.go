// Package notify delivers finished reports to a chat target. Every transport answers with a
// Result instead of an error so the caller can treat all failures the same way.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	KindCommand   = "command"
	KindWebSocket = "websocket"
	KindKafka     = "kafka"
)

var ErrUnsupportedKind = errors.New("unsupported delivery kind")

// Result is the outcome of one delivery attempt.
type Result struct {
	OK     bool
	Detail string
}

func Delivered() Result {
	return Result{OK: true}
}

func Failed(format string, args ...any) Result {
	return Result{Detail: fmt.Sprintf(format, args...)}
}

type Notifier interface {
	Notify(ctx context.Context, target, message string) Result
}

// Options selects and configures a transport.
type Options struct {
	Kind string

	CommandPath string
	CommandArgs []string

	WebSocketURL   string
	WebSocketToken string

	KafkaBrokers []string
	KafkaTopic   string

	Clock clockwork.Clock
}

// New builds the notifier for opts.Kind. The returned close func releases transport
// resources and is never nil.
func New(opts Options) (Notifier, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case "", KindCommand:
		return NewCommandNotifier(opts.CommandPath, opts.CommandArgs), noop, nil
	case KindWebSocket:
		n, err := NewWebSocketNotifier(opts.WebSocketURL, opts.WebSocketToken)
		if err != nil {
			return nil, noop, err
		}
		return n, noop, nil
	case KindKafka:
		n, err := NewKafkaNotifier(opts.KafkaBrokers, opts.KafkaTopic, opts.Clock)
		if err != nil {
			return nil, noop, err
		}
		return n, n.Close, nil
	default:
		return nil, noop, fmt.Errorf("%w: %q", ErrUnsupportedKind, opts.Kind)
	}
}

// WithTimeout bounds every Notify call of next.
func WithTimeout(next Notifier, timeout time.Duration) Notifier {
	if timeout <= 0 {
		return next
	}
	return timeoutNotifier{next: next, timeout: timeout}
}

type timeoutNotifier struct {
	next    Notifier
	timeout time.Duration
}

func (n timeoutNotifier) Notify(ctx context.Context, target, message string) Result {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	result := n.next.Notify(ctx, target, message)
	if !result.OK && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Failed("delivery timed out after %s: %s", n.timeout, result.Detail)
	}
	return result
}

// Package push implements notification fan-out: per-token parallel
// sends, permanent-vs-transient error handling, exponential backoff
// retry, and token deletion on permanent failure.
package push

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/metrics"
)

// ErrUnregistered is returned by a Provider when a token is permanently
// invalid (app uninstalled, token revoked) and should be deleted.
var ErrUnregistered = errors.New("push: token unregistered")

// Provider sends a single push to a single token. Implementations wrap
// a concrete backend (FCM, APNs); transient failures should be
// returned as plain errors, permanent ones wrapped in ErrUnregistered.
type Provider interface {
	Send(ctx context.Context, token, title string, data map[string]string) error
}

// TokenStore is the subset of store.Store push needs, kept narrow so
// push doesn't import the persistence layer directly.
type TokenStore interface {
	TokensForUser(userID uint) ([]string, error)
	DeleteFCMToken(token string) error
}

type Dispatcher struct {
	provider Provider
	tokens   TokenStore
	timeout  time.Duration
	maxRetries int
}

func NewDispatcher(provider Provider, tokens TokenStore, timeout time.Duration, maxRetries int) *Dispatcher {
	return &Dispatcher{provider: provider, tokens: tokens, timeout: timeout, maxRetries: maxRetries}
}

// NotifyAsync fans pushes out to every token registered to userID,
// fire-and-forget; each send is independent.
func (d *Dispatcher) NotifyAsync(userID uint, title string, data map[string]string) {
	tokens, err := d.tokens.TokensForUser(userID)
	if err != nil {
		log.Printf("push: load tokens for user %d: %v", userID, err)
		return
	}
	for _, token := range tokens {
		go d.sendWithRetry(token, title, data)
	}
}

func (d *Dispatcher) sendWithRetry(token, title string, data map[string]string) {
	backoff := 500 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := d.provider.Send(ctx, token, title, data)
		cancel()
		if err == nil {
			metrics.PushDelivered.WithLabelValues("delivered").Inc()
			return
		}
		lastErr = err

		if errors.Is(err, ErrUnregistered) {
			metrics.PushDelivered.WithLabelValues("unregistered").Inc()
			if delErr := d.tokens.DeleteFCMToken(token); delErr != nil {
				log.Printf("push: delete unregistered token: %v", delErr)
			}
			return
		}

		if attempt < d.maxRetries {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	metrics.PushDelivered.WithLabelValues("failed").Inc()
	log.Printf("push: giving up on token after %d attempts: %v", d.maxRetries+1, lastErr)
}

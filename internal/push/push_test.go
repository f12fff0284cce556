package push

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu        sync.Mutex
	attempts  map[string]int
	failUntil map[string]int
	permanent map[string]bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		attempts:  make(map[string]int),
		failUntil: make(map[string]int),
		permanent: make(map[string]bool),
	}
}

func (f *fakeProvider) Send(ctx context.Context, token, title string, data map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[token]++
	if f.permanent[token] {
		return ErrUnregistered
	}
	if f.attempts[token] <= f.failUntil[token] {
		return errors.New("transient failure")
	}
	return nil
}

type fakeTokenStore struct {
	mu      sync.Mutex
	tokens  map[uint][]string
	deleted []string
}

func (f *fakeTokenStore) TokensForUser(userID uint) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens[userID]...), nil
}

func (f *fakeTokenStore) DeleteFCMToken(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, token)
	return nil
}

func TestNotifyAsyncRetriesTransientFailures(t *testing.T) {
	provider := newFakeProvider()
	provider.failUntil["tok-retry"] = 2

	tokens := &fakeTokenStore{tokens: map[uint][]string{1: {"tok-retry"}}}
	d := NewDispatcher(provider, tokens, time.Second, 3)

	d.NotifyAsync(1, "Motion detected", map[string]string{"type": "motion_detected"})

	require.Eventually(t, func() bool {
		provider.mu.Lock()
		defer provider.mu.Unlock()
		return provider.attempts["tok-retry"] == 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNotifyAsyncDeletesPermanentlyUnregisteredToken(t *testing.T) {
	provider := newFakeProvider()
	provider.permanent["tok-dead"] = true

	tokens := &fakeTokenStore{tokens: map[uint][]string{1: {"tok-dead"}}}
	d := NewDispatcher(provider, tokens, time.Second, 3)

	d.NotifyAsync(1, "Motion detected", nil)

	require.Eventually(t, func() bool {
		tokens.mu.Lock()
		defer tokens.mu.Unlock()
		return len(tokens.deleted) == 1
	}, 2*time.Second, 10*time.Millisecond)

	tokens.mu.Lock()
	defer tokens.mu.Unlock()
	assert.Equal(t, "tok-dead", tokens.deleted[0])
}

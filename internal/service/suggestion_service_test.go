package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whisperwall/internal/service"
)

type fakeCompletionClient struct {
	mu     sync.Mutex
	result string
	err    error
	calls  int
}

func (c *fakeCompletionClient) Complete(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.result, nil
}

func TestParseSuggestions(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			"three questions",
			"What's a hobby you've recently started?||If you could travel anywhere, where?||What made you smile today?",
			[]string{
				"What's a hobby you've recently started?",
				"If you could travel anywhere, where?",
				"What made you smile today?",
			},
		},
		{
			"quoted with whitespace",
			`" One? || Two? || Three? "`,
			[]string{"One?", "Two?", "Three?"},
		},
		{"empty", "", nil},
		{"only separators", "||||", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := service.ParseSuggestions(tt.raw)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSuggestFetchesFromClient(t *testing.T) {
	client := &fakeCompletionClient{result: "One?||Two?||Three?"}
	svc := service.NewSuggestionService(client, nil)

	suggestions, err := svc.Suggest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"One?", "Two?", "Three?"}, suggestions)
}

func TestSuggestServesStaleOnUpstreamFailure(t *testing.T) {
	client := &fakeCompletionClient{result: "One?||Two?||Three?"}
	svc := service.NewSuggestionService(client, nil)

	first, err := svc.Suggest(context.Background())
	require.NoError(t, err)

	client.mu.Lock()
	client.err = errors.New("upstream down")
	client.mu.Unlock()

	second, err := svc.Suggest(context.Background())
	require.NoError(t, err, "stale suggestions should be served on failure")
	assert.Equal(t, first, second)
}

func TestSuggestFailsWithoutAnyCache(t *testing.T) {
	client := &fakeCompletionClient{err: errors.New("upstream down")}
	svc := service.NewSuggestionService(client, nil)

	_, err := svc.Suggest(context.Background())
	assert.Error(t, err)
}

func TestSuggestRejectsUnusableCompletion(t *testing.T) {
	client := &fakeCompletionClient{result: "   "}
	svc := service.NewSuggestionService(client, nil)

	_, err := svc.Suggest(context.Background())
	assert.ErrorIs(t, err, service.ErrNoSuggestions)
}

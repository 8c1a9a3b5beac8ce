package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const suggestionPrompt = `Create a list of three open-ended and engaging questions formatted as a single string. Each question should be separated by '||'. These questions are for an anonymous social messaging platform and should be suitable for a diverse audience. Avoid personal or sensitive topics, focusing instead on universal themes that encourage friendly interaction. Ensure the questions are intriguing, foster curiosity, and contribute to a positive and welcoming conversational environment.`

const (
	suggestionCacheKey = "suggestions:latest"
	suggestionCacheTTL = 2 * time.Hour
)

// CompletionClient produces a chat completion for a prompt
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// SuggestionService serves AI-suggested conversation starters. Results are
// cached in Redis and in memory, and a background loop pre-warms the cache so
// most requests never wait on the upstream model.
type SuggestionService struct {
	client          CompletionClient
	redis           *redis.Client
	cached          []string
	cacheMux        sync.RWMutex
	refreshInterval time.Duration
	ctx             context.Context
	cancel          context.CancelFunc
}

// NewSuggestionService creates a new SuggestionService
func NewSuggestionService(client CompletionClient, redisClient *redis.Client) *SuggestionService {
	return &SuggestionService{
		client:          client,
		redis:           redisClient,
		refreshInterval: 1 * time.Hour,
	}
}

// Start begins the periodic cache pre-warm
func (s *SuggestionService) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	// Initial warm
	if _, err := s.refresh(s.ctx); err != nil {
		log.Printf("Suggestions: initial refresh failed: %v", err)
	}

	go s.refreshLoop()
	return nil
}

// Stop stops the service
func (s *SuggestionService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *SuggestionService) refreshLoop() {
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.refresh(s.ctx); err != nil {
				log.Printf("Suggestions: refresh failed: %v", err)
			}
		}
	}
}

// Suggest returns three conversation starter questions. Cached results are
// served when present; on upstream failure a stale in-memory set is served
// rather than an error, as long as one exists.
func (s *SuggestionService) Suggest(ctx context.Context) ([]string, error) {
	if s.redis != nil {
		data, err := s.redis.Get(ctx, suggestionCacheKey).Bytes()
		if err == nil {
			var suggestions []string
			if json.Unmarshal(data, &suggestions) == nil && len(suggestions) > 0 {
				return suggestions, nil
			}
		}
	}

	suggestions, err := s.refresh(ctx)
	if err != nil {
		s.cacheMux.RLock()
		stale := s.cached
		s.cacheMux.RUnlock()
		if len(stale) > 0 {
			return stale, nil
		}
		return nil, err
	}
	return suggestions, nil
}

func (s *SuggestionService) refresh(ctx context.Context) ([]string, error) {
	raw, err := s.client.Complete(ctx, suggestionPrompt)
	if err != nil {
		return nil, err
	}

	suggestions := ParseSuggestions(raw)
	if len(suggestions) == 0 {
		return nil, ErrNoSuggestions
	}

	s.cacheMux.Lock()
	s.cached = suggestions
	s.cacheMux.Unlock()

	if s.redis != nil {
		if data, err := json.Marshal(suggestions); err == nil {
			if err := s.redis.Set(ctx, suggestionCacheKey, data, suggestionCacheTTL).Err(); err != nil {
				log.Printf("Suggestions: cache write failed: %v", err)
			}
		}
	}
	return suggestions, nil
}

var ErrNoSuggestions = errors.New("upstream returned no usable suggestions")

// ParseSuggestions splits a '||'-separated completion into trimmed,
// non-empty questions
func ParseSuggestions(raw string) []string {
	raw = strings.Trim(strings.TrimSpace(raw), `"`)
	parts := strings.Split(raw, "||")
	suggestions := make([]string, 0, len(parts))
	for _, p := range parts {
		if q := strings.TrimSpace(p); q != "" {
			suggestions = append(suggestions, q)
		}
	}
	return suggestions
}

// Package rubric fetches grading rubrics from the external problem bank.
package rubric

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gradelab/gograder/internal/models"
)

// Fetcher resolves a topic id to its rubric. Implementations return nil
// (not an error) when no rubric is available; grading falls back to the
// rule-based score in that case.
type Fetcher interface {
	Fetch(ctx context.Context, topic string) *models.Rubric
}

// Bank is the HTTP problem-bank client. Responses are cached so repeated
// submissions for the same topic hit the bank once.
type Bank struct {
	baseURL string
	apiKey  string
	client  *http.Client
	cache   *lru.Cache[string, *models.Rubric]
}

// Config holds the problem-bank connection settings.
type Config struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	CacheSize int
}

func NewBank(cfg Config) (*Bank, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	cache, err := lru.New[string, *models.Rubric](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("rubric cache: %w", err)
	}
	return &Bank{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		cache:   cache,
	}, nil
}

// Fetch looks up the rubric for a topic. The topic may arrive as a filename;
// a trailing .go is stripped. Any transport failure, non-200 status, or
// malformed body yields nil.
func (b *Bank) Fetch(ctx context.Context, topic string) *models.Rubric {
	id := strings.TrimSpace(strings.TrimSuffix(topic, ".go"))
	if id == "" || b.baseURL == "" {
		return nil
	}

	if cached, ok := b.cache.Get(id); ok {
		return cached
	}

	url := fmt.Sprintf("%s/problems/%s", b.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("x-api-key", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		log.Printf("rubric: fetch %q failed: %v", id, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("rubric: problem %q not found (HTTP %d)", id, resp.StatusCode)
		return nil
	}

	var r models.Rubric
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		log.Printf("rubric: decode %q failed: %v", id, err)
		return nil
	}

	b.cache.Add(id, &r)
	return &r
}

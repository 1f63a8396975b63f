package nl2sql

import (
	"context"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/zeebo/xxh3"

	"github.com/nl2sqlstudio/studio/internal/observability"
)

// CachingTranslator memoizes translations per schema, dialect and question.
// Errors are never cached.
type CachingTranslator struct {
	next  Translator
	cache *gocache.Cache
}

func NewCachingTranslator(next Translator, ttl time.Duration) *CachingTranslator {
	return &CachingTranslator{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (t *CachingTranslator) Translate(ctx context.Context, req Request) (Result, error) {
	key := cacheKey(req)
	if cached, ok := t.cache.Get(key); ok {
		observability.ObserveTranslationCache(true)
		result := cached.(Result)
		result.Cached = true
		result.Usage = TokenUsage{}
		return result, nil
	}
	observability.ObserveTranslationCache(false)

	result, err := t.next.Translate(ctx, req)
	if err != nil {
		return Result{}, err
	}
	t.cache.SetDefault(key, result)
	return result, nil
}

// Flush drops every cached translation.
func (t *CachingTranslator) Flush() {
	t.cache.Flush()
}

func cacheKey(req Request) string {
	question := strings.Join(strings.Fields(strings.ToLower(req.Question)), " ")
	hash := xxh3.HashString(req.Schema.Fingerprint() + "\x00" + req.Dialect + "\x00" + question)
	return strconv.FormatUint(hash, 16)
}

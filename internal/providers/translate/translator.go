package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/text/language"

	"aipixels/internal/infra"
)

const (
	defaultCacheTTL  = 30 * time.Minute
	defaultCacheSize = 100
)

// ErrAllEnginesFailed is returned when no engine could translate the text.
var ErrAllEnginesFailed = errors.New("translate: all engines failed")

// Engine is one translation backend. Engines are tried in order.
type Engine interface {
	Name() string
	Available() bool
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Request asks for text to be translated from Source to Target.
type Request struct {
	Text   string
	Source string
	Target string
}

// Result is the outcome of a translation.
type Result struct {
	Text       string
	Original   string
	Translated bool
	Engine     string
	FromCache  bool
}

type cacheEntry struct {
	result Result
	stored time.Time
}

// Service runs the engine chain with a bounded TTL cache.
type Service struct {
	engines []Engine
	logger  *infra.Logger
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewService builds a Service over engines in priority order.
func NewService(logger *infra.Logger, engines ...Engine) *Service {
	return &Service{
		engines: engines,
		logger:  infra.OrDiscard(logger),
		ttl:     defaultCacheTTL,
		maxSize: defaultCacheSize,
		now:     time.Now,
		cache:   make(map[string]cacheEntry),
	}
}

// ContainsHangul reports whether s has any Hangul syllable or jamo.
func ContainsHangul(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}

// NormalizeLanguage reduces a BCP 47 tag to its base language code.
func NormalizeLanguage(tag, fallback string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return fallback
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return fallback
	}
	base, conf := parsed.Base()
	if conf == language.No {
		return fallback
	}
	return base.String()
}

// Translate returns the translated text. Text without Hangul is returned as
// is. When every engine fails the original text is returned together with
// ErrAllEnginesFailed.
func (s *Service) Translate(ctx context.Context, req Request) (Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" || !ContainsHangul(text) {
		return Result{Text: text, Original: text}, nil
	}
	source := NormalizeLanguage(req.Source, "ko")
	if source == "en" {
		source = "ko"
	}
	target := NormalizeLanguage(req.Target, "en")
	key := text + "_" + source + "_" + target

	if res, ok := s.cached(key); ok {
		res.FromCache = true
		return res, nil
	}

	var lastErr error
	for _, engine := range s.engines {
		if !engine.Available() {
			continue
		}
		out, err := engine.Translate(ctx, text, source, target)
		if err != nil {
			s.logger.Warn().Err(err).Str("engine", engine.Name()).Msg("translation engine failed")
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		out = strings.TrimSpace(out)
		res := Result{Text: out, Original: text, Translated: out != "" && out != text, Engine: engine.Name()}
		if out == "" {
			res.Text = text
		}
		s.store(key, res)
		s.logger.Debug().Str("engine", engine.Name()).Msg("prompt translated")
		return res, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no engine available")
	}
	return Result{Text: text, Original: text}, fmt.Errorf("%w: %v", ErrAllEnginesFailed, lastErr)
}

func (s *Service) cached(key string) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cache[key]
	if !ok {
		return Result{}, false
	}
	if s.now().Sub(entry.stored) >= s.ttl {
		delete(s.cache, key)
		return Result{}, false
	}
	return entry.result, true
}

func (s *Service) store(key string, res Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = cacheEntry{result: res, stored: s.now()}
	for len(s.cache) > s.maxSize {
		var oldestKey string
		var oldest time.Time
		for k, e := range s.cache {
			if oldestKey == "" || e.stored.Before(oldest) {
				oldestKey, oldest = k, e.stored
			}
		}
		delete(s.cache, oldestKey)
	}
}

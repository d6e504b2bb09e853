package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/codeflow/pkg/domain"
	"github.com/aretw0/codeflow/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type redactionMiddleware struct {
	next     ports.RecordingStore
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware creates a middleware that masks traced variables whose
// names match any of the patterns, including keys of nested objects.
func NewRedactionMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.RecordingStore) ports.RecordingStore {
		return &redactionMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *redactionMiddleware) Save(ctx context.Context, rec *domain.Recording) error {
	// The caller keeps using rec, so mask a copy.
	cloned := *rec
	cloned.Result.Events = make([]domain.TraceEvent, len(rec.Result.Events))
	for i, ev := range rec.Result.Events {
		if ev.Variables != nil {
			ev.Variables = m.mask(ev.Variables)
		}
		cloned.Result.Events[i] = ev
	}
	return m.next.Save(ctx, &cloned)
}

func (m *redactionMiddleware) Load(ctx context.Context, id string) (*domain.Recording, error) {
	return m.next.Load(ctx, id)
}

func (m *redactionMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *redactionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *redactionMiddleware) Close() error {
	return closeNext(m.next)
}

func (m *redactionMiddleware) mask(vars map[string]any) map[string]any {
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		switch {
		case m.matches(k):
			out[k] = Mask
		case isObject(v):
			out[k] = m.mask(v.(map[string]any))
		default:
			out[k] = v
		}
	}
	return out
}

func (m *redactionMiddleware) matches(name string) bool {
	for _, p := range m.patterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

func isObject(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

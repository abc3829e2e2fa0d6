package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct{ name string }

func (s stubProvider) Name() string                                { return s.name }
func (s stubProvider) Chat(context.Context, ChatRequest) ChatResult { return Success("ok") }
func (s stubProvider) IsAvailable(context.Context) bool             { return true }
func (s stubProvider) CostPer1KTokens() float64                     { return 0 }

func names(ps []Provider) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Name())
	}
	return out
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(
		stubProvider{"gemini"},
		stubProvider{"claude"},
		stubProvider{"openai"},
		stubProvider{"ollama"},
	)
	require.NoError(t, err)
	return r
}

func TestNewRegistry(t *testing.T) {
	t.Run("preserves order", func(t *testing.T) {
		r := newTestRegistry(t)
		assert.Equal(t, []string{"gemini", "claude", "openai", "ollama"}, r.Names())
		assert.Equal(t, 4, r.Len())
		assert.Equal(t, r.Names(), names(r.Providers()))
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		_, err := NewRegistry(stubProvider{"a"}, stubProvider{"a"})
		assert.True(t, errors.Is(err, ErrProviderAlreadyRegistered))
	})

	t.Run("rejects nil and unnamed providers", func(t *testing.T) {
		_, err := NewRegistry(nil)
		assert.Error(t, err)
		_, err = NewRegistry(stubProvider{""})
		assert.Error(t, err)
	})

	t.Run("names are a copy", func(t *testing.T) {
		r := newTestRegistry(t)
		n := r.Names()
		n[0] = "mutated"
		assert.Equal(t, "gemini", r.Names()[0])
	})
}

func TestRegistry_Get(t *testing.T) {
	r := newTestRegistry(t)

	p, err := r.Get("claude")
	require.NoError(t, err)
	assert.Equal(t, "claude", p.Name())

	_, err = r.Get("bedrock")
	assert.True(t, errors.Is(err, ErrProviderNotFound))
}

func TestRegistry_Resolve(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		name       string
		priority   []string
		appendRest bool
		want       []string
	}{
		{
			name:       "standard appends unlisted providers in registry order",
			priority:   []string{"openai", "gemini"},
			appendRest: true,
			want:       []string{"openai", "gemini", "claude", "ollama"},
		},
		{
			name:       "unknown names are ignored",
			priority:   []string{"bedrock", "claude"},
			appendRest: true,
			want:       []string{"claude", "gemini", "openai", "ollama"},
		},
		{
			name:       "repeated names appear once",
			priority:   []string{"claude", "claude", "gemini"},
			appendRest: false,
			want:       []string{"claude", "gemini"},
		},
		{
			name:       "adult never appends",
			priority:   []string{"ollama"},
			appendRest: false,
			want:       []string{"ollama"},
		},
		{
			name:       "empty adult list resolves to nothing",
			priority:   nil,
			appendRest: false,
			want:       []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names(r.Resolve(tt.priority, tt.appendRest)))
		})
	}
}

func TestParseRequestClass(t *testing.T) {
	c, err := ParseRequestClass("")
	require.NoError(t, err)
	assert.Equal(t, ClassStandard, c)

	c, err = ParseRequestClass("adult")
	require.NoError(t, err)
	assert.Equal(t, ClassAdult, c)

	_, err = ParseRequestClass("premium")
	assert.Error(t, err)
}

func TestChatResult(t *testing.T) {
	assert.True(t, Success("hi").OK())

	r := Unreachable(errors.New("dial tcp: connection refused"))
	assert.False(t, r.OK())
	assert.Equal(t, FailureUnreachable, r.Failure.Kind)

	r = Rejected(429, "slow down")
	assert.Equal(t, FailureRejected, r.Failure.Kind)
	assert.Equal(t, "rejected (status 429): slow down", r.Failure.String())

	assert.Equal(t, DefaultMaxTokens, ChatRequest{}.TokenBound())
	assert.Equal(t, 200, ChatRequest{MaxTokens: 200}.TokenBound())
}

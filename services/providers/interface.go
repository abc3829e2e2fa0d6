package providers

import (
	"context"
	"fmt"
	"time"
)

// DefaultMaxTokens is used when a request carries no positive bound
const DefaultMaxTokens = 1024

// Provider is the uniform contract every text-generation backend implements.
// Chat never returns an error: transport and protocol problems are reported
// through ChatResult.Failure.
type Provider interface {
	// Name returns the stable registry key (e.g. "gemini", "claude", "ollama")
	Name() string

	// Chat performs exactly one backend call
	Chat(ctx context.Context, req ChatRequest) ChatResult

	// IsAvailable reports credential presence or live reachability
	IsAvailable(ctx context.Context) bool

	// CostPer1KTokens is informational and does not affect ordering
	CostPer1KTokens() float64
}

// ServiceProber is implemented by local-daemon providers that can tell
// "daemon reachable but model missing" apart from "daemon unreachable".
type ServiceProber interface {
	IsServiceRunning(ctx context.Context) bool
	AvailableModels(ctx context.Context) ([]string, error)
}

// RequestClass selects the provider pool used for a request
type RequestClass string

const (
	ClassStandard RequestClass = "standard"
	ClassAdult    RequestClass = "adult"
)

// ParseRequestClass maps user input to a RequestClass
func ParseRequestClass(s string) (RequestClass, error) {
	switch RequestClass(s) {
	case "", ClassStandard:
		return ClassStandard, nil
	case ClassAdult:
		return ClassAdult, nil
	}
	return "", fmt.Errorf("unknown request class %q", s)
}

// ChatRequest is a single system+user exchange
type ChatRequest struct {
	SystemPrompt string
	UserMessage  string
	MaxTokens    int
	Class        RequestClass
}

// TokenBound returns MaxTokens or DefaultMaxTokens when unset
func (r ChatRequest) TokenBound() int {
	if r.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return r.MaxTokens
}

// FailureKind classifies why a provider produced no text
type FailureKind string

const (
	// FailureUnreachable covers transport errors and timeouts
	FailureUnreachable FailureKind = "unreachable"
	// FailureRejected covers non-2xx statuses and malformed or empty bodies
	FailureRejected FailureKind = "rejected"
)

// Failure describes a failed provider call
type Failure struct {
	Kind       FailureKind
	StatusCode int
	Message    string
}

func (f *Failure) String() string {
	if f.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", f.Kind, f.StatusCode, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// ChatResult is either generated text or a failure marker
type ChatResult struct {
	Text    string
	Failure *Failure
}

// OK reports whether the call produced text
func (r ChatResult) OK() bool {
	return r.Failure == nil
}

// Success builds a successful result
func Success(text string) ChatResult {
	return ChatResult{Text: text}
}

// Unreachable builds a transport failure
func Unreachable(err error) ChatResult {
	return ChatResult{Failure: &Failure{Kind: FailureUnreachable, Message: err.Error()}}
}

// Rejected builds a protocol failure
func Rejected(statusCode int, message string) ChatResult {
	return ChatResult{Failure: &Failure{Kind: FailureRejected, StatusCode: statusCode, Message: message}}
}

// Descriptor is the immutable startup description of one provider
type Descriptor struct {
	Name        string
	Kind        string
	Endpoint    string
	APIKey      string
	Model       string
	CostPer1K   float64
	Timeout     time.Duration
	Temperature float64
}

// HasCredential reports whether an API key is configured
func (d Descriptor) HasCredential() bool {
	return d.APIKey != ""
}

package generate

import (
	"context"
	"strings"
	"sync"
)

// MockLLM is a scripted Completer, Captioner and Transcriber for tests and
// offline runs. Complete returns Responses in order and then repeats the last
// one; each call is recorded in Calls.
type MockLLM struct {
	Responses  []string
	CaptionOut string
	Transcript string
	Err        error
	CaptionErr error

	mu    sync.Mutex
	Calls []MockCall
}

// MockCall is one recorded Complete call.
type MockCall struct {
	System string
	Prompt string
}

// NewMockLLM returns a MockLLM answering with responses.
func NewMockLLM(responses ...string) *MockLLM {
	return &MockLLM{Responses: responses, CaptionOut: "Una imagen de prueba."}
}

// Complete returns the next scripted response.
func (m *MockLLM) Complete(ctx context.Context, system, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{System: system, Prompt: prompt})
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	i := len(m.Calls) - 1
	if i >= len(m.Responses) {
		i = len(m.Responses) - 1
	}
	return m.Responses[i], nil
}

// Caption returns CaptionOut.
func (m *MockLLM) Caption(ctx context.Context, image []byte, mimeType string) (string, error) {
	if m.CaptionErr != nil {
		return "", m.CaptionErr
	}
	return m.CaptionOut, nil
}

// Transcribe returns Transcript, or ErrUnintelligible when it is blank.
func (m *MockLLM) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	return checkTranscript(strings.TrimSpace(m.Transcript))
}

// CallCount returns the number of Complete calls so far.
func (m *MockLLM) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Package testutil provides shared testing utilities for the venti project.
//
// It contains reusable test infrastructure used across packages: a scripted
// model client for driving the assistant deterministically, and a PostgreSQL
// container helper for store integration tests.
package testutil

import (
	"context"
	"errors"
	"sync"

	"google.golang.org/genai"
)

// ScriptedModel is a deterministic model client for tests. It replays a fixed
// queue of responses in order and records every request it receives.
//
// Thread-safe for concurrent use.
type ScriptedModel struct {
	mu        sync.Mutex
	responses []*genai.GenerateContentResponse
	errs      []error
	calls     []ModelCall
}

// ModelCall records a single request to the scripted model.
type ModelCall struct {
	// Contents is the conversation as sent, in provider shape.
	Contents []*genai.Content
}

// NewScriptedModel creates a scripted model with an empty queue.
// Enqueue responses before use; a call against an empty queue fails.
func NewScriptedModel() *ScriptedModel {
	return &ScriptedModel{}
}

// Enqueue appends a response to the replay queue.
func (m *ScriptedModel) Enqueue(resp *genai.GenerateContentResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
	m.errs = append(m.errs, nil)
}

// EnqueueError appends a failing call to the replay queue.
func (m *ScriptedModel) EnqueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, nil)
	m.errs = append(m.errs, err)
}

// Generate replays the next queued response, recording the request.
func (m *ScriptedModel) Generate(_ context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, ModelCall{Contents: contents})

	if len(m.responses) == 0 {
		return nil, errors.New("scripted model: no responses queued")
	}
	resp, err := m.responses[0], m.errs[0]
	m.responses = m.responses[1:]
	m.errs = m.errs[1:]
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Calls returns a copy of all recorded requests.
func (m *ScriptedModel) Calls() []ModelCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]ModelCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// CallCount returns how many times Generate was invoked.
func (m *ScriptedModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// TextResponse builds a model reply containing a single text part.
func TextResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(text, genai.RoleModel)},
		},
	}
}

// FunctionCallResponse builds a model reply requesting the given tool calls.
func FunctionCallResponse(calls ...*genai.FunctionCall) *genai.GenerateContentResponse {
	parts := make([]*genai.Part, 0, len(calls))
	for _, call := range calls {
		parts = append(parts, &genai.Part{FunctionCall: call})
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromParts(parts, genai.RoleModel)},
		},
	}
}

package provider

import (
	"context"

	"github.com/scamwatch-ai/scamwatch/internal/chat"
)

// FakeProvider is a test double that returns canned content or a canned
// error. Respond, when set, takes precedence and lets tests vary the reply
// per call.
type FakeProvider struct {
	ResponseText string
	Error        error
	Respond      func(ctx context.Context, req *chat.Request) (string, error)
}

func (f *FakeProvider) ChatCompletion(ctx context.Context, req *chat.Request) (*chat.Response, error) {
	if f.Respond != nil {
		content, err := f.Respond(ctx, req)
		if err != nil {
			return nil, err
		}
		return fakeResponse(content), nil
	}

	if f.Error != nil {
		return nil, f.Error
	}
	return fakeResponse(f.ResponseText), nil
}

func fakeResponse(content string) *chat.Response {
	return &chat.Response{
		Message: chat.Message{
			Role:    chat.RoleAssistant,
			Content: content,
		},
		Usage: chat.Usage{
			PromptTokens:     2,
			CompletionTokens: 3,
			TotalTokens:      5,
		},
	}
}

func NewFake(response string) *FakeProvider {
	return &FakeProvider{ResponseText: response}
}

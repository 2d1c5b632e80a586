package detect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/scamwatch-ai/scamwatch/internal/analysis"
	"github.com/scamwatch-ai/scamwatch/internal/chat"
	"github.com/scamwatch-ai/scamwatch/internal/pattern"
	"github.com/scamwatch-ai/scamwatch/internal/provider"
)

// Options are the detector's default call parameters. Zero values defer to
// the provider's own defaults.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature *float64
}

// CallOption overrides a default for a single analyze call.
type CallOption func(*Options)

func WithModel(model string) CallOption {
	return func(o *Options) { o.Model = model }
}

func WithMaxTokens(n int) CallOption {
	return func(o *Options) { o.MaxTokens = n }
}

func WithTemperature(t float64) CallOption {
	return func(o *Options) { o.Temperature = &t }
}

// Detector orchestrates scam analysis: it renders the registered patterns
// and a post into a prompt, sends it through the injected provider, and maps
// the completion text into a DetectionResult. The registry is supplied by
// the caller; the detector never seeds or mutates it.
type Detector struct {
	provider provider.Provider
	registry *pattern.Registry
	opts     Options
}

// New creates a detector. The registry may be empty; analysis then falls
// back to general heuristics in the prompt.
func New(p provider.Provider, reg *pattern.Registry, opts Options) *Detector {
	if reg == nil {
		reg = pattern.NewRegistry()
	}
	return &Detector{provider: p, registry: reg, opts: opts}
}

// Registry returns the registry this detector reads patterns from.
func (d *Detector) Registry() *pattern.Registry {
	return d.registry
}

// Analyze runs one post through the model and returns the detection result.
// A transport or malformed-envelope failure from the provider propagates as
// an error; unparseable completion text does not, it degrades inside the
// result (see ParseResponse).
func (d *Detector) Analyze(ctx context.Context, post analysis.Post, opts ...CallOption) (*analysis.DetectionResult, error) {
	if strings.TrimSpace(post.Content) == "" {
		return nil, errors.New("post content must be set")
	}

	call := d.opts
	for _, opt := range opts {
		opt(&call)
	}

	// Snapshot the registry once; concurrent analyze calls share nothing
	// mutable beyond this read.
	userPrompt := UserPrompt(d.registry.Patterns(), post)

	req := &chat.Request{
		Model:       call.Model,
		MaxTokens:   call.MaxTokens,
		Temperature: call.Temperature,
		Messages: []chat.Message{
			{Role: chat.RoleSystem, Content: SystemPrompt},
			{Role: chat.RoleUser, Content: userPrompt},
		},
	}

	resp, err := d.provider.ChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("model call: %w", err)
	}

	result := ParseResponse(post, resp.Message.Content)
	return &result, nil
}

// AnalyzeText wraps plain text in a minimal post and analyzes it.
func (d *Detector) AnalyzeText(ctx context.Context, text string, opts ...CallOption) (*analysis.DetectionResult, error) {
	return d.Analyze(ctx, analysis.Post{Content: text}, opts...)
}

// BatchResult pairs one input post with its outcome. Err is set only for
// transport/envelope failures; a post whose completion merely failed to
// parse still carries a (degraded) Result.
type BatchResult struct {
	Post   analysis.Post
	Result *analysis.DetectionResult
	Err    error
}

// AnalyzeBatch analyzes posts sequentially. The returned slice has exactly
// one entry per input post, in input order. One post's failure is captured
// in its entry and never discards the rest of the batch.
func (d *Detector) AnalyzeBatch(ctx context.Context, posts []analysis.Post, opts ...CallOption) []BatchResult {
	results := make([]BatchResult, len(posts))
	for i, post := range posts {
		res, err := d.Analyze(ctx, post, opts...)
		results[i] = BatchResult{Post: post, Result: res, Err: err}
	}
	return results
}

// AnalyzeBatchConcurrent analyzes posts with up to maxInFlight requests in
// flight at once (0 means no ceiling). Results are correlated back to their
// input index, so order matches the input regardless of completion order.
func (d *Detector) AnalyzeBatchConcurrent(ctx context.Context, posts []analysis.Post, maxInFlight int, opts ...CallOption) []BatchResult {
	results := make([]BatchResult, len(posts))

	var sem chan struct{}
	if maxInFlight > 0 {
		sem = make(chan struct{}, maxInFlight)
	}

	var wg sync.WaitGroup
	for i, post := range posts {
		wg.Add(1)
		go func(i int, post analysis.Post) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			res, err := d.Analyze(ctx, post, opts...)
			results[i] = BatchResult{Post: post, Result: res, Err: err}
		}(i, post)
	}
	wg.Wait()

	return results
}

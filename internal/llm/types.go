package llm

// Provider is a text-completion backend. All callers in this module treat
// completions as enhancements: failures are caught at the call site and
// replaced with static fallbacks, never propagated.
type Provider interface {
	// Complete sends a system and user message pair and returns the model's
	// text response.
	Complete(system, user string, opts ...Option) (*Response, error)
}

type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

type Option func(*Options)

type Options struct {
	Model       string
	MaxTokens   int64
	Temperature float64
}

// WithModel overrides the configured default model for one call.
func WithModel(model string) Option {
	return func(o *Options) {
		if model != "" {
			o.Model = model
		}
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int64) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxTokens = n
		}
	}
}

type Response struct {
	Content string
	Usage   Usage
}

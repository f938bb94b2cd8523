package company

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/netmind-ai/autocompany/llm"
	"github.com/netmind-ai/autocompany/types"
)

// formatAttempts is the bound on consecutive formatting attempts for one
// step; exhausting it is fatal for the whole run.
const formatAttempts = 3

// FormatHistory is the formatter's conversation memory. One instance is
// created per orchestration run and passed explicitly; it is never shared
// between runs.
type FormatHistory struct {
	messages []types.Message
}

// NewFormatHistory creates an empty per-run history.
func NewFormatHistory() *FormatHistory {
	return &FormatHistory{}
}

// Add appends messages to the history.
func (h *FormatHistory) Add(msgs ...types.Message) {
	h.messages = append(h.messages, msgs...)
}

// Messages returns the accumulated messages.
func (h *FormatHistory) Messages() []types.Message {
	return append([]types.Message{}, h.messages...)
}

// Formatter turns free text plus a target agent's input schema into a
// structured parameter map via an LLM function call.
type Formatter struct {
	provider llm.Provider
	model    string
	logger   *zap.Logger
}

// FormatterOption configures a Formatter.
type FormatterOption func(*Formatter)

// WithFormatterModel overrides the provider's default model.
func WithFormatterModel(model string) FormatterOption {
	return func(f *Formatter) { f.model = model }
}

// WithFormatterLogger sets the formatter logger.
func WithFormatterLogger(logger *zap.Logger) FormatterOption {
	return func(f *Formatter) { f.logger = logger }
}

// NewFormatter creates an input formatter.
func NewFormatter(provider llm.Provider, opts ...FormatterOption) *Formatter {
	f := &Formatter{provider: provider, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With(zap.String("component", "input_formatter"))
	return f
}

// Format translates content into parameters matching schema. Failures are
// retried immediately up to formatAttempts; exhausting the attempts returns
// an error wrapping ErrFormatFailed. The exchange is appended to history so
// later steps can recover parameter values from earlier hand-offs.
func (f *Formatter) Format(ctx context.Context, history *FormatHistory, content string, schema types.ToolSchema) (map[string]any, error) {
	req := &llm.ChatRequest{
		Model:      f.model,
		Messages:   f.buildMessages(history, content),
		Tools:      []types.ToolSchema{schema},
		ToolChoice: schema.Name,
	}

	var lastErr error
	for attempt := 1; attempt <= formatAttempts; attempt++ {
		params, err := f.tryFormat(ctx, req)
		if err == nil {
			if history != nil {
				raw, _ := json.Marshal(params)
				history.Add(
					types.NewUserMessage(content),
					types.NewAssistantMessage(string(raw)),
				)
			}
			return params, nil
		}
		lastErr = err
		f.logger.Warn("input formatting attempt failed",
			zap.Int("attempt", attempt),
			zap.String("tool", schema.Name),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("%w: tool %s after %d attempts: %v",
		ErrFormatFailed, schema.Name, formatAttempts, lastErr)
}

func (f *Formatter) tryFormat(ctx context.Context, req *llm.ChatRequest) (map[string]any, error) {
	resp, err := f.provider.Completion(ctx, req)
	if err != nil {
		return nil, err
	}
	tc, ok := resp.FirstToolCall()
	if !ok {
		return nil, fmt.Errorf("response carried no tool call")
	}
	var params map[string]any
	if err := json.Unmarshal(tc.Arguments, &params); err != nil {
		return nil, fmt.Errorf("tool call arguments are not a JSON object: %w", err)
	}
	return params, nil
}

func (f *Formatter) buildMessages(history *FormatHistory, content string) []types.Message {
	system := inputFormatTemplate[0]
	user := inputFormatTemplate[1]
	user.Content = strings.ReplaceAll(user.Content, "{input_content}", content)

	msgs := make([]types.Message, 0, 2)
	msgs = append(msgs, system)
	if history != nil {
		msgs = append(msgs, history.Messages()...)
	}
	return append(msgs, user)
}

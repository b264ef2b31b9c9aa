package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared"

	"github.com/nordvoice/attendant/internal/attendant/profile"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"

	// DefaultRequestTimeout is tight compared to text chat: a stalled
	// completion is dead air on a phone line.
	DefaultRequestTimeout = 30 * time.Second

	DefaultMaxToolCalls = 4

	// maxRetries stays low for the same latency reason.
	maxRetries = 2
)

// Config holds the chat-completion settings for a ChatEngine.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	MaxToolCalls   int
	RequestTimeout time.Duration
}

// ChatEngine implements TurnEngine on OpenAI chat completions. It keeps
// the whole conversation as completion messages and loops on tool calls
// within a turn until the model produces plain text.
//
// Not safe for concurrent turns; the session controller serializes them.
type ChatEngine struct {
	cfg    Config
	httpc  *http.Client
	logger *slog.Logger

	client   openaigo.Client
	tools    *Registry
	oaTools  []openaigo.ChatCompletionToolUnionParam
	messages []openaigo.ChatCompletionMessageParamUnion
	started  bool
}

// NewChatEngine creates an engine with the given settings. Zero-valued
// fields fall back to package defaults; the API key is validated at Start.
func NewChatEngine(cfg Config, logger *slog.Logger) *ChatEngine {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxToolCalls <= 0 {
		cfg.MaxToolCalls = DefaultMaxToolCalls
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatEngine{
		cfg:    cfg,
		httpc:  &http.Client{Timeout: cfg.RequestTimeout},
		logger: logger,
	}
}

// Start prepares the conversation: system prompt from the profile, the
// greeting as the first assistant message, and the registry's tools in
// OpenAI function form.
func (e *ChatEngine) Start(ctx context.Context, prof *profile.BehaviorProfile, tools *Registry) error {
	if strings.TrimSpace(e.cfg.APIKey) == "" {
		return fmt.Errorf("engine config incomplete: api key is required")
	}
	if e.started {
		return fmt.Errorf("engine already started")
	}

	e.client = openaigo.NewClient(
		option.WithBaseURL(strings.TrimRight(e.cfg.BaseURL, "/")),
		option.WithAPIKey(strings.TrimSpace(e.cfg.APIKey)),
		option.WithHTTPClient(e.httpc),
		option.WithMaxRetries(maxRetries),
		option.WithRequestTimeout(e.cfg.RequestTimeout),
	)

	e.tools = tools
	e.oaTools = functionTools(tools)

	e.messages = e.messages[:0]
	e.messages = append(e.messages, openaigo.SystemMessage(strings.TrimSpace(prof.SystemPrompt)))
	if prof.FirstMessage != "" {
		// The controller speaks the greeting; the model just needs to
		// know it already happened.
		e.messages = append(e.messages, openaigo.AssistantMessage(prof.FirstMessage))
	}

	e.started = true
	e.logger.Debug("[Engine] Started",
		"model", e.cfg.Model,
		"tools", len(e.oaTools),
	)
	return nil
}

// functionTools converts registry definitions to OpenAI function tools.
func functionTools(reg *Registry) []openaigo.ChatCompletionToolUnionParam {
	if reg == nil || reg.Len() == 0 {
		return nil
	}
	out := make([]openaigo.ChatCompletionToolUnionParam, 0, reg.Len())
	for _, t := range reg.Tools() {
		def := t.Definition()
		out = append(out, openaigo.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        t.Name(),
			Description: param.NewOpt(def.Description),
			Strict:      param.NewOpt(true),
			Parameters: shared.FunctionParameters{
				"type":                 "object",
				"properties":           def.Parameters,
				"required":             def.Required,
				"additionalProperties": false,
			},
		}))
	}
	return out
}

// HandleTurn appends the utterance, runs completions until the model stops
// calling tools, and returns the plain-text reply.
func (e *ChatEngine) HandleTurn(ctx context.Context, utterance string) (string, error) {
	if !e.started {
		return "", fmt.Errorf("engine not started")
	}

	e.messages = append(e.messages, openaigo.UserMessage(strings.TrimSpace(utterance)))

	for i := 0; i <= e.cfg.MaxToolCalls; i++ {
		params := openaigo.ChatCompletionNewParams{
			Model:    openaigo.ChatModel(e.cfg.Model),
			Messages: e.messages,
		}
		if len(e.oaTools) > 0 {
			params.Tools = e.oaTools
		}

		resp, err := e.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("chat completion: %w", err)
		}
		if resp == nil || len(resp.Choices) == 0 {
			return "", fmt.Errorf("chat completion returned empty choices")
		}
		msg := resp.Choices[0].Message

		if len(msg.ToolCalls) > 0 {
			e.messages = append(e.messages, msg.ToParam())

			for _, tc := range msg.ToolCalls {
				if strings.TrimSpace(tc.Type) != "function" {
					b, _ := json.Marshal(tc)
					e.messages = append(e.messages, openaigo.ToolMessage(string(b), tc.ID))
					continue
				}
				call := tc.AsFunction()
				payload := e.execute(ctx, strings.TrimSpace(call.Function.Name), call.Function.Arguments)
				b, _ := json.Marshal(payload)
				e.messages = append(e.messages, openaigo.ToolMessage(string(b), tc.ID))
			}
			continue
		}

		e.messages = append(e.messages, msg.ToParam())
		return strings.TrimSpace(msg.Content), nil
	}

	return "", fmt.Errorf("tool loop exceeded after %d rounds", e.cfg.MaxToolCalls)
}

// execute runs one tool call and returns the payload for the tool message.
// Tool failures are reported back to the model, never up the stack.
func (e *ChatEngine) execute(ctx context.Context, name, rawArgs string) any {
	tool, ok := e.tools.Get(name)
	if !ok {
		e.logger.Warn("[Engine] Unknown tool requested", "tool", name)
		return map[string]any{"error": "unknown tool: " + name}
	}

	var args map[string]any
	_ = json.Unmarshal([]byte(rawArgs), &args)
	if args == nil {
		args = map[string]any{}
	}

	e.logger.Debug("[Engine] Tool call", "tool", name)

	payload, err := tool.Execute(ctx, args)
	if err != nil {
		e.logger.Warn("[Engine] Tool failed", "tool", name, "error", err)
		return map[string]any{"error": err.Error()}
	}
	if payload == nil {
		payload = map[string]any{"status": "ok"}
	}
	return payload
}

// Close discards the conversation state.
func (e *ChatEngine) Close() error {
	e.messages = nil
	e.started = false
	return nil
}

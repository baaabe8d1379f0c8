package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rubii22/chatbot-for-todoapp/internal/httpkit"
)

const defaultOpenRouterURL = "https://openrouter.ai/api/v1"

// OpenRouterClient is a client for the OpenRouter chat completions API,
// which speaks the OpenAI chat-completions wire format.
type OpenRouterClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenRouterClient creates a new OpenRouter client. baseURL may be empty
// to use the public endpoint.
func NewOpenRouterClient(apiKey, baseURL string, logger *slog.Logger) *OpenRouterClient {
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" {
		baseURL = defaultOpenRouterURL
	}
	// Completions can take a while before headers arrive (long prompts,
	// model cold starts). Use a custom transport with a generous response
	// header timeout and rely on ctx deadlines for overall control.
	t := httpkit.NewTransport()
	t.ResponseHeaderTimeout = 120 * time.Second

	return &OpenRouterClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		logger:  logger.With("provider", "openrouter"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(0),
			httpkit.WithTransport(t),
		),
	}
}

// OpenAI chat-completions wire types. Tool call arguments travel as a JSON
// string on the wire; conversion to map[string]any happens here.

type openAIRequest struct {
	Model       string           `json:"model"`
	Messages    []openAIMessage  `json:"messages"`
	Tools       []map[string]any `json:"tools,omitempty"`
	ToolChoice  string           `json:"tool_choice,omitempty"`
	Temperature float64          `json:"temperature"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Name       string           `json:"name,omitempty"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Created int64  `json:"created"`
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Chat sends a chat completion request.
func (c *OpenRouterClient) Chat(ctx context.Context, model string, messages []Message, tools []map[string]any, toolChoice string) (*ChatResponse, error) {
	req := openAIRequest{
		Model:       model,
		Messages:    convertToOpenAI(messages),
		Temperature: 0.7,
	}
	if len(tools) > 0 && toolChoice != ToolChoiceNone {
		req.Tools = tools
		req.ToolChoice = toolChoice
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Debug("preparing request",
		"model", model,
		"messages", len(req.Messages),
		"tools", len(req.Tools),
		"tool_choice", req.ToolChoice,
	)
	c.logger.Log(ctx, LevelTrace, "request payload", "json", string(jsonData))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		c.logger.Error("API error", "status", resp.StatusCode, "body", errBody)
		return nil, fmt.Errorf("openrouter API error %d: %s", resp.StatusCode, errBody)
	}

	var wire openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(wire.Choices) == 0 {
		return nil, fmt.Errorf("empty response: no choices")
	}

	result := convertFromOpenAI(&wire)

	c.logger.Debug("response received",
		"model", result.Model,
		"finish_reason", result.FinishReason,
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
		"tool_calls", len(result.Message.ToolCalls),
	)
	c.logger.Log(ctx, LevelTrace, "response content", "content", result.Message.Content)

	return result, nil
}

// Ping checks if the OpenRouter API is reachable and the key is valid.
func (c *OpenRouterClient) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("invalid API key")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status from OpenRouter API: %d", resp.StatusCode)
	}
	return nil
}

// convertToOpenAI converts internal messages to the wire format.
// Tool call arguments are re-encoded as JSON strings.
func convertToOpenAI(messages []Message) []openAIMessage {
	result := make([]openAIMessage, 0, len(messages))
	for _, msg := range messages {
		m := openAIMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
			Name:       msg.Name,
		}
		for _, tc := range msg.ToolCalls {
			args := tc.Function.Arguments
			if args == nil {
				args = map[string]any{}
			}
			encoded, err := json.Marshal(args)
			if err != nil {
				encoded = []byte("{}")
			}
			wc := openAIToolCall{ID: tc.ID, Type: "function"}
			wc.Function.Name = tc.Function.Name
			wc.Function.Arguments = string(encoded)
			m.ToolCalls = append(m.ToolCalls, wc)
		}
		result = append(result, m)
	}
	return result
}

// convertFromOpenAI converts a wire response to our internal format.
// Malformed argument payloads are preserved under "_raw" rather than
// dropped, so the dispatch layer can reject them explicitly.
func convertFromOpenAI(wire *openAIResponse) *ChatResponse {
	choice := wire.Choices[0]

	msg := Message{
		Role:    choice.Message.Role,
		Content: choice.Message.Content,
	}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				args = map[string]any{"_raw": tc.Function.Arguments}
			}
		}
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID: tc.ID,
			Function: FunctionCall{
				Name:      tc.Function.Name,
				Arguments: args,
			},
		})
	}

	return &ChatResponse{
		Model:        wire.Model,
		CreatedAt:    time.Unix(wire.Created, 0),
		Message:      msg,
		FinishReason: choice.FinishReason,
		InputTokens:  wire.Usage.PromptTokens,
		OutputTokens: wire.Usage.CompletionTokens,
	}
}

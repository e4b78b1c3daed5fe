package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"
	"unicode/utf8"

	"invox/internal/config"
	"invox/internal/domain"
	"invox/internal/parser"
	"invox/internal/resilience"
)

const apiURL = "https://api.openai.com/v1/chat/completions"

// Client extracts structured invoices through the OpenAI Chat Completions
// API. It holds no per-request state; every call is self-contained.
type Client struct {
	apiKey       string
	model        string
	endpoint     string
	temperature  float64
	maxTokens    int
	maxLineItems int
	httpClient   *http.Client
	exec         *resilience.Executor
	logger       *slog.Logger
}

// NewClient creates an OpenAI-backed invoice extractor.
func NewClient(cfg *config.OpenAIConfig, maxLineItems int, exec *resilience.Executor, logger *slog.Logger) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = apiURL
	}
	return newClient(cfg, endpoint, maxLineItems, exec, logger)
}

// NewClientWithEndpoint creates a client pointing at a custom API endpoint (for testing).
func NewClientWithEndpoint(cfg *config.OpenAIConfig, endpoint string, maxLineItems int, exec *resilience.Executor, logger *slog.Logger) *Client {
	return newClient(cfg, endpoint, maxLineItems, exec, logger)
}

func newClient(cfg *config.OpenAIConfig, endpoint string, maxLineItems int, exec *resilience.Executor, logger *slog.Logger) *Client {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiKey:       cfg.APIKey,
		model:        model,
		endpoint:     endpoint,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		maxLineItems: maxLineItems,
		httpClient:   &http.Client{Timeout: timeout},
		exec:         exec,
		logger:       logger,
	}
}

// Extract sends the document to the model and assembles the validated
// invoice tree with its extraction metadata.
func (c *Client) Extract(ctx context.Context, content []byte, filename, mimeType string) (*domain.Invoice, error) {
	start := time.Now()
	format := domain.DetectSourceFormat(mimeType)

	messages := buildMessages(content, mimeType, format)
	reqBody := map[string]interface{}{
		"model":       c.model,
		"temperature": c.temperature,
		"max_tokens":  c.maxTokens,
		"messages":    messages,
		"response_format": map[string]interface{}{
			"type": "json_object",
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var resp apiResponse
	err = c.exec.Execute(ctx, "openai.chat_completion", func(ctx context.Context) error {
		return c.send(ctx, bodyBytes, &resp)
	}, parser.Classify)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, &parser.MalformedResponseError{
			Err: fmt.Errorf("empty response from API: no choices"),
		}
	}
	if resp.Choices[0].FinishReason == "length" {
		return nil, &parser.MalformedResponseError{
			Err: fmt.Errorf("output truncated (finish_reason: length)"),
		}
	}

	text := resp.Choices[0].Message.Content

	var inv domain.Invoice
	if err := json.Unmarshal([]byte(text), &inv); err != nil {
		return nil, &parser.MalformedResponseError{Err: err, Raw: truncate(text, 500)}
	}

	inv.Normalize()

	if err := inv.Validate(c.maxLineItems); err != nil {
		return nil, &parser.SchemaError{Err: err}
	}

	elapsed := time.Since(start).Seconds()
	inv.Meta = domain.Metadata{
		SourceFileName:        filename,
		SourceFormat:          format,
		ModelVersion:          modelVersion(resp.Model, c.model),
		ProcessingTimeSeconds: math.Round(elapsed*1000) / 1000,
		OverallConfidence:     overallConfidence(&inv),
	}

	c.logger.Info("invoice extracted",
		"filename", filename,
		"format", format,
		"model", inv.Meta.ModelVersion,
		"elapsed_seconds", inv.Meta.ProcessingTimeSeconds,
		"overall_confidence", inv.Meta.OverallConfidence,
	)

	return &inv, nil
}

func (c *Client) send(ctx context.Context, body []byte, out *apiResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &parser.UpstreamError{Provider: "openai", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &parser.UpstreamError{Provider: "openai", Err: fmt.Errorf("reading response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parser.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
		baseErr := fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, truncate(string(respBody), 200))
		return parser.NewRateLimitError("openai", baseErr, retryAfter)
	case resp.StatusCode >= 500:
		return &parser.UpstreamError{
			Provider:   "openai",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", truncate(string(respBody), 200)),
		}
	default:
		return fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &parser.MalformedResponseError{Err: err, Raw: truncate(string(respBody), 500)}
	}
	return nil
}

// buildMessages constructs the chat payload: PDFs and images travel as
// base64 data URIs for vision processing, text is inlined directly.
func buildMessages(content []byte, mimeType string, format domain.SourceFormat) []map[string]interface{} {
	messages := []map[string]interface{}{
		{"role": "system", "content": parser.BuildInvoicePrompt()},
	}

	switch format {
	case domain.FormatPDF, domain.FormatImage:
		encoded := base64.StdEncoding.EncodeToString(content)
		dataURI := fmt.Sprintf("data:%s;base64,%s", mimeType, encoded)

		var blocks []map[string]interface{}
		if format == domain.FormatPDF {
			blocks = append(blocks, map[string]interface{}{
				"type": "file",
				"file": map[string]interface{}{
					"filename":  "document.pdf",
					"file_data": dataURI,
				},
			})
		} else {
			blocks = append(blocks, map[string]interface{}{
				"type": "image_url",
				"image_url": map[string]interface{}{
					"url": dataURI,
				},
			})
		}
		blocks = append(blocks, map[string]interface{}{
			"type": "text",
			"text": "Please extract all invoice information from this document according to the schema provided.",
		})
		messages = append(messages, map[string]interface{}{
			"role":    "user",
			"content": blocks,
		})
	default:
		messages = append(messages, map[string]interface{}{
			"role":    "user",
			"content": "Please extract all invoice information from this text:\n\n" + decodeText(content),
		})
	}

	return messages
}

// decodeText interprets content as UTF-8, falling back to Latin-1 when the
// bytes are not valid UTF-8.
func decodeText(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	runes := make([]rune, len(content))
	for i, b := range content {
		runes[i] = rune(b)
	}
	return string(runes)
}

// apiResponse models the OpenAI Chat Completions API response.
type apiResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// modelVersion prefers the model identifier reported by the API over the
// one we asked for.
func modelVersion(reported, requested string) string {
	if reported != "" {
		return reported
	}
	return requested
}

// overallConfidence is the unweighted mean over every scored field, rounded
// to two decimals. Populated for display; acceptance is the confidence
// gate's job.
func overallConfidence(inv *domain.Invoice) float64 {
	scores := inv.ConfidenceScores()
	if len(scores) == 0 {
		return 0.0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return math.Round(sum/float64(len(scores))*100) / 100
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

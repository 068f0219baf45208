/*
Package geminiservice is the HTTP transport to the Gemini generateContent API.
It knows nothing about assessments, chats or places; callers build a Payload and
receive the model's text back.
*/
package geminiservice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// --- Gemini API Configuration ---
const (
	DefaultBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel       = "gemini-2.5-flash"
	defaultMaxAttempts = 1
	initialBackoff     = 1 * time.Second
	requestTimeout     = 60 * time.Second
	StructuredMimeType = "application/json"

	RoleUser  = "user"
	RoleModel = "model"

	// genericFailureMessage is surfaced when the backend gives no message of its own.
	genericFailureMessage = "the AI service failed to process the request"
)

var (
	// ErrNotConfigured is returned before any network call when no API key is set.
	ErrNotConfigured = errors.New("server is not configured for AI requests: GEMINI_API_KEY is not set")
)

// APIError is a transport or service failure reported by the Gemini backend.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = genericFailureMessage
	}
	if e.StatusCode == 0 {
		return msg
	}
	return fmt.Sprintf("gemini API %d: %s", e.StatusCode, msg)
}

// UserMessage is the backend's own message, or a generic one when it gave none.
func (e *APIError) UserMessage() string {
	if e.Message == "" {
		return genericFailureMessage
	}
	return e.Message
}

// Retryable reports whether another attempt may succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// --- Structs for Gemini API Request/Response ---

type Payload struct {
	Contents          []Content         `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
	Tools             []Tool            `json:"tools,omitempty"`
	ToolConfig        *ToolConfig       `json:"toolConfig,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData carries base64 encoded media inside a request.
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type GenerationConfig struct {
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
	ResponseSchema   *Schema  `json:"responseSchema,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
}

// Tool enables a server-side capability. Only Google Maps grounding is used here.
type Tool struct {
	GoogleMaps *GoogleMaps `json:"googleMaps,omitempty"`
}

type GoogleMaps struct{}

type ToolConfig struct {
	RetrievalConfig *RetrievalConfig `json:"retrievalConfig,omitempty"`
}

type RetrievalConfig struct {
	LatLng *LatLng `json:"latLng,omitempty"`
}

type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Response struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// --- Payload helpers ---

// TextPart builds a plain text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// MediaPart base64 encodes raw bytes into an inline data part.
func MediaPart(mimeType string, data []byte) Part {
	return Part{InlineData: &InlineData{
		MimeType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(data),
	}}
}

// SystemText wraps a system instruction string.
func SystemText(text string) *Content {
	return &Content{Parts: []Part{{Text: text}}}
}

// Temperature returns a pointer so a zero temperature is still sent.
func Temperature(t float64) *float64 {
	return &t
}

// --- Client ---

// Generator is anything able to turn a payload into model text.
type Generator interface {
	Configured() bool
	GenerateContent(ctx context.Context, payload *Payload) (string, error)
}

// Options configures a Client.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
	HTTPClient  *http.Client
}

// Client calls generateContent on a single model.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	maxAttempts int
	backoff     time.Duration
	http        *http.Client
}

// NewClient applies defaults to opts and returns a ready client.
// A client without an API key is valid; every call on it returns ErrNotConfigured.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = requestTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = initialBackoff
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		apiKey:      opts.APIKey,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		model:       opts.Model,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		http:        httpClient,
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Model returns the model name requests are sent to.
func (c *Client) Model() string {
	return c.model
}

func (c *Client) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
}

// GenerateContent sends payload and returns the concatenated text of the first
// candidate. An empty string with a nil error means the model produced no text;
// deciding whether that is a failure is up to the caller.
func (c *Client) GenerateContent(ctx context.Context, payload *Payload) (string, error) {
	log := zerolog.Ctx(ctx)

	if !c.Configured() {
		log.Error().Msg("GEMINI_API_KEY environment variable is not set")
		return "", ErrNotConfigured
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	var lastErr error
	for i := 0; i < c.maxAttempts; i++ {
		if i > 0 {
			wait := c.backoff * time.Duration(math.Pow(2, float64(i-1)))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}

		log.Debug().Int("attempt", i+1).Str("model", c.model).Msg("Calling Gemini API")

		text, err := c.do(ctx, payloadBytes)
		if err == nil {
			return text, nil
		}
		lastErr = err

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.Retryable() || ctx.Err() != nil {
			return "", err
		}
		log.Warn().Err(err).Int("attempt", i+1).Msg("Gemini attempt failed")
	}

	if c.maxAttempts == 1 {
		return "", lastErr
	}
	return "", fmt.Errorf("failed to call Gemini API after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *Client) do(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &APIError{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &APIError{StatusCode: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Status: resp.Status}
		var er errorResponse
		if json.Unmarshal(raw, &er) == nil {
			apiErr.Message = er.Error.Message
		}
		return "", apiErr
	}

	var geminiResp Response
	if err := json.Unmarshal(raw, &geminiResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return geminiResp.Text(), nil
}

// Text joins the text parts of the first candidate.
func (r *Response) Text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

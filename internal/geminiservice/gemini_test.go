package geminiservice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textResponse(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	})
	return string(b)
}

func TestGenerateContent_NotConfigured(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	_, err := c.GenerateContent(context.Background(), &Payload{})

	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Zero(t, atomic.LoadInt32(&calls), "no request may leave without a key")
}

func TestGenerateContent_SendsPayload(t *testing.T) {
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		io.WriteString(w, textResponse("hello"))
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "k", BaseURL: srv.URL, Model: "test-model"})
	text, err := c.GenerateContent(context.Background(), &Payload{
		Contents: []Content{{Role: RoleUser, Parts: []Part{TextPart("hi"), MediaPart("image/png", []byte{1, 2, 3})}}},
		GenerationConfig: &GenerationConfig{
			ResponseMimeType: StructuredMimeType,
			Temperature:      Temperature(0),
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	require.Len(t, got.Contents, 1)
	assert.Equal(t, "AQID", got.Contents[0].Parts[1].InlineData.Data)
	require.NotNil(t, got.GenerationConfig.Temperature)
	assert.Equal(t, 0.0, *got.GenerationConfig.Temperature)
}

func TestGenerateContent_JoinsParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"a"},{"text":"b"}]}}]}`)
	}))
	defer srv.Close()

	text, err := NewClient(Options{APIKey: "k", BaseURL: srv.URL}).GenerateContent(context.Background(), &Payload{})
	require.NoError(t, err)
	assert.Equal(t, "ab", text)
}

func TestGenerateContent_NoCandidatesIsEmptyText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	}))
	defer srv.Close()

	text, err := NewClient(Options{APIKey: "k", BaseURL: srv.URL}).GenerateContent(context.Background(), &Payload{})
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestGenerateContent_APIErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`)
	}))
	defer srv.Close()

	_, err := NewClient(Options{APIKey: "k", BaseURL: srv.URL}).GenerateContent(context.Background(), &Payload{})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "API key not valid")
}

func TestGenerateContent_APIErrorGenericMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "<html>bad gateway</html>")
	}))
	defer srv.Close()

	_, err := NewClient(Options{APIKey: "k", BaseURL: srv.URL}).GenerateContent(context.Background(), &Payload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), genericFailureMessage)
}

func TestGenerateContent_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, textResponse("ok"))
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "k", BaseURL: srv.URL, MaxAttempts: 2, Backoff: time.Millisecond})
	text, err := c.GenerateContent(context.Background(), &Payload{})

	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestGenerateContent_SingleAttemptByDefault(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(Options{APIKey: "k", BaseURL: srv.URL}).GenerateContent(context.Background(), &Payload{})
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestSchemaRequiredMissing(t *testing.T) {
	s := Object("", map[string]*Schema{"a": String(""), "b": String("")}, "a", "b")
	assert.Equal(t, []string{"b"}, s.RequiredMissing(map[string]any{"a": "x"}))
	assert.Empty(t, s.RequiredMissing(map[string]any{"a": 1, "b": 2}))
}

func TestSchemaMarshalsEnumAndBounds(t *testing.T) {
	b, err := json.Marshal(Object("", map[string]*Schema{
		"risk":  Enum("", "low", "urgent"),
		"score": Number("", 0, 1),
	}, "risk"))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type":"OBJECT",
		"properties":{
			"risk":{"type":"STRING","format":"enum","enum":["low","urgent"]},
			"score":{"type":"NUMBER","minimum":0,"maximum":1}
		},
		"required":["risk"]
	}`, string(b))
}

package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"CareLens/internal/config"
	"CareLens/internal/conversation"
	"CareLens/internal/geminiservice/geminitest"
	"CareLens/internal/utility"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const assessmentJSON = `{
	"risk_level": "medium",
	"risk_reasoning": "Redness without fever.",
	"visual_confidence_score": 0.7,
	"symptom_severity": "mild",
	"visual_findings_summary": "Small red patch on the forearm.",
	"symptom_summary": "Itching for two days.",
	"possible_factors": ["contact irritation"],
	"recommended_actions": ["Keep the area clean"],
	"urgent_signs_to_watch": ["Spreading redness"],
	"do_list": ["Use a mild soap"],
	"avoid_list": ["Scratching"],
	"doctor_questions": ["Could this be an allergy?"],
	"user_friendly_summary": "This looks like mild skin irritation.",
	"disclaimer": "This is not a diagnosis."
}`

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func testConfig() *config.Config {
	return &config.Config{
		Port:               8080,
		AppEnv:             "test",
		GeminiTimeout:      time.Second,
		SessionSecret:      "test-secret-key-0123456789abcdef",
		SessionCapacity:    10,
		SessionTTL:         time.Hour,
		MaxUploadBytes:     1 << 20,
		RateLimitPerMinute: 100,
	}
}

func newTestServer(fake *geminitest.Fake) (*Server, http.Handler) {
	s := New(testConfig(), fake)
	return s, s.RegisterRoutes()
}

func uploadRequest(t *testing.T, data []byte, description string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", "upload.bin")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	if description != "" {
		require.NoError(t, w.WriteField("description", description))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/cases", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func createCase(t *testing.T, h http.Handler) (CaseResponse, []*http.Cookie) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, pngHeader, "  itchy for two days "))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp CaseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp, rec.Result().Cookies()
}

func TestCreateCase(t *testing.T) {
	fake := geminitest.Text(assessmentJSON)
	s, h := newTestServer(fake)

	resp, cookies := createCase(t, h)

	assert.NotEmpty(t, resp.CaseID)
	assert.Equal(t, "Image", string(resp.Modality))
	assert.Equal(t, "medium", string(resp.Assessment.RiskLevel))
	assert.Equal(t, []string{"Could this be an allergy?"}, resp.ConversationStarters)
	assert.Empty(t, resp.Transcript)
	assert.Equal(t, 1, fake.Calls())
	assert.Equal(t, 1, s.conversations.Len())
	assert.NotEmpty(t, cookies, "the case should be bound to the browser")

	sent := fake.Last()
	require.Len(t, sent.Contents, 1)
	assert.Contains(t, sent.Contents[0].Parts[0].Text, `User description: "itchy for two days"`)
	assert.Equal(t, "image/png", sent.Contents[0].Parts[1].InlineData.MimeType)
}

func TestCreateCaseReplacesPreviousCase(t *testing.T) {
	s, h := newTestServer(geminitest.Text(assessmentJSON))

	first, cookies := createCase(t, h)

	req := uploadRequest(t, pngHeader, "")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	_, ok := s.conversations.Get(first.CaseID)
	assert.False(t, ok, "the previous case should be dropped")
	assert.Equal(t, 1, s.conversations.Len())
}

func TestCreateCaseErrors(t *testing.T) {
	t.Run("unsupported media", func(t *testing.T) {
		fake := geminitest.Text(assessmentJSON)
		_, h := newTestServer(fake)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, uploadRequest(t, []byte("just some plain text"), ""))
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		assert.Zero(t, fake.Calls())
	})

	t.Run("missing file", func(t *testing.T) {
		_, h := newTestServer(geminitest.Text(assessmentJSON))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/cases", `{}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not configured", func(t *testing.T) {
		fake := geminitest.Text(assessmentJSON)
		fake.Unconfigured = true
		_, h := newTestServer(fake)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, uploadRequest(t, pngHeader, ""))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "not configured")
		assert.Zero(t, fake.Calls())
	})

	t.Run("invalid model output", func(t *testing.T) {
		s, h := newTestServer(geminitest.Text("not json at all"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, uploadRequest(t, pngHeader, ""))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Zero(t, s.conversations.Len())
	})
}

func TestGetCase(t *testing.T) {
	_, h := newTestServer(geminitest.Text(assessmentJSON))
	created, _ := createCase(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cases/"+created.CaseID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CaseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, created.CaseID, resp.CaseID)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cases/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChat(t *testing.T) {
	fake := geminitest.New(
		geminitest.Reply{Text: assessmentJSON},
		geminitest.Reply{Text: "Keep it **clean** and dry."},
	)
	s, h := newTestServer(fake)
	created, _ := createCase(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/cases/"+created.CaseID+"/chat", `{"message":"What should I do?"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Keep it **clean** and dry.", resp.Reply)

	// Seed turns plus the new question go to the backend.
	assert.Len(t, fake.Last().Contents, 3)

	sess, ok := s.conversations.Get(created.CaseID)
	require.True(t, ok)
	assert.Len(t, sess.Transcript(), 2)
}

func TestChatEmptyMessage(t *testing.T) {
	fake := geminitest.Text(assessmentJSON)
	_, h := newTestServer(fake)
	created, _ := createCase(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/cases/"+created.CaseID+"/chat", `{"message":"   "}`))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, fake.Calls())
}

func TestChatFailureAddsRecoveryTurn(t *testing.T) {
	fake := geminitest.New(
		geminitest.Reply{Text: assessmentJSON},
		geminitest.Reply{Err: errors.New("backend down")},
	)
	s, h := newTestServer(fake)
	created, _ := createCase(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/cases/"+created.CaseID+"/chat", `{"message":"Is it serious?"}`))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, recoveryReply, resp.Reply)
	assert.NotEmpty(t, resp.Error)

	sess, _ := s.conversations.Get(created.CaseID)
	transcript := sess.Transcript()
	require.Len(t, transcript, 2)
	assert.Equal(t, conversation.RoleUser, transcript[0].Role)
	assert.Equal(t, conversation.RoleModel, transcript[1].Role)
	assert.True(t, transcript[1].Recovery)
}

func TestChatUnknownCase(t *testing.T) {
	_, h := newTestServer(geminitest.Text(assessmentJSON))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/cases/missing/chat", `{"message":"hi"}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatSocket(t *testing.T) {
	fake := geminitest.New(
		geminitest.Reply{Text: assessmentJSON},
		geminitest.Reply{Text: "Rest and watch for spreading redness."},
	)
	s, h := newTestServer(fake)
	created, _ := createCase(t, h)

	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/cases/" + created.CaseID + "/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("What now?")))

	var frame utility.ChatFrame
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "model", frame.Role)
	assert.Equal(t, "Rest and watch for spreading redness.", frame.Text)
	assert.Empty(t, frame.Error)
	assert.Equal(t, 1, s.hub.Len())
}

func TestEvictedCaseClosesSocket(t *testing.T) {
	cfg := testConfig()
	cfg.SessionCapacity = 1
	s := New(cfg, geminitest.Text(assessmentJSON))
	h := s.RegisterRoutes()
	first, _ := createCase(t, h)

	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/cases/" + first.CaseID + "/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	// Another browser's case pushes the first one out of the store.
	createCase(t, h)
	_, ok := s.conversations.Get(first.CaseID)
	require.False(t, ok)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.Zero(t, s.hub.Len())
}

func TestPlaces(t *testing.T) {
	fake := geminitest.Text("```json\n" + `{"places":[{"name":"City Clinic","latitude":1.01,"longitude":2.02,"address":"1 Main St","rating":4.5,"reason":"Open now"}]}` + "\n```")
	_, h := newTestServer(fake)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/places", `{"latitude":1,"longitude":2,"context":"rash","risk_level":"low"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Places []struct {
			Name   string `json:"name"`
			Rating string `json:"rating"`
		} `json:"places"`
		SearchCenter struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"search_center"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Places, 1)
	assert.Equal(t, "City Clinic", resp.Places[0].Name)
	assert.Equal(t, "4.5", resp.Places[0].Rating)
	assert.Equal(t, 1.0, resp.SearchCenter.Lat)
	assert.Equal(t, 2.0, resp.SearchCenter.Lng)
}

func TestPlacesUnparseableAnswerIsEmpty(t *testing.T) {
	_, h := newTestServer(geminitest.Text("Sorry, I could not find anything."))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/places", `{"latitude":10,"longitude":20}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"places":[]`)
}

func TestPlacesValidation(t *testing.T) {
	fake := geminitest.Text(`{"places":[]}`)
	_, h := newTestServer(fake)

	for _, body := range []string{`{"latitude":1}`, `{"latitude":95,"longitude":2}`, `not json`} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/places", body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Zero(t, fake.Calls())
}

func TestCasePlacesUsesAssessment(t *testing.T) {
	fake := geminitest.New(
		geminitest.Reply{Text: assessmentJSON},
		geminitest.Reply{Text: `{"places":[]}`},
	)
	_, h := newTestServer(fake)
	created, _ := createCase(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/cases/"+created.CaseID+"/places", `{"latitude":1,"longitude":2}`))
	require.Equal(t, http.StatusOK, rec.Code)

	sent := fake.Last()
	require.Len(t, sent.Tools, 1)
	assert.NotNil(t, sent.Tools[0].GoogleMaps)
	assert.Contains(t, sent.Contents[0].Parts[0].Text, "Small red patch on the forearm.")
}

func TestResetSession(t *testing.T) {
	s, h := newTestServer(geminitest.Text(assessmentJSON))
	created, cookies := createCase(t, h)

	req := httptest.NewRequest(http.MethodDelete, "/api/session", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, ok := s.conversations.Get(created.CaseID)
	assert.False(t, ok)
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(geminitest.Text(assessmentJSON))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "up", body["status"])
	assert.Equal(t, true, body["ai_configured"])
	assert.EqualValues(t, 0, body["active_conversations"])
	assert.Contains(t, body, "server_health")
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 1
	h := New(cfg, geminitest.Text(`{"places":[]}`)).RegisterRoutes()

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/places", `{"latitude":1,"longitude":2}`))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 2
	h := New(cfg, geminitest.Text(`{"places":[]}`)).RegisterRoutes()

	codes := map[int]int{}
	for i := 0; i < 20; i++ {
		req := jsonRequest(http.MethodPost, "/api/places", `{"latitude":1,"longitude":2}`)
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes[rec.Code]++
	}
	assert.Equal(t, map[int]int{http.StatusOK: 2, http.StatusTooManyRequests: 18}, codes)
}

func TestRateLimitTrustedProxy(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 1
	cfg.TrustedProxies = []string{"192.0.2.0/24"}
	h := New(cfg, geminitest.Text(`{"places":[]}`)).RegisterRoutes()

	// Behind a trusted proxy each forwarded client gets its own bucket.
	for i := 0; i < 3; i++ {
		req := jsonRequest(http.MethodPost, "/api/places", `{"latitude":1,"longitude":2}`)
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

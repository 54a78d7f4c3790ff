package mockgemini_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/prospect-pipeline/internal/lead"
	"github.com/shpitdev/prospect-pipeline/internal/mockgemini"
)

const reqBody = `{"contents":[{"role":"user","parts":[{"text":"find dentists"}]}]}`

func post(t *testing.T, url, key string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(reqBody))
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("x-goog-api-key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func TestServer_ServesQueuedRepliesThenDefault(t *testing.T) {
	t.Parallel()

	srv := mockgemini.New()
	srv.Enqueue(mockgemini.Reply{
		Text:    `{"leads":[{"businessName":"A"}]}`,
		Sources: []lead.Source{{Kind: lead.SourceMaps, Title: "A on Maps", URI: "https://maps.test/a"}},
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := ts.URL + "/v1beta/models/gemini-test:generateContent"

	resp, body := post(t, url, "k")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	cand := body["candidates"].([]any)[0].(map[string]any)
	chunks := cand["groundingMetadata"].(map[string]any)["groundingChunks"].([]any)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].(map[string]any), "maps")

	_, body = post(t, url, "k")
	cand = body["candidates"].([]any)[0].(map[string]any)
	parts := cand["content"].(map[string]any)["parts"].([]any)
	assert.Equal(t, `{"leads":[]}`, parts[0].(map[string]any)["text"])

	calls := srv.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "gemini-test", calls[0].Model)
	assert.Equal(t, "find dentists", calls[0].Prompt())
	assert.Equal(t, "k", calls[0].APIKey)
}

func TestServer_RejectsWrongKey(t *testing.T) {
	t.Parallel()

	srv := mockgemini.New()
	srv.RequireAPIKey("right")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, body := post(t, ts.URL+"/v1beta/models/m:generateContent", "wrong")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "PERMISSION_DENIED", body["error"].(map[string]any)["status"])
}

func TestServer_ScriptedError(t *testing.T) {
	t.Parallel()

	srv := mockgemini.New()
	srv.SetDefault(mockgemini.Reply{Status: http.StatusTooManyRequests, ErrorStatus: "RESOURCE_EXHAUSTED", Message: "quota"})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, body := post(t, ts.URL+"/v1beta/models/m:generateContent", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "quota", body["error"].(map[string]any)["message"])
}

func TestServer_UnknownPath(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(mockgemini.New().Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1beta/models")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

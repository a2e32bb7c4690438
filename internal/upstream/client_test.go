package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstudio/internal/core"
)

const testBaseURL = "https://api.example.com"

func newMockClient(t *testing.T, cfg Config) (*Client, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	cfg.BaseURL = testBaseURL + "/"
	return NewWithHTTPClient(&http.Client{Transport: transport}, cfg), transport
}

func TestSubmitGenericImage(t *testing.T) {
	client, transport := newMockClient(t, Config{APIKey: "abc"})

	var gotAuth, gotContentType string
	var gotBody map[string]any
	transport.RegisterResponder(http.MethodPost, testBaseURL+"/v1/images/generations",
		func(req *http.Request) (*http.Response, error) {
			gotAuth = req.Header.Get("Authorization")
			gotContentType = req.Header.Get("Content-Type")
			data, _ := io.ReadAll(req.Body)
			_ = json.Unmarshal(data, &gotBody)
			return httpmock.NewStringResponse(http.StatusOK, `{"data":[{"url":"https://cdn/1.png"}]}`), nil
		})

	body, err := client.SubmitGenericImage(context.Background(), map[string]any{"model": "dall-e-3", "n": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[{"url":"https://cdn/1.png"}]}`, string(body))
	assert.Equal(t, "Bearer sk-abc", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "dall-e-3", gotBody["model"])
}

func TestSubmitNativeMultimodal_Endpoint(t *testing.T) {
	client, transport := newMockClient(t, Config{APIKey: "sk-already"})

	var gotAuth string
	transport.RegisterResponder(http.MethodPost, testBaseURL+"/v1beta/models/gemini-2.5-flash-image:generateContent",
		func(req *http.Request) (*http.Response, error) {
			gotAuth = req.Header.Get("Authorization")
			return httpmock.NewStringResponse(http.StatusOK, `{"candidates":[]}`), nil
		})

	_, err := client.SubmitNativeMultimodal(context.Background(), "gemini-2.5-flash-image", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk-already", gotAuth)
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestSubmit_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantType  core.ErrorType
		wantMsg   string
		retryable bool
	}{
		{"server error with nested message", 503, `{"error":{"message":"overloaded","code":"busy"}}`, core.ErrorTypeUpstream, "overloaded", true},
		{"server error without body", 500, ``, core.ErrorTypeUpstream, "HTTP error! status: 500", true},
		{"client error", 400, `{"message":"bad prompt"}`, core.ErrorTypeInvalidRequest, "bad prompt", false},
		{"auth error", 401, `{"error":{"message":"invalid token"}}`, core.ErrorTypeInvalidRequest, "invalid token", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, transport := newMockClient(t, Config{APIKey: "k"})
			transport.RegisterResponder(http.MethodPost, testBaseURL+"/v1/images/generations",
				httpmock.NewStringResponder(tt.status, tt.body))

			_, err := client.SubmitGenericImage(context.Background(), map[string]any{})
			var gerr *core.GenerationError
			require.ErrorAs(t, err, &gerr)
			assert.Equal(t, tt.wantType, gerr.Type)
			assert.Equal(t, tt.wantMsg, gerr.Message)
			assert.Equal(t, tt.status, gerr.StatusCode)
			assert.Equal(t, tt.retryable, gerr.Retryable())
		})
	}
}

func TestSubmit_TransportFailureIsNormalized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	baseURL := server.URL
	server.Close()

	client := NewWithHTTPClient(http.DefaultClient, Config{BaseURL: baseURL})
	_, err := client.SubmitGenericImage(context.Background(), map[string]any{})

	var gerr *core.GenerationError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, core.ErrorTypeNetwork, gerr.Type)
	assert.Equal(t, core.MessageNetworkFailure, gerr.Message)
	assert.False(t, gerr.Retryable())
}

func TestListTokens(t *testing.T) {
	client, transport := newMockClient(t, Config{AccessToken: "admin", UserID: "7"})

	var gotAuth, gotUser string
	transport.RegisterResponder(http.MethodGet, testBaseURL+"/api/token/?p=1&size=100",
		func(req *http.Request) (*http.Response, error) {
			gotAuth = req.Header.Get("Authorization")
			gotUser = req.Header.Get("New-Api-User")
			return httpmock.NewStringResponse(http.StatusOK, `{"success":true,"data":{"items":[
				{"id":1,"name":"main","key":"k1","group":"default","status":1},
				{"id":2,"name":"disabled","key":"k2","status":2},
				{"id":3,"name":"vip","key":"k3","group":"vip","status":1}
			]}}`), nil
		})

	tokens, err := client.ListTokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []core.Token{
		{ID: 1, Name: "main", Key: "k1", Group: "default"},
		{ID: 3, Name: "vip", Key: "k3", Group: "vip"},
	}, tokens)
	assert.Equal(t, "Bearer admin", gotAuth)
	assert.Equal(t, "7", gotUser)
}

func TestListTokens_Unsuccessful(t *testing.T) {
	client, transport := newMockClient(t, Config{})
	transport.RegisterResponder(http.MethodGet, testBaseURL+"/api/token/?p=1&size=100",
		httpmock.NewStringResponder(http.StatusOK, `{"success":false,"message":"not logged in"}`))

	_, err := client.ListTokens(context.Background())
	assert.ErrorContains(t, err, "not logged in")
}

func TestListModels_UserListing(t *testing.T) {
	client, transport := newMockClient(t, Config{})
	transport.RegisterResponder(http.MethodGet, testBaseURL+"/api/user/models?group=vip",
		httpmock.NewStringResponder(http.StatusOK, `{"success":true,"data":["gpt-4o","gemini-2.5-flash-image"]}`))

	models, err := client.ListModels(context.Background(), "vip")
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4o", "gemini-2.5-flash-image"}, models)
}

func TestListModels_FallsBackToOpenAIListing(t *testing.T) {
	client, transport := newMockClient(t, Config{APIKey: "k"})
	transport.RegisterResponder(http.MethodGet, testBaseURL+"/api/user/models",
		httpmock.NewStringResponder(http.StatusUnauthorized, `{"success":false}`))

	var gotAuth string
	transport.RegisterResponder(http.MethodGet, testBaseURL+"/v1/models",
		func(req *http.Request) (*http.Response, error) {
			gotAuth = req.Header.Get("Authorization")
			return httpmock.NewStringResponse(http.StatusOK, `{"data":[{"id":"flux-image"},{"id":"gpt-4o"}]}`), nil
		})

	models, err := client.ListModels(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"flux-image", "gpt-4o"}, models)
	assert.Equal(t, "Bearer sk-k", gotAuth)
}

func TestContextWithAPIKey(t *testing.T) {
	client, transport := newMockClient(t, Config{APIKey: "configured"})

	var gotAuth []string
	transport.RegisterResponder(http.MethodPost, testBaseURL+"/v1/images/generations",
		func(req *http.Request) (*http.Response, error) {
			gotAuth = append(gotAuth, req.Header.Get("Authorization"))
			return httpmock.NewStringResponse(http.StatusOK, `{"data":[]}`), nil
		})

	_, err := client.SubmitGenericImage(ContextWithAPIKey(context.Background(), "picked"), map[string]any{})
	require.NoError(t, err)
	_, err = client.SubmitGenericImage(ContextWithAPIKey(context.Background(), ""), map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer sk-picked", "Bearer sk-configured"}, gotAuth)
}

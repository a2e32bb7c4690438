package upstream

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"genstudio/internal/core"
)

// tokenStatusEnabled marks an active token.
const tokenStatusEnabled = 1

// ListTokens returns the enabled tokens of the current user.
func (c *Client) ListTokens(ctx context.Context) ([]core.Token, error) {
	resp, err := c.do(ctx, request{
		Method:     http.MethodGet,
		Endpoint:   "/api/token/?p=1&size=100",
		Management: true,
	})
	if err != nil {
		return nil, err
	}

	parsed := gjson.ParseBytes(resp.Body)
	if !parsed.Get("success").Bool() {
		return nil, core.NewUpstreamError(resp.StatusCode, managementMessage(parsed, "failed to list tokens"), nil)
	}

	items := parsed.Get("data")
	if !items.IsArray() {
		items = items.Get("items")
	}

	tokens := []core.Token{}
	items.ForEach(func(_, item gjson.Result) bool {
		if item.Get("status").Int() != tokenStatusEnabled {
			return true
		}
		tokens = append(tokens, core.Token{
			ID:    item.Get("id").Int(),
			Name:  item.Get("name").String(),
			Key:   item.Get("key").String(),
			Group: item.Get("group").String(),
		})
		return true
	})
	return tokens, nil
}

// ListModels returns the model ids available to group. The per-user listing
// is tried first; when it fails or is empty the OpenAI-compatible /v1/models
// listing is used with the API key.
func (c *Client) ListModels(ctx context.Context, group string) ([]string, error) {
	models, err := c.listUserModels(ctx, group)
	if err == nil && len(models) > 0 {
		return models, nil
	}
	if err != nil {
		slog.Debug("user model listing failed, falling back to /v1/models", "error", err)
	}
	return c.listOpenAIModels(ctx)
}

func (c *Client) listUserModels(ctx context.Context, group string) ([]string, error) {
	endpoint := "/api/user/models"
	if group != "" {
		endpoint += "?group=" + url.QueryEscape(group)
	}

	resp, err := c.do(ctx, request{Method: http.MethodGet, Endpoint: endpoint, Management: true})
	if err != nil {
		return nil, err
	}

	parsed := gjson.ParseBytes(resp.Body)
	if !parsed.Get("success").Bool() {
		return nil, core.NewUpstreamError(resp.StatusCode, managementMessage(parsed, "failed to list models"), nil)
	}

	var models []string
	parsed.Get("data").ForEach(func(_, item gjson.Result) bool {
		if id := modelID(item); id != "" {
			models = append(models, id)
		}
		return true
	})
	return models, nil
}

func (c *Client) listOpenAIModels(ctx context.Context) ([]string, error) {
	resp, err := c.do(ctx, request{Method: http.MethodGet, Endpoint: "/v1/models"})
	if err != nil {
		return nil, err
	}

	var models []string
	gjson.GetBytes(resp.Body, "data").ForEach(func(_, item gjson.Result) bool {
		if id := modelID(item); id != "" {
			models = append(models, id)
		}
		return true
	})
	return models, nil
}

// modelID accepts either a bare string or an object with an id.
func modelID(item gjson.Result) string {
	if item.Type == gjson.String {
		return item.String()
	}
	return item.Get("id").String()
}

func managementMessage(parsed gjson.Result, fallback string) string {
	if m := parsed.Get("message").String(); m != "" {
		return m
	}
	return fallback
}

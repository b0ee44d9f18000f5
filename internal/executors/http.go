package executors

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
	"github.com/iota-uz/foundry-sub005/internal/registry"
)

// httpNode implements the HTTP node kind: issues a single HTTP request and
// surfaces status/headers/body (§4.3). Non-2xx is not automatically a
// failure unless throwOnError is configured.
type httpNode struct {
	client *http.Client
}

// NewHTTP builds the HTTP executor. client may be nil, in which case a
// client with the node-level default timeout is used per call.
func NewHTTP(client *http.Client) Executor { return &httpNode{client: client} }

func (n *httpNode) Kind() registry.NodeKind { return registry.KindHTTP }

func (n *httpNode) Execute(ctx context.Context, config map[string]any, inputs Inputs, ec ExecutionContext) (Result, error) {
	url, _ := config["url"].(string)
	if url == "" {
		return Result{}, apperrors.New(apperrors.KindValidation, "http", "missing url")
	}
	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	body, hasBody := config["body"]
	if !hasBody {
		body, hasBody = inputs["body"]
	}
	if hasBody && body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return Result{}, apperrors.Wrap(apperrors.KindValidation, "http", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.KindValidation, "http", err)
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if headers, ok := config["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}

	client := n.client
	if client == nil {
		timeout := 30 * time.Second
		if secs, ok := config["timeout"].(float64); ok && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	ec.emit("activity:http:start", map[string]any{"method": method, "url": url})
	resp, err := client.Do(req)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.KindProviderError, "http", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.KindInternalError, "http", err)
	}

	var parsedBody any = string(raw)
	var decoded any
	if len(raw) > 0 && json.Unmarshal(raw, &decoded) == nil {
		parsedBody = decoded
	}

	respHeaders := make(map[string]any, len(resp.Header))
	for k := range resp.Header {
		respHeaders[k] = resp.Header.Get(k)
	}

	throwOnError, _ := config["throwOnError"].(bool)
	if throwOnError && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		return Result{}, apperrors.Errorf(apperrors.KindProviderError, "http", "http %s %s: status %d", method, url, resp.StatusCode)
	}

	return Result{Outputs: map[string]any{
		"status":  resp.StatusCode,
		"headers": respHeaders,
		"body":    parsedBody,
	}}, nil
}

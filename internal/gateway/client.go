package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/csheth/rulebook/internal/corpus"
)

const (
	defaultBaseURL     = "http://localhost:8000"
	defaultHTTPTimeout = 2 * time.Minute
	maxResponseBytes   = 8 << 20
	userAgent          = "rulebook-console/1.0"
)

const (
	opToken        = "token"
	opLoadData     = "load_data"
	opQuery        = "query_ai"
	opSessionState = "session_state"
)

// Config describes how to reach the backend.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// LoadResult is the body of a successful corpus upload.
type LoadResult struct {
	Message      string         `json:"message"`
	SessionState map[string]any `json:"session_state"`
}

// QueryResult is the body of a successful question.
type QueryResult struct {
	Response     string         `json:"response"`
	SessionState map[string]any `json:"session_state"`
}

// Client talks to the rulebook backend over HTTP.
type Client struct {
	base   string
	client *http.Client
	log    *zap.Logger
}

// New builds a Client, filling in defaults for unset fields.
func New(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base:   base,
		client: pickHTTPClient(cfg.HTTPClient),
		log:    log.Named("gateway"),
	}
}

func pickHTTPClient(custom *http.Client) *http.Client {
	if custom != nil {
		return custom
	}
	// Corpus ingestion embeds the whole document server-side and can take a while.
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// BaseURL reports the backend root this client targets.
func (c *Client) BaseURL() string {
	return c.base
}

// Token exchanges credentials for an access token.
func (c *Client) Token(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	req, err := c.newRequest(ctx, http.MethodPost, "/token", "", strings.NewReader(form.Encode()))
	if err != nil {
		return "", &Error{Kind: KindTransport, Op: opToken, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var parsed struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := c.do(req, opToken, &parsed); err != nil {
		return "", err
	}
	if strings.TrimSpace(parsed.AccessToken) == "" {
		return "", &Error{Kind: KindTransport, Op: opToken, Err: errMissingToken}
	}
	return parsed.AccessToken, nil
}

// LoadData uploads the corpus as a multipart form.
func (c *Client) LoadData(ctx context.Context, token string, payload corpus.Payload) (LoadResult, error) {
	if !payload.Complete() {
		return LoadResult{}, &Error{Kind: KindTransport, Op: opLoadData, Err: fmt.Errorf("incomplete corpus payload")}
	}
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writeFilePart(writer, "pdf_file", payload.Document); err != nil {
		return LoadResult{}, &Error{Kind: KindTransport, Op: opLoadData, Err: err}
	}
	if err := writeFilePart(writer, "json_file", payload.Seed); err != nil {
		return LoadResult{}, &Error{Kind: KindTransport, Op: opLoadData, Err: err}
	}
	if err := writer.Close(); err != nil {
		return LoadResult{}, &Error{Kind: KindTransport, Op: opLoadData, Err: err}
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/load_data", token, &body)
	if err != nil {
		return LoadResult{}, &Error{Kind: KindTransport, Op: opLoadData, Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result LoadResult
	if err := c.do(req, opLoadData, &result); err != nil {
		return LoadResult{}, err
	}
	return result, nil
}

func writeFilePart(writer *multipart.Writer, field string, file *corpus.File) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, file.Name))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = part.Write(file.Data)
	return err
}

// Query asks the backend a question about the loaded corpus.
func (c *Client) Query(ctx context.Context, token, question string) (QueryResult, error) {
	buf, err := json.Marshal(map[string]string{"question": question})
	if err != nil {
		return QueryResult{}, &Error{Kind: KindTransport, Op: opQuery, Err: err}
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/query_ai", token, bytes.NewReader(buf))
	if err != nil {
		return QueryResult{}, &Error{Kind: KindTransport, Op: opQuery, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	var result QueryResult
	if err := c.do(req, opQuery, &result); err != nil {
		return QueryResult{}, err
	}
	return result, nil
}

// SessionState fetches the backend's current session snapshot.
func (c *Client) SessionState(ctx context.Context, token string) (map[string]any, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/session_state", token, nil)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Op: opSessionState, Err: err}
	}
	var state map[string]any
	if err := c.do(req, opSessionState, &state); err != nil {
		return nil, err
	}
	if state == nil {
		state = map[string]any{}
	}
	return state, nil
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, op string, out any) error {
	started := time.Now()
	log := c.log.With(
		zap.String("op", op),
		zap.String("request_id", req.Header.Get("X-Request-ID")),
	)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Warn("request failed", zap.Error(err), zap.Duration("duration", time.Since(started)))
		return &Error{Kind: KindTransport, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		log.Warn("read response failed", zap.Error(err))
		return &Error{Kind: KindTransport, Op: op, Err: err}
	}
	log.Debug("response received",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := parseDetail(body)
		log.Info("backend rejected request", zap.Int("status", resp.StatusCode), zap.String("detail", detail))
		return &Error{Kind: KindServer, Op: op, Status: resp.StatusCode, Detail: detail}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindTransport, Op: op, Err: fmt.Errorf("decode %s response: %w", op, err)}
	}
	return nil
}

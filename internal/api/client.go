package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finquery-client/internal/constant"
	"finquery-client/internal/dto"
	"finquery-client/internal/pkg/logger"
	"finquery-client/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-playground/validator/v10"
)

// ErrUnauthorized is returned when the backend rejects the held
// credential. The cached token is already invalidated by then.
var ErrUnauthorized = errors.New("credential rejected by backend")

// Client talks to the FinQuery document Q&A backend.
type Client struct {
	baseURL  string
	client   *http.Client
	creds    CredentialProvider
	pub      message.Publisher
	logger   logger.ILogger
	validate *validator.Validate
}

func NewClient(baseURL string, timeout time.Duration, creds CredentialProvider, pub message.Publisher, log logger.ILogger) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		creds:    creds,
		pub:      pub,
		logger:   log,
		validate: validator.New(),
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.creds != nil {
		token, err := c.creds.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire credential: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("finquery request failed: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		if c.creds != nil {
			c.creds.Invalidate()
		}
		c.emitAuthInvalidated(resp.StatusCode)
		return nil, ErrUnauthorized
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("finquery error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload interface{}, out interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewBuffer(payloadBytes), "application/json")
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// ListDocuments returns every indexed document.
func (c *Client) ListDocuments(ctx context.Context) (*dto.DocumentsListResponse, error) {
	var out dto.DocumentsListResponse
	if err := c.getJSON(ctx, "/documents", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDocumentStats returns per-document index statistics.
func (c *Client) GetDocumentStats(ctx context.Context, name string) (*dto.DocumentStatsResponse, error) {
	var out dto.DocumentStatsResponse
	if err := c.getJSON(ctx, "/documents/"+url.PathEscape(name), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadDocument sends a PDF for indexing.
func (c *Client) UploadDocument(ctx context.Context, path string) (*dto.UploadResponse, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/upload", &body, writer.FormDataContentType())
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out dto.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &out, nil
}

// DeleteDocument removes one document and its index.
func (c *Client) DeleteDocument(ctx context.Context, name string) (*dto.DeleteResponse, error) {
	req, err := c.newRequest(ctx, http.MethodDelete, "/documents/"+url.PathEscape(name), nil, "")
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out dto.DeleteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &out, nil
}

// ClearDocuments removes every document.
func (c *Client) ClearDocuments(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/documents", nil, "")
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Query runs one blocking question/answer exchange.
func (c *Client) Query(ctx context.Context, request *dto.QueryRequest) (*dto.QueryResponse, error) {
	if err := c.validate.Struct(request); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	var out dto.QueryResponse
	if err := c.postJSON(ctx, "/query", request, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QueryStream opens one streaming exchange and hands the event stream
// to the caller, who owns draining and closing it. A non-2xx status is
// reported here, before any body is exposed.
func (c *Client) QueryStream(ctx context.Context, request *dto.QueryRequest) (io.ReadCloser, error) {
	if err := c.validate.Struct(request); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	payloadBytes, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/query/stream", bytes.NewBuffer(payloadBytes), "application/json")
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) emitAuthInvalidated(status int) {
	if c.logger != nil {
		c.logger.Warn("ApiClient", "Credential rejected, forcing re-authentication", map[string]interface{}{
			"status": status,
		})
	}
	if c.pub == nil {
		return
	}
	evt := events.NewAuthInvalidated(status)
	data, _ := json.Marshal(map[string]interface{}{
		"type": evt.EventType(),
		"data": evt.Payload(),
	})
	_ = c.pub.Publish(constant.AuthEventsTopic, message.NewMessage(watermill.NewUUID(), data))
}

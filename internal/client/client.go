// Package client talks to the RAG Pipeline HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rag-pipeline/internal/handlers"
	"rag-pipeline/internal/service"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client calls the HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// Upload sends the files at paths in one multipart request.
func (c *Client) Upload(ctx context.Context, paths ...string) (service.UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range paths {
		if err := addFile(mw, p); err != nil {
			return service.UploadResult{}, err
		}
	}
	if err := mw.Close(); err != nil {
		return service.UploadResult{}, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	var out service.UploadResult
	err := c.do(ctx, http.MethodPost, "/upload", mw.FormDataContentType(), &body, &out)
	return out, err
}

func addFile(mw *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	part, err := mw.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

// Query asks a question. topK <= 0 leaves the server default.
func (c *Client) Query(ctx context.Context, query string, topK int, debug bool) (service.QueryResult, error) {
	req := handlers.QueryRequest{Query: query, Debug: debug}
	if topK > 0 {
		req.TopK = &topK
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return service.QueryResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	var out service.QueryResult
	err = c.do(ctx, http.MethodPost, "/query", "application/json", bytes.NewReader(payload), &out)
	return out, err
}

// Metadata lists the stored documents.
func (c *Client) Metadata(ctx context.Context) (service.MetadataResult, error) {
	var out service.MetadataResult
	err := c.do(ctx, http.MethodGet, "/metadata", "", nil, &out)
	return out, err
}

// Document returns one stored document. Unknown ids yield an *APIError with status 404.
func (c *Client) Document(ctx context.Context, documentID string) (service.DocumentInfo, error) {
	var out service.DocumentInfo
	err := c.do(ctx, http.MethodGet, "/documents/"+url.PathEscape(documentID), "", nil, &out)
	return out, err
}

// Delete removes a document by id.
func (c *Client) Delete(ctx context.Context, documentID string) (service.DeleteResult, error) {
	var out service.DeleteResult
	err := c.do(ctx, http.MethodDelete, "/documents/"+url.PathEscape(documentID), "", nil, &out)
	return out, err
}

// Health returns the health report. An unhealthy server yields both the report and an *APIError.
func (c *Client) Health(ctx context.Context) (handlers.HealthResponse, error) {
	var out handlers.HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", "", nil, &out)
	return out, err
}

// do sends a request and decodes the JSON response into out.
// Error responses are returned as *APIError; a 503 body is still decoded into out.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}

	if resp.StatusCode == http.StatusServiceUnavailable {
		_ = json.Unmarshal(data, out)
	}
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	var errResp handlers.ErrorResponse
	if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
		apiErr.Message = errResp.Error
	}
	return apiErr
}

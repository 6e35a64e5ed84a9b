package client

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-pipeline/internal/handlers"
	"rag-pipeline/internal/service"
)

func TestClient_Upload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o600))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/upload", r.URL.Path)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		files := r.MultipartForm.File["files"]
		require.Len(t, files, 1)
		assert.Equal(t, "notes.txt", files[0].Filename)

		f, err := files[0].Open()
		require.NoError(t, err)
		content, _ := io.ReadAll(f)
		assert.Equal(t, "hello world", string(content))

		_ = json.NewEncoder(w).Encode(service.UploadResult{Message: "Successfully processed 1 documents", TotalChunks: 1})
	}))
	defer server.Close()

	res, err := New(server.URL+"/").Upload(t.Context(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalChunks)
}

func TestClient_Upload_MissingFile(t *testing.T) {
	_, err := New("http://127.0.0.1:1").Upload(t.Context(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestClient_Query(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req handlers.QueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "capital of France", req.Query)
		require.NotNil(t, req.TopK)
		assert.Equal(t, 3, *req.TopK)

		_ = json.NewEncoder(w).Encode(service.QueryResult{Answer: "Paris.", Sources: []string{"a.txt"}, ChunksUsed: 1})
	}))
	defer server.Close()

	res, err := New(server.URL).Query(t.Context(), "capital of France", 3, false)
	require.NoError(t, err)
	assert.Equal(t, "Paris.", res.Answer)
	assert.Equal(t, []string{"a.txt"}, res.Sources)
}

func TestClient_Query_DefaultTopKOmitted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, ok := raw["top_k"]
		assert.False(t, ok, "top_k should be omitted")
		_ = json.NewEncoder(w).Encode(service.QueryResult{})
	}))
	defer server.Close()

	_, err := New(server.URL).Query(t.Context(), "q", 0, false)
	require.NoError(t, err)
}

func TestClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(handlers.ErrorResponse{Error: "cannot be empty"})
	}))
	defer server.Close()

	_, err := New(server.URL).Query(t.Context(), "", 0, false)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "cannot be empty", apiErr.Message)
}

func TestClient_Delete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/documents/abc", r.URL.Path)
		_ = json.NewEncoder(w).Encode(service.DeleteResult{DocumentID: "abc", Deleted: true, ChunksRemoved: 2})
	}))
	defer server.Close()

	res, err := New(server.URL).Delete(t.Context(), "abc")
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	assert.Equal(t, 2, res.ChunksRemoved)
}

func TestClient_Document(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		if r.URL.Path != "/documents/abc" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(handlers.ErrorResponse{Error: "Document not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(service.DocumentInfo{DocumentID: "abc", Filename: "a.txt", ChunkCount: 4})
	}))
	defer server.Close()

	doc, err := New(server.URL).Document(t.Context(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", doc.Filename)
	assert.Equal(t, 4, doc.ChunkCount)

	_, err = New(server.URL).Document(t.Context(), "missing")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Document not found", apiErr.Message)
}

func TestClient_Metadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/metadata", r.URL.Path)
		_ = json.NewEncoder(w).Encode(service.MetadataResult{TotalDocuments: 2, TotalChunks: 5})
	}))
	defer server.Close()

	res, err := New(server.URL).Metadata(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalDocuments)
	assert.Equal(t, 5, res.TotalChunks)
}

func TestClient_Health_Unhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(handlers.HealthResponse{Status: "unhealthy", Service: handlers.ServiceName})
	}))
	defer server.Close()

	res, err := New(server.URL).Health(t.Context())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "unhealthy", res.Status)
}

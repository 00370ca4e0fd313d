// Package vectorstore is a minimal client for the OpenAI File Search
// vector store API, covering only what the corpus sync driver needs:
// create/delete stores, upload/list/delete files.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const defaultBaseURL = "https://api.openai.com/v1"

type Client struct {
	apiKey  string
	baseURL string
	hc      *http.Client
}

// NewClient creates a new client. If httpClient is nil, a default with
// timeout is used; uploads of larger corpus files need the generous one.
func NewClient(apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		hc:      httpClient,
	}
}

// SetBaseURL overrides the API endpoint, mainly for tests.
func (c *Client) SetBaseURL(url string) { c.baseURL = url }

// StoreFile is one file attached to a vector store.
type StoreFile struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("vectorstore: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("vectorstore: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("vectorstore: %s %s: status=%d body=%s", method, path, resp.StatusCode, respBody)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("vectorstore: decode %s response: %w", path, err)
		}
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	contentType := ""
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("vectorstore: marshal request: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, body, contentType, out)
}

// CreateStore creates a vector store and returns its id.
func (c *Client) CreateStore(ctx context.Context, name string) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/vector_stores", map[string]string{"name": name}, &resp)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// DeleteStore removes a vector store.
func (c *Client) DeleteStore(ctx context.Context, storeID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/vector_stores/"+storeID, nil, nil)
}

// ListFiles returns the files currently attached to a store, with the
// underlying filename resolved for each.
func (c *Client) ListFiles(ctx context.Context, storeID string) ([]StoreFile, error) {
	var listing struct {
		Data []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/vector_stores/"+storeID+"/files", nil, &listing); err != nil {
		return nil, err
	}

	files := make([]StoreFile, 0, len(listing.Data))
	for _, f := range listing.Data {
		var info struct {
			Filename string `json:"filename"`
		}
		if err := c.doJSON(ctx, http.MethodGet, "/files/"+f.ID, nil, &info); err != nil {
			return nil, err
		}
		files = append(files, StoreFile{ID: f.ID, Filename: info.Filename, Status: f.Status})
	}
	return files, nil
}

// UploadFile uploads a local file and attaches it to the store, then
// polls until indexing completes so a sync run reports real success.
func (c *Client) UploadFile(ctx context.Context, storeID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("vectorstore: open %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("purpose", "assistants"); err != nil {
		return fmt.Errorf("vectorstore: write purpose field: %w", err)
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("vectorstore: create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("vectorstore: read %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return err
	}

	var uploaded struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/files", &buf, mw.FormDataContentType(), &uploaded); err != nil {
		return err
	}

	if err := c.doJSON(ctx, http.MethodPost, "/vector_stores/"+storeID+"/files",
		map[string]string{"file_id": uploaded.ID}, nil); err != nil {
		return err
	}

	return c.waitForFile(ctx, storeID, uploaded.ID)
}

// DeleteFile detaches a file from the store and deletes the underlying
// file object.
func (c *Client) DeleteFile(ctx context.Context, storeID, fileID string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/vector_stores/"+storeID+"/files/"+fileID, nil, nil); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodDelete, "/files/"+fileID, nil, nil)
}

// waitForFile polls the store until the file leaves in_progress.
func (c *Client) waitForFile(ctx context.Context, storeID, fileID string) error {
	deadline := time.Now().Add(2 * time.Minute)
	for {
		var listing struct {
			Data []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"data"`
		}
		if err := c.doJSON(ctx, http.MethodGet, "/vector_stores/"+storeID+"/files", nil, &listing); err != nil {
			return err
		}
		for _, f := range listing.Data {
			if f.ID != fileID {
				continue
			}
			switch f.Status {
			case "completed":
				return nil
			case "failed", "cancelled":
				return fmt.Errorf("vectorstore: file %s indexing %s", fileID, f.Status)
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("vectorstore: file %s still indexing after deadline", fileID)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

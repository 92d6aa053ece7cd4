package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vittmoney/vitt/internal/models"
)

// apiClient talks to a running vitt server.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

// Verdict asks a question for userID.
func (c *apiClient) Verdict(userID, question string) (*models.VerdictResponse, error) {
	var out models.VerdictResponse
	err := c.do(http.MethodPost, "/api/v1/verdict", models.VerdictRequest{UserID: userID, Question: question}, http.StatusOK, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Build schedules a rebuild and returns its build id.
func (c *apiClient) Build(userID string) (string, error) {
	var out struct {
		BuildID string `json:"build_id"`
	}
	if err := c.do(http.MethodPost, "/api/v1/build", models.BuildRequest{UserID: userID}, http.StatusAccepted, &out); err != nil {
		return "", err
	}
	return out.BuildID, nil
}

// Knowledge returns the knowledge base status of userID.
func (c *apiClient) Knowledge(userID string) (*models.KnowledgeStatus, error) {
	var out models.KnowledgeStatus
	if err := c.do(http.MethodGet, "/api/v1/knowledge/"+url.PathEscape(userID), nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns the server status document.
func (c *apiClient) Status() (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := c.do(http.MethodGet, "/api/v1/status", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *apiClient) do(method, path string, body interface{}, want int, out interface{}) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		return apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// apiError turns a non-success response into an error, preferring the server's error message.
func apiError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}

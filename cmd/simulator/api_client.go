package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dom/foodieswipe/internal/api/handlers"
	"github.com/dom/foodieswipe/internal/domain"
)

const simPassword = "testpassword123"

// APIClient handles HTTP communication with the backend
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL + "/api/v1",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// RegisterUser creates an account with a unique throwaway email.
func (c *APIClient) RegisterUser(baseName string) (*handlers.AuthResponse, error) {
	suffix := time.Now().UnixNano() % 1000000
	body := handlers.RegisterRequest{
		Email:       fmt.Sprintf("%s_%d@sim.local", baseName, suffix),
		DisplayName: fmt.Sprintf("%s_%d", baseName, suffix),
		Password:    simPassword,
	}

	var result handlers.AuthResponse
	if err := c.do(http.MethodPost, "/auth/register", "", body, http.StatusCreated, &result); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &result, nil
}

func (c *APIClient) SendInvite(token, partnerCode string) (*domain.CoupleInvite, error) {
	var invite domain.CoupleInvite
	if err := c.do(http.MethodPost, "/couples/invites", token, handlers.SendInviteRequest{PartnerCode: partnerCode}, http.StatusCreated, &invite); err != nil {
		return nil, fmt.Errorf("send invite: %w", err)
	}
	return &invite, nil
}

func (c *APIClient) AcceptInvite(token, inviteID string) error {
	if err := c.do(http.MethodPost, "/couples/invites/"+inviteID+"/accept", token, nil, http.StatusOK, nil); err != nil {
		return fmt.Errorf("accept invite: %w", err)
	}
	return nil
}

// StartSession accepts both 201 and 200 since the couple may already have an
// open session.
func (c *APIClient) StartSession(token string) (*handlers.SessionResponse, error) {
	resp, err := c.send(http.MethodPost, "/sessions", token, nil)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("start session: %w", statusError(resp))
	}

	var result handlers.SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

func (c *APIClient) CoupleStats(token string) (map[string]interface{}, error) {
	var stats map[string]interface{}
	if err := c.do(http.MethodGet, "/couples/me/stats", token, nil, http.StatusOK, &stats); err != nil {
		return nil, fmt.Errorf("couple stats: %w", err)
	}
	return stats, nil
}

// HTTP helpers

func (c *APIClient) do(method, path, token string, body interface{}, want int, out interface{}) error {
	resp, err := c.send(method, path, token, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *APIClient) send(method, path, token string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}

func statusError(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("status %d: %s", resp.StatusCode, string(bodyBytes))
}

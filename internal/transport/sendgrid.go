package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type SendGrid struct {
	APIKey    string
	FromEmail string
	FromName  string
	Endpoint  string
	Client    *http.Client
}

func (s *SendGrid) Name() string { return "sendgrid" }

func (s *SendGrid) Configured() bool {
	return s.APIKey != "" && s.FromEmail != ""
}

func (s *SendGrid) Send(ctx context.Context, destination string, content Content) (string, error) {
	if !s.Configured() {
		return "", ErrNotConfigured
	}

	payload := map[string]any{
		"personalizations": []map[string]any{
			{"to": []map[string]string{{"email": destination}}},
		},
		"from":    map[string]string{"email": s.FromEmail, "name": s.FromName},
		"subject": content.Subject,
		"content": []map[string]string{
			{"type": "text/plain", "value": content.Body},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = "https://api.sendgrid.com"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Errors []struct {
				Message string `json:"message"`
			} `json:"errors"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && len(apiErr.Errors) > 0 {
			return "", fmt.Errorf("sendgrid: %s", apiErr.Errors[0].Message)
		}
		return "", fmt.Errorf("sendgrid: %s", resp.Status)
	}

	return resp.Header.Get("X-Message-Id"), nil
}

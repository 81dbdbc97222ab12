package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Twilio struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	Endpoint   string
	Client     *http.Client
}

func (t *Twilio) Name() string { return "twilio" }

func (t *Twilio) Configured() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.FromNumber != ""
}

func (t *Twilio) Send(ctx context.Context, destination string, content Content) (string, error) {
	if !t.Configured() {
		return "", ErrNotConfigured
	}

	form := url.Values{}
	form.Set("To", destination)
	form.Set("From", t.FromNumber)
	form.Set("Body", content.Body)

	endpoint := t.Endpoint
	if endpoint == "" {
		endpoint = "https://api.twilio.com"
	}
	target := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", endpoint, t.AccountSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.AccountSID, t.AuthToken)

	client := t.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body struct {
		SID     string `json:"sid"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil && resp.StatusCode < 400 {
		return "", fmt.Errorf("decode twilio response: %w", err)
	}

	if resp.StatusCode >= 400 {
		if body.Message != "" {
			return "", fmt.Errorf("twilio: %s", body.Message)
		}
		return "", fmt.Errorf("twilio: %s", resp.Status)
	}
	return body.SID, nil
}

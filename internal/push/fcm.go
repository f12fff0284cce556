package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

const defaultFCMEndpoint = "https://fcm.googleapis.com/fcm/send"

// FCMProvider sends pushes through the FCM HTTP API. Permanent token
// failures (NotRegistered, InvalidRegistration) are mapped to
// ErrUnregistered so the dispatcher prunes the token.
type FCMProvider struct {
	serverKey string
	endpoint  string
	client    *http.Client
}

func NewFCMProvider(serverKey string) *FCMProvider {
	return &FCMProvider{
		serverKey: serverKey,
		endpoint:  defaultFCMEndpoint,
		client:    http.DefaultClient,
	}
}

type fcmRequest struct {
	To           string            `json:"to"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
}

type fcmResponse struct {
	Failure int `json:"failure"`
	Results []struct {
		Error string `json:"error"`
	} `json:"results"`
}

func (p *FCMProvider) Send(ctx context.Context, token, title string, data map[string]string) error {
	body, err := json.Marshal(fcmRequest{
		To:           token,
		Notification: fcmNotification{Title: title},
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("push: marshal fcm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("push: build fcm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+p.serverKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("push: fcm send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push: fcm returned %d", resp.StatusCode)
	}

	var result fcmResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("push: decode fcm response: %w", err)
	}
	if result.Failure > 0 && len(result.Results) > 0 {
		switch result.Results[0].Error {
		case "NotRegistered", "InvalidRegistration":
			return fmt.Errorf("%s: %w", result.Results[0].Error, ErrUnregistered)
		default:
			return fmt.Errorf("push: fcm error %s", result.Results[0].Error)
		}
	}
	return nil
}

// LogProvider is the no-credentials fallback: every send is logged and
// acknowledged, useful for local runs without an FCM project.
type LogProvider struct{}

func (LogProvider) Send(_ context.Context, token, title string, _ map[string]string) error {
	log.Printf("[push] (log provider) %q -> %s", title, token)
	return nil
}

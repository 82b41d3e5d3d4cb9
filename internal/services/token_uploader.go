package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/CyberwizD/notification-ingest/internal/models"
	"github.com/CyberwizD/notification-ingest/pkg/retry"
)

type tokenResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TokenUploader registers the device token with the session backend.
type TokenUploader struct {
	baseURL  string
	client   *http.Client
	retryCfg retry.Config
}

func NewTokenUploader(baseURL string, timeout time.Duration, retryCfg retry.Config) *TokenUploader {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TokenUploader{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		retryCfg: retryCfg,
	}
}

// StoreToken PUTs the token. 5xx and transport errors are retried, 4xx are not.
func (u *TokenUploader) StoreToken(ctx context.Context, token models.DeviceToken) error {
	body, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return retry.Do(ctx, u.retryCfg, func(int) error {
		return u.put(ctx, body)
	})
}

func (u *TokenUploader) put(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.baseURL+"/v1/devices/token", bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("token registration returned %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return retry.Permanent(fmt.Errorf("token registration returned %d", resp.StatusCode))
	case resp.StatusCode == http.StatusNoContent:
		return nil
	}

	var envelope tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return retry.Permanent(fmt.Errorf("decode token registration response: %w", err))
	}
	if !envelope.Success {
		return retry.Permanent(fmt.Errorf("token registration rejected: %s", envelope.Message))
	}
	return nil
}

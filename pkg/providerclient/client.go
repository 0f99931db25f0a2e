/**
 * @description
 * This package provides a client for the payout provider's disbursement API.
 * It encapsulates the logic for making authenticated HTTP requests, handling
 * request body construction, and parsing responses. Settlement is
 * asynchronous: a successful submission returns the provider's payout id, and
 * the final outcome arrives later as a webhook-driven event.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package providerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Client is a client for the payout provider API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new payout provider API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// payoutRequest is the payload for a disbursement submission.
type payoutRequest struct {
	Destination string `json:"destination"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	// Reference is our payout id; the provider echoes it back on outcome
	// events so we can correlate without storing their id first.
	Reference string `json:"reference"`
}

// payoutResponse is the expected response from the provider's payout endpoint.
type payoutResponse struct {
	Data struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
}

// ErrorResponse represents an error from the provider API.
type ErrorResponse struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Status string `json:"status"`
	} `json:"errors"`
}

func (e *ErrorResponse) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("provider api error: %s - %s", e.Errors[0].Title, e.Errors[0].Detail)
	}
	return "unknown provider api error"
}

// SubmitPayout submits a disbursement to the provider and returns the
// provider's payout id. Idempotent on the provider side via the reference.
func (c *Client) SubmitPayout(ctx context.Context, destination string, amountMinor int64, currency, reference string) (string, error) {
	body, err := json.Marshal(payoutRequest{
		Destination: destination,
		Amount:      amountMinor,
		Currency:    currency,
		Reference:   reference,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal payout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/v1/payouts", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create payout request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Idempotency-Key", reference)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute payout request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read payout response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=provider_client op=submit_payout reference=%s status=%d msg=\"non-2xx response (unparsable error body)\"", reference, resp.StatusCode)
			return "", fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=provider_client op=submit_payout reference=%s status=%d title=%q detail=%q", reference, resp.StatusCode, firstErrorTitle(errResp), firstErrorDetail(errResp))
		return "", &errResp
	}

	var successResp payoutResponse
	if err := json.Unmarshal(bodyBytes, &successResp); err != nil {
		return "", fmt.Errorf("failed to decode success response: %w", err)
	}
	if successResp.Data.ID == "" {
		return "", fmt.Errorf("provider response carried no payout id")
	}

	return successResp.Data.ID, nil
}

func firstErrorTitle(resp ErrorResponse) string {
	if len(resp.Errors) == 0 {
		return ""
	}
	return resp.Errors[0].Title
}

func firstErrorDetail(resp ErrorResponse) string {
	if len(resp.Errors) == 0 {
		return ""
	}
	return resp.Errors[0].Detail
}

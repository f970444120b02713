package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/netdash/uplink/internal/logging"
)

// RegistrationResult contains the credentials obtained after the
// backend operator approves the device.
type RegistrationResult struct {
	DeviceID  string
	AuthToken string
}

type registerRequest struct {
	Hostname string `json:"hostname"`
	OS       string `json:"os"`
	Arch     string `json:"arch"`
	Version  string `json:"version"`
}

type registerResponse struct {
	RegistrationToken string `json:"registration_token"`
	ApprovalPath      string `json:"approval_path"`
}

type pollRequest struct {
	RegistrationToken string `json:"registration_token"`
}

type pollResponse struct {
	Status    string `json:"status"` // pending | approved | expired
	DeviceID  string `json:"device_id,omitempty"`
	AuthToken string `json:"auth_token,omitempty"`
}

// Register performs the registration flow with automatic retries:
//  1. Request a registration token from the backend (retries with
//     exponential backoff while the backend is unreachable).
//  2. Print the approval URL (and a QR code) for the operator.
//  3. Poll until the registration is approved or expires.
func Register(ctx context.Context, backendURL, hostname, osName, arch, version string) (*RegistrationResult, error) {
	return registerWithClient(ctx, http.DefaultClient, backendURL, registerRequest{
		Hostname: hostname,
		OS:       osName,
		Arch:     arch,
		Version:  version,
	}, newRegistrationBackoff())
}

func registerWithClient(
	ctx context.Context,
	httpClient *http.Client,
	backendURL string,
	req registerRequest,
	bo backoff.BackOff,
) (*RegistrationResult, error) {
	base := strings.TrimSuffix(backendURL, "/")

	// Step 1: request registration with retry.
	var reg registerResponse
	for {
		err := postJSON(ctx, httpClient, base+"/api/uplink/register", req, &reg)
		if err == nil {
			break
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		interval := bo.NextBackOff()
		slog.Warn("backend unavailable, retrying registration...", "error", err, "backoff", interval)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}

	approvalURL := base + reg.ApprovalPath
	slog.Info("registration requested, approve in the dashboard",
		"url", approvalURL,
		"token", reg.RegistrationToken,
	)
	fmt.Printf("\n  Approve this device at: %s\n\n", approvalURL)
	logging.PrintQRCode(approvalURL)

	// Step 2: long-poll until approved or expired. Each poll call
	// blocks on the backend side for up to 30s when pending.
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		pollCtx, pollCancel := context.WithTimeout(ctx, 60*time.Second)
		var poll pollResponse
		err := postJSON(pollCtx, httpClient, base+"/api/uplink/register/poll", pollRequest{
			RegistrationToken: reg.RegistrationToken,
		}, &poll)
		pollCancel()
		if err != nil {
			slog.Warn("poll failed", "error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(1 * time.Second):
			}
			continue
		}

		switch poll.Status {
		case "approved":
			slog.Info("registration approved", "device_id", poll.DeviceID)
			return &RegistrationResult{
				DeviceID:  poll.DeviceID,
				AuthToken: poll.AuthToken,
			}, nil

		case "expired":
			return nil, fmt.Errorf("registration expired")

		case "pending":
			continue // Backend long-poll timeout expired, loop again.

		default:
			return nil, fmt.Errorf("unexpected registration status: %q", poll.Status)
		}
	}
}

// postJSON sends a JSON request body and decodes a JSON response.
func postJSON(ctx context.Context, client *http.Client, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

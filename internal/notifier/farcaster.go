package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"patron/internal/models"

	"github.com/ethereum/go-ethereum/common"
)

// Farcaster posts announcements as casts through the Neynar API
type Farcaster struct {
	url        string
	apiKey     string
	signerUUID string
	format     Formatter
	http       *http.Client
}

type castRequest struct {
	Text       string `json:"text"`
	SignerUUID string `json:"signer_uuid"`
}

type castResponse struct {
	Cast struct {
		Hash string `json:"hash"`
	} `json:"cast"`
}

func NewFarcaster(url, apiKey, signerUUID string, format Formatter, httpClient *http.Client) *Farcaster {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Farcaster{
		url:        url,
		apiKey:     apiKey,
		signerUUID: signerUUID,
		format:     format,
		http:       httpClient,
	}
}

func (f *Farcaster) Name() string {
	return "farcaster"
}

func (f *Farcaster) GrantDisbursed(ctx context.Context, grant models.Grant) error {
	_, err := f.Cast(ctx, f.format.Grant(grant))
	return err
}

func (f *Farcaster) RoundCompleted(ctx context.Context, summary RoundSummary) error {
	_, err := f.Cast(ctx, f.format.Round(summary))
	return err
}

func (f *Farcaster) AgentLive(ctx context.Context, treasury common.Address) error {
	_, err := f.Cast(ctx, f.format.Live(treasury))
	return err
}

// Cast publishes text and returns the cast hash
func (f *Farcaster) Cast(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(castRequest{Text: text, SignerUUID: f.signerUUID})
	if err != nil {
		return "", fmt.Errorf("failed to encode cast: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build cast request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api_key", f.apiKey)

	resp, err := f.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("cast request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("cast rejected: %d %s: %s", resp.StatusCode, http.StatusText(resp.StatusCode), bytes.TrimSpace(msg))
	}

	var out castResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode cast response: %w", err)
	}
	slog.Debug("Posted to Farcaster", "cast_hash", out.Cast.Hash)
	return out.Cast.Hash, nil
}

// Package verify resolves national identity documents against the external
// registry API and exposes the verification digit used to challenge users.
package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ventaflow/ventabot/core/config"
	"github.com/ventaflow/ventabot/core/logger"
	"github.com/ventaflow/ventabot/core/netutil"
)

// ErrNoMatch means the registry answered but holds no record for the
// document number. Distinct from transport or server failures so flows can
// re-prompt instead of aborting.
var ErrNoMatch = errors.New("verify: document not found")

// Result is the registry record for a document number.
type Result struct {
	FullName         string
	VerificationCode string
}

// Client looks up a document number.
type Client interface {
	LookupDNI(ctx context.Context, dni string) (Result, error)
}

type httpVerifier struct {
	baseURL string
	token   string
	timeout time.Duration
	client  *http.Client
}

// NewClient builds the registry client from configuration. The underlying
// HTTP client retries transient network failures with linear backoff.
func NewClient(cfg config.VerificationConfig) Client {
	return &httpVerifier{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		timeout: cfg.Timeout,
		client:  netutil.BuildHTTPClient(),
	}
}

type lookupRequest struct {
	DNI string `json:"dni"`
}

type lookupResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		FullName         string `json:"nombre_completo"`
		VerificationCode string `json:"codigo_verificacion"`
	} `json:"data"`
}

func (v *httpVerifier) LookupDNI(ctx context.Context, dni string) (Result, error) {
	started := time.Now()
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(lookupRequest{DNI: dni})
	if err != nil {
		return Result{}, fmt.Errorf("verify: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/api/dni", bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("verify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.token)

	resp, err := v.client.Do(req)
	if err != nil {
		logger.Error(ctx, "verify", "lookup.error",
			slog.Any("err", err),
			slog.Duration("duration", logger.Took(started)),
		)
		return Result{}, fmt.Errorf("verify: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("verify: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		logger.Warn(ctx, "verify", "lookup.http_error",
			slog.Int("http_code", resp.StatusCode),
			slog.Duration("duration", logger.Took(started)),
		)
		return Result{}, fmt.Errorf("verify: registry returned HTTP %d", resp.StatusCode)
	}

	var decoded lookupResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Result{}, fmt.Errorf("verify: decode response: %w", err)
	}
	if !decoded.Success {
		logger.Info(ctx, "verify", "lookup.no_match",
			slog.String("dni", logger.MaskIdentifier(dni)),
			slog.Duration("duration", logger.Took(started)),
		)
		return Result{}, ErrNoMatch
	}

	logger.Debug(ctx, "verify", "lookup.ok",
		slog.String("dni", logger.MaskIdentifier(dni)),
		slog.Duration("duration", logger.Took(started)),
	)
	return Result{
		FullName:         decoded.Data.FullName,
		VerificationCode: decoded.Data.VerificationCode,
	}, nil
}

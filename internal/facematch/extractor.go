package facematch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/meal-access/internal/logging"
)

// Extractor turns a photo into a facial signature.
type Extractor interface {
	Extract(ctx context.Context, photo []byte) (Signature, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, photo []byte) (Signature, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, photo []byte) (Signature, error) {
	return f(ctx, photo)
}

// HTTPExtractor delegates detection and embedding to a model sidecar. The
// sidecar accepts the raw image as the request body and answers with
// {"faces":[{"embedding":[...]}]}.
type HTTPExtractor struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPExtractor constructs an extractor posting to endpoint.
func NewHTTPExtractor(endpoint string, timeout time.Duration, logger *slog.Logger) *HTTPExtractor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPExtractor{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type extractResponse struct {
	Faces []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"faces"`
}

// Extract posts photo to the sidecar and returns the single face found.
func (e *HTTPExtractor) Extract(ctx context.Context, photo []byte) (Signature, error) {
	if len(photo) == 0 {
		return nil, ErrEmptyPhoto
	}
	logger := logging.FromContextOr(ctx, e.logger).With("component", "facematch", "bytes", len(photo))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(photo))
	if err != nil {
		return nil, fmt.Errorf("facematch: build request: %w", err)
	}
	req.Header.Set("Content-Type", http.DetectContentType(photo))
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("facematch: call extractor: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("facematch: extractor returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var payload extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("facematch: decode response: %w", err)
	}
	logger.DebugContext(ctx, "faces extracted", "faces", len(payload.Faces), "duration", time.Since(start))

	switch len(payload.Faces) {
	case 0:
		return nil, ErrNoFaceDetected
	case 1:
	default:
		return nil, ErrMultipleFaces
	}

	sig := Signature(payload.Faces[0].Embedding)
	if err := sig.Validate(); err != nil {
		return nil, err
	}
	return sig, nil
}

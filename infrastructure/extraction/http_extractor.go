// Package extraction provides the entity extraction adapters. The HTTP
// extractor calls an external extraction service; the fixture extractor
// is a deterministic stand-in for development and tests.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"engram-backend/domain/core/valueobjects"
	domainservices "engram-backend/domain/services"
	pkgerrors "engram-backend/pkg/errors"
	"engram-backend/pkg/retry"
)

// extractRequest is the wire format sent to the extraction service
type extractRequest struct {
	OwnerID             string  `json:"owner_id"`
	Text                string  `json:"text"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
}

// extractResponse is the wire format returned by the extraction service
type extractResponse struct {
	Entities []struct {
		Label      string  `json:"label"`
		Type       string  `json:"type"`
		Confidence float64 `json:"confidence"`
	} `json:"entities"`
	Relations []struct {
		Source     string  `json:"source"`
		Target     string  `json:"target"`
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	} `json:"relations"`
}

// HTTPExtractor calls an external extraction service over HTTP. A
// circuit breaker sheds load when the service is down, and transient
// failures are retried with backoff.
type HTTPExtractor struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	retry   retry.Config
	logger  *zap.Logger
}

// NewHTTPExtractor creates an extractor against the given service URL
func NewHTTPExtractor(baseURL string, timeout time.Duration, maxRetries int, logger *zap.Logger) *HTTPExtractor {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "extraction-service",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.8
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	retryCfg := retry.DefaultConfig()
	if maxRetries > 0 {
		retryCfg.MaxAttempts = maxRetries
	}

	return &HTTPExtractor{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		retry:   retryCfg,
		logger:  logger,
	}
}

// Extract sends the text to the extraction service and maps the response
// into extraction candidates. The threshold travels with the request so
// the service can skip low-scoring work, and the mapped result is
// filtered again locally in case the service ignores it.
func (e *HTTPExtractor) Extract(ctx context.Context, ownerID valueobjects.OwnerID, text string, confidenceThreshold float64) (domainservices.ExtractionResult, error) {
	var response extractResponse

	err := retry.Do(ctx, e.retry, func() error {
		_, err := e.breaker.Execute(func() (any, error) {
			return nil, e.callService(ctx, ownerID, text, confidenceThreshold, &response)
		})
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return pkgerrors.NewExtractionUnavailable("extraction service circuit open", err)
		}
		return err
	})
	if err != nil {
		return domainservices.ExtractionResult{}, err
	}

	result, err := e.mapResponse(response)
	if err != nil {
		return domainservices.ExtractionResult{}, err
	}
	return result.FilterByConfidence(confidenceThreshold), nil
}

func (e *HTTPExtractor) callService(ctx context.Context, ownerID valueobjects.OwnerID, text string, confidenceThreshold float64, out *extractResponse) error {
	body, err := json.Marshal(extractRequest{
		OwnerID:             ownerID.String(),
		Text:                text,
		ConfidenceThreshold: confidenceThreshold,
	})
	if err != nil {
		return pkgerrors.Wrap(err, "encoding extraction request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/extract", bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(err, "building extraction request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return pkgerrors.NewExtractionUnavailable("extraction service unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return pkgerrors.NewExtractionUnavailable("malformed extraction response", err)
		}
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return pkgerrors.NewExtractionUnavailable(
			fmt.Sprintf("extraction service returned %d", resp.StatusCode), nil)
	default:
		// 4xx means this text will never extract; retrying is pointless.
		io.Copy(io.Discard, resp.Body)
		return pkgerrors.NewValidation(fmt.Sprintf("extraction service rejected request with %d", resp.StatusCode))
	}
}

func (e *HTTPExtractor) mapResponse(response extractResponse) (domainservices.ExtractionResult, error) {
	result := domainservices.ExtractionResult{}

	for _, raw := range response.Entities {
		label, err := valueobjects.NewLabel(raw.Label)
		if err != nil {
			e.logger.Warn("Skipping entity with invalid label",
				zap.String("label", raw.Label), zap.Error(err))
			continue
		}
		result.Entities = append(result.Entities, domainservices.EntityCandidate{
			Label:      label,
			Type:       valueobjects.CanonicalType(raw.Type),
			Confidence: clampConfidence(raw.Confidence),
		})
	}

	for _, raw := range response.Relations {
		source, err := valueobjects.NewLabel(raw.Source)
		if err != nil {
			continue
		}
		target, err := valueobjects.NewLabel(raw.Target)
		if err != nil {
			continue
		}
		if raw.Label == "" {
			continue
		}
		result.Relations = append(result.Relations, domainservices.RelationCandidate{
			SourceLabel: source,
			TargetLabel: target,
			Label:       raw.Label,
			Confidence:  clampConfidence(raw.Confidence),
		})
	}

	return result, nil
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

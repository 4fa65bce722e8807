package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"engram-backend/application/ports"
	"engram-backend/domain/core/valueobjects"
	pkgerrors "engram-backend/pkg/errors"
)

// checkRequest is the wire format sent to the ledger service
type checkRequest struct {
	ActorID    string `json:"actor_id"`
	OwnerID    string `json:"owner_id"`
	Capability string `json:"capability"`
}

// checkResponse is the wire format returned by the ledger service
type checkResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// HTTPLedger consults an external capability ledger service. Any
// failure to reach or parse the ledger surfaces as an error; the caller
// treats that as a denial, never a grant.
type HTTPLedger struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPLedger creates a ledger client against the given service URL
func NewHTTPLedger(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPLedger {
	return &HTTPLedger{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Check asks the ledger service whether the actor holds the capability
func (l *HTTPLedger) Check(ctx context.Context, actor valueobjects.ActorID, owner valueobjects.OwnerID, capability ports.Capability) (ports.Decision, error) {
	body, err := json.Marshal(checkRequest{
		ActorID:    actor.String(),
		OwnerID:    owner.String(),
		Capability: string(capability),
	})
	if err != nil {
		return ports.Decision{}, pkgerrors.Wrap(err, "encoding ledger request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/v1/check", bytes.NewReader(body))
	if err != nil {
		return ports.Decision{}, pkgerrors.Wrap(err, "building ledger request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return ports.Decision{}, pkgerrors.NewInternal("capability ledger unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return ports.Decision{}, pkgerrors.NewInternal(
			fmt.Sprintf("capability ledger returned %d", resp.StatusCode), nil)
	}

	var decoded checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return ports.Decision{}, pkgerrors.NewInternal("malformed ledger response", err)
	}

	return ports.Decision{Allowed: decoded.Allowed, Reason: decoded.Reason}, nil
}

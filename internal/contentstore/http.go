package contentstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/smallbiznis/claimsync/internal/observability/tracing"
)

// HTTPStore posts summaries to an upload side service that answers {"cid": "..."}.
type HTTPStore struct {
	client     *http.Client
	endpoint   string
	adminEmail string
	spaceDID   string
}

type uploadRequest struct {
	Operation  string         `json:"operation"`
	AdminEmail string         `json:"adminEmail"`
	SpaceDID   string         `json:"spaceDid,omitempty"`
	Buyer      BuyerSummary   `json:"buyer"`
	Premium    PremiumSummary `json:"premium"`
}

type uploadResponse struct {
	CID   string `json:"cid"`
	Error string `json:"error"`
}

func NewHTTPStore(client *http.Client, endpoint, adminEmail, spaceDID string) *HTTPStore {
	return &HTTPStore{
		client:     tracing.WrapHTTPClient(client, "content-store"),
		endpoint:   strings.TrimSpace(endpoint),
		adminEmail: strings.TrimSpace(adminEmail),
		spaceDID:   strings.TrimSpace(spaceDID),
	}
}

func (s *HTTPStore) Store(ctx context.Context, summary Summary) (string, error) {
	payload, err := json.Marshal(uploadRequest{
		Operation:  "upload_premium",
		AdminEmail: s.adminEmail,
		SpaceDID:   s.spaceDID,
		Buyer:      summary.Buyer,
		Premium:    summary.Premium,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %w", ErrContentStoreFailure, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %w", ErrContentStoreFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrContentStoreFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrContentStoreFailure, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", ErrContentStoreFailure, resp.StatusCode)
	}

	var out uploadResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrContentStoreFailure, err)
	}
	cid := strings.TrimSpace(out.CID)
	if cid == "" {
		if out.Error != "" {
			return "", fmt.Errorf("%w: %s", ErrContentStoreFailure, out.Error)
		}
		return "", fmt.Errorf("%w: empty cid", ErrContentStoreFailure)
	}
	return cid, nil
}

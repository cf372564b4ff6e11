package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/eauxxs/rgb-std/pkg/contract"
	"github.com/eauxxs/rgb-std/pkg/inventory"
)

// HTTP resolves witness confirmation against esplora-compatible chain
// indexers, one base URL per chain.
type HTTP struct {
	client   *http.Client
	baseURLs map[contract.Chain]string
}

func NewHTTP(baseURLs map[contract.Chain]string) *HTTP {
	return &HTTP{
		client:   &http.Client{Timeout: 10 * time.Second},
		baseURLs: baseURLs,
	}
}

var _ inventory.Resolver = (*HTTP)(nil)

// ResolveHeight reports zero height for a known but unmined witness.
// Endpoint failures and unknown transactions are resolver errors, so
// importers classify them as retryable rather than as unmined.
func (r *HTTP) ResolveHeight(ctx context.Context, witnessID contract.WitnessID) (inventory.WitnessAnchor, error) {
	base, ok := r.baseURLs[witnessID.Chain]
	if !ok {
		return inventory.WitnessAnchor{}, fmt.Errorf("no resolver endpoint for chain %s", witnessID.Chain)
	}

	url := strings.TrimRight(base, "/") + "/tx/" + witnessID.Txid.String() + "/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return inventory.WitnessAnchor{}, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return inventory.WitnessAnchor{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return inventory.WitnessAnchor{}, fmt.Errorf("resolve %s: status %d", witnessID, resp.StatusCode)
	}

	var status struct {
		Confirmed   bool   `json:"confirmed"`
		BlockHeight uint32 `json:"block_height"`
		BlockTime   int64  `json:"block_time"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return inventory.WitnessAnchor{}, fmt.Errorf("resolve %s: %w", witnessID, err)
	}
	if !status.Confirmed {
		return inventory.WitnessAnchor{WitnessID: witnessID}, nil
	}
	return inventory.WitnessAnchor{
		WitnessID: witnessID,
		Height:    status.BlockHeight,
		Timestamp: status.BlockTime,
	}, nil
}

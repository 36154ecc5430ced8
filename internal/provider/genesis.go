package provider

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// rpcCaller is the slice of rpc.Client the discoverer needs.
type rpcCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// GenesisDiscoverer finds the timestamp of a token's first on-chain transfer
// through the provider's JSON-RPC endpoint. It never fails hard: anything
// that cannot be discovered defaults to one year before now.
type GenesisDiscoverer struct {
	clients map[string]rpcCaller

	attempts          int
	backoff           time.Duration
	retryAfterDefault time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGenesisDiscoverer dials one JSON-RPC client per configured network.
// Networks that fail to dial are skipped and fall back to the default
// timestamp at discovery time.
func NewGenesisDiscoverer(ctx context.Context, rpcURLs map[string]string) *GenesisDiscoverer {
	clients := make(map[string]rpcCaller, len(rpcURLs))
	for network, url := range rpcURLs {
		client, err := rpc.DialContext(ctx, url)
		if err != nil {
			log.Printf("[genesis] dial %s rpc: %v", network, err)
			continue
		}
		clients[network] = client
	}
	return &GenesisDiscoverer{
		clients:           clients,
		attempts:          3,
		backoff:           time.Second,
		retryAfterDefault: time.Second,
		now:               time.Now,
		sleep:             sleepCtx,
	}
}

type assetTransfersParams struct {
	ContractAddresses []string `json:"contractAddresses"`
	Category          []string `json:"category"`
	Order             string   `json:"order"`
	MaxCount          string   `json:"maxCount"`
}

type assetTransfersResult struct {
	Transfers []struct {
		BlockNum string `json:"blockNum"`
	} `json:"transfers"`
}

type blockHeader struct {
	Timestamp hexutil.Uint64 `json:"timestamp"`
}

// TokenCreationTime returns the block timestamp of the token's first ERC-20
// transfer. Retries up to three times with doubling backoff; an HTTP 429
// sleeps the retry-after grace and then gives up rather than hammering the
// endpoint further.
func (g *GenesisDiscoverer) TokenCreationTime(ctx context.Context, token, network string) int64 {
	defaultTs := g.now().AddDate(-1, 0, 0).Unix()

	client, ok := g.clients[network]
	if !ok {
		log.Printf("[genesis] no rpc client for network %s, defaulting to one year ago", network)
		return defaultTs
	}

	backoff := g.backoff
	for attempt := 1; attempt <= g.attempts; attempt++ {
		ts, empty, err := g.fetchOnce(ctx, client, token)
		if err == nil {
			if empty {
				log.Printf("[genesis] no transfers found for %s, defaulting to one year ago", token)
				return defaultTs
			}
			if ts <= 0 || ts > g.now().Unix() {
				log.Printf("[genesis] invalid block timestamp %d for %s, defaulting to one year ago", ts, token)
				return defaultTs
			}
			return ts
		}

		var httpErr rpc.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
			log.Printf("[genesis] rate limited discovering %s, sleeping %s and giving up", token, g.retryAfterDefault)
			_ = g.sleep(ctx, g.retryAfterDefault)
			break
		}

		log.Printf("[genesis] attempt %d/%d for %s failed: %v", attempt, g.attempts, token, err)
		if attempt == g.attempts {
			break
		}
		if sleepErr := g.sleep(ctx, backoff); sleepErr != nil {
			break
		}
		backoff *= 2
	}

	return defaultTs
}

func (g *GenesisDiscoverer) fetchOnce(ctx context.Context, client rpcCaller, token string) (ts int64, empty bool, err error) {
	params := assetTransfersParams{
		ContractAddresses: []string{token},
		Category:          []string{"erc20"},
		Order:             "asc",
		MaxCount:          "0x1",
	}

	var transfers assetTransfersResult
	if err := client.CallContext(ctx, &transfers, "alchemy_getAssetTransfers", params); err != nil {
		return 0, false, err
	}
	if len(transfers.Transfers) == 0 {
		return 0, true, nil
	}

	var head blockHeader
	if err := client.CallContext(ctx, &head, "eth_getBlockByNumber", transfers.Transfers[0].BlockNum, false); err != nil {
		return 0, false, err
	}
	return int64(head.Timestamp), false, nil
}

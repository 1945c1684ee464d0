// Package tokens memoizes ERC-20 descriptive metadata per token address.
//
// Entries never expire: name, symbol and decimals are immutable once a token
// is deployed. A failed fetch is memoized as Unavailable and is not retried
// until Invalidate is called for that address. Concurrent misses on the same
// address share one in-flight fetch.
package tokens

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"goscrow/EVMRPC"
	"goscrow/logger"
	"goscrow/metrics"
	"goscrow/types"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type MetadataCache struct {
	ledger  EVMRPC.Reader
	metrics *metrics.Metrics

	mu      sync.RWMutex
	entries map[string]types.MetadataResult
	flight  singleflight.Group
}

func NewMetadataCache(ledger EVMRPC.Reader, m *metrics.Metrics) *MetadataCache {
	return &MetadataCache{
		ledger:  ledger,
		metrics: m,
		entries: make(map[string]types.MetadataResult),
	}
}

func key(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// Get returns the cached result or fetches it once.
func (c *MetadataCache) Get(ctx context.Context, addr common.Address) types.MetadataResult {
	k := key(addr)
	if res, ok := c.Peek(addr); ok {
		return res
	}

	v, _, _ := c.flight.Do(k, func() (interface{}, error) {
		// a fetch that finished between Peek and Do already stored the entry
		if res, ok := c.Peek(addr); ok {
			return res, nil
		}
		res := c.fetch(ctx, addr)
		c.mu.Lock()
		c.entries[k] = res
		c.mu.Unlock()
		return res, nil
	})
	return v.(types.MetadataResult)
}

// Peek never touches the ledger.
func (c *MetadataCache) Peek(addr common.Address) (types.MetadataResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res, ok := c.entries[key(addr)]
	return res, ok
}

func (c *MetadataCache) fetch(ctx context.Context, addr common.Address) types.MetadataResult {
	md := types.TokenMetadata{Address: key(addr)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		md.Name, err = c.ledger.TokenName(gctx, addr)
		return
	})
	g.Go(func() (err error) {
		md.Symbol, err = c.ledger.TokenSymbol(gctx, addr)
		return
	})
	g.Go(func() (err error) {
		md.Decimals, err = c.ledger.TokenDecimals(gctx, addr)
		return
	})

	if err := g.Wait(); err != nil {
		logger.Logger.WithField("token", md.Address).Infof("Token metadata unavailable: %s", err.Error())
		c.metrics.MetadataFetches.WithLabelValues("unavailable").Inc()
		return types.Unavailable(fmt.Errorf("%w: %s: %w", types.ErrMetadataUnavailable, md.Address, err))
	}
	c.metrics.MetadataFetches.WithLabelValues("ok").Inc()
	return types.Available(md)
}

// Prefetch warms the cache for every address concurrently. There is no
// fan-out bound.
func (c *MetadataCache) Prefetch(ctx context.Context, addrs []common.Address) {
	var wg sync.WaitGroup
	for _, addr := range addrs {
		if _, ok := c.Peek(addr); ok {
			continue
		}
		wg.Add(1)
		go func(addr common.Address) {
			defer wg.Done()
			c.Get(ctx, addr)
		}(addr)
	}
	wg.Wait()
}

// Invalidate drops one entry so the next Get fetches again.
func (c *MetadataCache) Invalidate(addr common.Address) {
	c.mu.Lock()
	delete(c.entries, key(addr))
	c.mu.Unlock()
}

// Len is the number of memoized addresses, available or not.
func (c *MetadataCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

package EVMRPC

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"goscrow/logger"
	"goscrow/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client is the ledger connection shared by every component. It holds one
// ethclient per configured endpoint; reads fall back to the next endpoint on
// transport errors only, writes always go to the first endpoint.
type Client struct {
	urls     []string
	backends []*ethclient.Client
	chainID  *big.Int
	escrow   common.Address
}

func Dial(ctx context.Context, urls []string, chainID int64, escrow common.Address) (*Client, error) {
	if len(urls) == 0 {
		return nil, errors.New("no EVM RPC endpoints configured")
	}
	c := &Client{
		chainID: big.NewInt(chainID),
		escrow:  escrow,
	}
	for _, url := range urls {
		backend, err := ethclient.DialContext(ctx, url)
		if err != nil {
			logger.Logger.Warnf("Error connecting to %s: %s", url, err.Error())
			continue
		}
		c.urls = append(c.urls, url)
		c.backends = append(c.backends, backend)
	}
	if len(c.backends) == 0 {
		return nil, fmt.Errorf("%w: none of %d endpoints could be dialed", types.ErrTransport, len(urls))
	}
	return c, nil
}

func (c *Client) Close() {
	for _, b := range c.backends {
		b.Close()
	}
}

func (c *Client) EscrowAddress() common.Address {
	return c.escrow
}

func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

func (c *Client) URLs() []string {
	return append([]string(nil), c.urls...)
}

func (c *Client) primary() *ethclient.Client {
	return c.backends[0]
}

// WithClient runs f against each endpoint in order until one answers.
// Ledger-side rejections are returned immediately: another endpoint would
// give the same answer.
func WithClient[T any](c *Client, f func(client *ethclient.Client) (T, error)) (res T, err error) {
	for i, backend := range c.backends {
		res, err = f(backend)
		if err == nil {
			return res, nil
		}
		err = classifyCall(err)
		if !errors.Is(err, types.ErrTransport) {
			return res, err
		}
		logger.Logger.WithField("endpoint", c.urls[i]).Warnf("EVM RPC call failed: %s", err.Error())
	}
	return res, err
}

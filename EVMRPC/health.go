package EVMRPC

import (
	"net/http"
	"time"

	"github.com/ybbus/jsonrpc"
)

// an endpoint that does not answer within this is reported as failing
var healthTimeout = 5 * time.Second

type EndpointHealth struct {
	URL     string `json:"url"`
	Version string `json:"clientVersion,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Health asks every configured endpoint for web3_clientVersion with a plain
// JSON-RPC call, outside of the ethclient connections used for traffic.
func (c *Client) Health() []EndpointHealth {
	res := make([]EndpointHealth, 0, len(c.urls))
	for _, url := range c.urls {
		h := EndpointHealth{URL: url}
		rpcClient := jsonrpc.NewClientWithOpts(url, &jsonrpc.RPCClientOpts{
			HTTPClient: &http.Client{Timeout: healthTimeout},
		})
		resp, err := rpcClient.Call("web3_clientVersion")
		switch {
		case err != nil:
			h.Error = err.Error()
		case resp.Error != nil:
			h.Error = resp.Error.Message
		default:
			h.Version, err = resp.GetString()
			if err != nil {
				h.Error = err.Error()
			}
		}
		res = append(res, h)
	}
	return res
}

func (h EndpointHealth) OK() bool {
	return h.Error == ""
}

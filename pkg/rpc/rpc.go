package rpc

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
)

// DialTimeout bounds connecting to and checking a single endpoint
const DialTimeout = 10 * time.Second

// Conn is a JSON-RPC connection to one layer
type Conn struct {
	URL  string
	Eth  *ethclient.Client
	Geth *gethclient.Client
	raw  *gethrpc.Client
}

// Close closes the underlying connection
func (c *Conn) Close() {
	if c != nil && c.raw != nil {
		c.raw.Close()
	}
}

// Dial connects to the first endpoint in urls that answers eth_chainId with chainID.
// Endpoints that cannot be reached or serve another chain are skipped.
func Dial(ctx context.Context, urls []string, chainID uint64) (*Conn, error) {
	if len(urls) == 0 {
		return nil, errors.New("no RPC endpoint configured")
	}

	var lastErr error
	for _, url := range urls {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}

		conn, err := dialOne(ctx, url, chainID)
		if err != nil {
			log.Printf("[RPC] skipping %s: %v", redact(url), err)
			lastErr = err
			continue
		}
		return conn, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no RPC endpoint configured")
	}
	return nil, errors.Wrapf(lastErr, "no usable RPC endpoint for chain %d", chainID)
}

func dialOne(ctx context.Context, url string, chainID uint64) (*Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, DialTimeout)
	defer cancel()

	raw, err := gethrpc.DialContext(dialCtx, url)
	if err != nil {
		return nil, errors.Wrap(err, "dial")
	}

	client := ethclient.NewClient(raw)
	got, err := client.ChainID(dialCtx)
	if err != nil {
		raw.Close()
		return nil, errors.Wrap(err, "eth_chainId")
	}
	if got.Uint64() != chainID {
		raw.Close()
		return nil, errors.Errorf("endpoint serves chain %d, want %d", got.Uint64(), chainID)
	}

	return &Conn{
		URL:  url,
		Eth:  client,
		Geth: gethclient.New(raw),
		raw:  raw,
	}, nil
}

// redact hides API keys that providers put in the last path segment
func redact(url string) string {
	i := strings.LastIndex(url, "/")
	if i < 0 || i == len(url)-1 || !strings.Contains(url[:i], "://") {
		return url
	}
	key := url[i+1:]
	if len(key) < 16 {
		return url
	}
	return url[:i+1] + key[:4] + "..."
}

package sugar

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"dromadaire/internal/chain"
	"dromadaire/internal/clients"
	"dromadaire/internal/registry"
)

// Conn is a live RPC connection to one chain.
type Conn interface {
	chain.Caller
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// DialFunc opens a connection to an RPC endpoint.
type DialFunc func(ctx context.Context, rpcURL string) (Conn, error)

// Endpoint locates the RPC node and LpSugar contract of one source.
type Endpoint struct {
	RPCURL string
	Sugar  string
}

// Opener builds Handles from per-source endpoints.
type Opener struct {
	endpoints map[string]Endpoint
	cfg       HandleConfig
	dial      DialFunc
	logger    *zap.Logger
}

var _ clients.Opener = (*Opener)(nil)

// NewOpener returns an Opener dialing with chain.NewClient unless dial is set.
func NewOpener(endpoints map[string]Endpoint, cfg HandleConfig, dial DialFunc, logger *zap.Logger) *Opener {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dial == nil {
		dial = func(ctx context.Context, rpcURL string) (Conn, error) {
			client, err := chain.NewClient(ctx, rpcURL)
			if err != nil {
				return nil, err
			}
			return client, nil
		}
	}
	return &Opener{
		endpoints: endpoints,
		cfg:       cfg.withDefaults(),
		dial:      dial,
		logger:    logger,
	}
}

// Open dials the source's RPC endpoint and checks that the node serves the
// expected chain.
func (o *Opener) Open(ctx context.Context, src registry.Source) (clients.Handle, error) {
	endpoint, ok := o.endpoints[src.ID]
	if !ok || endpoint.RPCURL == "" {
		return nil, fmt.Errorf("no rpc url configured for %s", src.Name)
	}
	if !common.IsHexAddress(endpoint.Sugar) {
		return nil, fmt.Errorf("%w for %s (set sugar.%s)", ErrNoSugarContract, src.Name, src.ID)
	}

	openCtx, cancel := context.WithTimeout(ctx, o.cfg.OpenTimeout)
	defer cancel()

	conn, err := o.dial(openCtx, endpoint.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", src.Name, err)
	}

	chainID, err := conn.ChainID(openCtx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("chain id %s: %w", src.Name, err)
	}
	if chainID.String() != src.ID {
		conn.Close()
		return nil, fmt.Errorf("rpc for %s reports chain id %s", src.Name, chainID)
	}

	o.logger.Info("source connected", zap.String("source", src.ID), zap.String("name", src.Name))
	return NewHandle(src, conn, common.HexToAddress(endpoint.Sugar), o.cfg, conn.Close, o.logger), nil
}

package chainrpc

import (
	"context"
	"fmt"

	"github.com/omnisig/relay/internal/chain"
)

// Pool holds one Client per supported network.
type Pool struct {
	clients map[chain.ID]*Client
}

// NewPool dials every chain in ids up front so a bad endpoint set fails at
// startup, not mid-pipeline.
func NewPool(ctx context.Context, ids []chain.ID) (*Pool, error) {
	clients := make(map[chain.ID]*Client, len(ids))
	for _, id := range ids {
		target, err := chain.Get(id)
		if err != nil {
			return nil, err
		}
		client, err := Dial(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("failed to dial %s: %w", id, err)
		}
		clients[id] = client
	}
	return &Pool{clients: clients}, nil
}

func (p *Pool) Get(id chain.ID) (*Client, error) {
	client, ok := p.clients[id]
	if !ok {
		return nil, fmt.Errorf("failed to get rpc client for chain: %s", id)
	}
	return client, nil
}

// Package inference implements the inference-request lifecycle:
// discovering a peer that offers a requested model, submitting the usage
// request, proving payment, and polling for and decoding the final
// result.
package inference

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/pastelnetwork/supernode-client/internal/peer"
	"github.com/pastelnetwork/supernode-client/internal/persistence"
	"github.com/pastelnetwork/supernode-client/internal/protocol"
	"github.com/pastelnetwork/supernode-client/internal/rpcclient"
	"github.com/pastelnetwork/supernode-client/internal/supernode"
)

// ChainClient is the subset of internal/rpcclient.Client the inference
// engine depends on.
type ChainClient interface {
	GetBestBlockHash(ctx context.Context) (string, error)
	GetBlock(ctx context.Context, hash string) (rpcclient.Block, error)
	SendMany(ctx context.Context, fromAccount string, recipients []rpcclient.SendManyRecipient, memo string) (string, error)
	ListAddressAmounts(ctx context.Context) (map[string]float64, error)
}

// PeerLister refreshes and filters the active peer snapshot.
type PeerLister interface {
	Refresh(ctx context.Context) (peer.Snapshot, error)
}

// SupernodeDialer builds a supernode.Client bound to one peer's base URL.
type SupernodeDialer func(baseURL string) *supernode.Client

// Engine drives discover/submit against the active peer set.
type Engine struct {
	identity   protocol.Identity
	passphrase string
	signer     protocol.Signer
	chain      ChainClient
	peers      PeerLister
	store      *persistence.Store
	dial       SupernodeDialer
	log        *logrus.Logger
}

// New builds an inference Engine.
func New(identity protocol.Identity, passphrase string, signer protocol.Signer, chain ChainClient, peers PeerLister, store *persistence.Store, dial SupernodeDialer, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{identity: identity, passphrase: passphrase, signer: signer, chain: chain, peers: peers, store: store, dial: dial, log: log}
}

func (e *Engine) currentBlockHeight(ctx context.Context) (int64, error) {
	hash, err := e.chain.GetBestBlockHash(ctx)
	if err != nil {
		return 0, err
	}
	block, err := e.chain.GetBlock(ctx, hash)
	if err != nil {
		return 0, err
	}
	return block.Height, nil
}

package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/pastelnetwork/supernode-client/internal/audit"
	"github.com/pastelnetwork/supernode-client/internal/config"
	"github.com/pastelnetwork/supernode-client/internal/inference"
	"github.com/pastelnetwork/supernode-client/internal/metrics"
	"github.com/pastelnetwork/supernode-client/internal/oracle"
	"github.com/pastelnetwork/supernode-client/internal/peer"
	"github.com/pastelnetwork/supernode-client/internal/persistence"
	"github.com/pastelnetwork/supernode-client/internal/protocol"
	"github.com/pastelnetwork/supernode-client/internal/purchase"
	"github.com/pastelnetwork/supernode-client/internal/rpcclient"
	"github.com/pastelnetwork/supernode-client/internal/supernode"
	"github.com/pastelnetwork/supernode-client/pkg/utils"
)

// operationTimeout is the overall deadline one top-level purchase or
// inference operation runs under; exceeding it cancels outstanding peer
// calls and the engine returns the partial result it reached.
const operationTimeout = 900 * time.Second

// app bundles the constructed engines and collaborators every subcommand
// needs, built once per process, lazily, behind a sync.Once.
type app struct {
	log         *logrus.Logger
	chain       *rpcclient.Client
	registry    *peer.Registry
	store       *persistence.Store
	priceOracle *oracle.Oracle
	metrics     *metrics.Collector
	cfg         config.Config

	identity   protocol.Identity
	passphrase string
}

var (
	appOnce sync.Once
	theApp  *app
	appErr  error
)

func getApp() (*app, error) {
	appOnce.Do(func() {
		_ = godotenv.Load()

		log := logrus.StandardLogger()

		identity := protocol.Identity(os.Getenv("PASTEL_ID"))
		if identity == "" {
			appErr = fmt.Errorf("PASTEL_ID not set")
			return
		}
		passphrase := os.Getenv("PASTEL_PASSPHRASE")

		rpcEndpoint := utils.EnvOrDefault("PASTEL_RPC_ENDPOINT", "http://127.0.0.1:9932")
		rpcUser := utils.EnvOrDefault("PASTEL_RPC_USER", "")
		rpcPass := utils.EnvOrDefault("PASTEL_RPC_PASSWORD", "")
		chain := rpcclient.New(rpcEndpoint, rpcUser, rpcPass, rpcclient.WithLogger(log))

		priceSourceAURL := utils.EnvOrDefault("PRICE_SOURCE_A_URL", "https://api.coingecko.com/api/v3/simple/price?ids=pastel&vs_currencies=usd")
		priceSourceBURL := utils.EnvOrDefault("PRICE_SOURCE_B_URL", "https://api.coinpaprika.com/v1/tickers/psl-pastel")
		priceOracle := oracle.New(
			oracle.NewHTTPSource("coingecko", priceSourceAURL, "usd"),
			oracle.NewHTTPSource("coinpaprika", priceSourceBURL, "price_usd"),
			log,
		)

		theApp = &app{
			log:         log,
			chain:       chain,
			registry:    peer.New(chain),
			store:       persistence.NewStore(),
			priceOracle: priceOracle,
			metrics:     metrics.New(log),
			cfg:         config.Load(),
			identity:    identity,
			passphrase:  passphrase,
		}
	})
	return theApp, appErr
}

func (a *app) dialSupernode(baseURL string) *supernode.Client {
	return supernode.New(baseURL, a.identity, a.chain, a.passphrase)
}

func (a *app) purchaseEngine() *purchase.Engine {
	return purchase.New(a.identity, a.passphrase, a.chain, a.chain, a.registry, a.store, a.priceOracle, a.dialSupernode, a.log)
}

func (a *app) inferenceEngine() *inference.Engine {
	return inference.New(a.identity, a.passphrase, a.chain, a.chain, a.registry, a.store, a.dialSupernode, a.log)
}

func (a *app) auditValidator() *audit.Validator {
	return audit.New(a.identity, a.registry, a.dialSupernode, a.log)
}

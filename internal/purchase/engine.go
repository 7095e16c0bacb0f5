// Package purchase implements the credit-pack purchase state machine of
// INIT through REQUESTED, QUOTED, AGREED, SIGNED, BURN_SENT,
// CONFIRMED, to the terminal COMPLETED/FAILED/REJECTED/DECLINED/
// TERMINATED states, including quorum signature verification and the
// storage-retry fallback.
package purchase

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pastelnetwork/supernode-client/internal/envelope"
	"github.com/pastelnetwork/supernode-client/internal/oracle"
	"github.com/pastelnetwork/supernode-client/internal/peer"
	"github.com/pastelnetwork/supernode-client/internal/persistence"
	"github.com/pastelnetwork/supernode-client/internal/protocol"
	"github.com/pastelnetwork/supernode-client/internal/rpcclient"
	"github.com/pastelnetwork/supernode-client/internal/supernode"
)

// ChainClient is the subset of internal/rpcclient.Client the purchase
// engine depends on.
type ChainClient interface {
	GetBestBlockHash(ctx context.Context) (string, error)
	GetBlock(ctx context.Context, hash string) (rpcclient.Block, error)
	SendToAddress(ctx context.Context, address string, amount float64, comment string) (string, error)
}

// PeerLister refreshes and filters the active peer snapshot.
type PeerLister interface {
	Refresh(ctx context.Context) (peer.Snapshot, error)
}

// SupernodeDialer builds a supernode.Client bound to one peer's base URL,
// authenticating as the engine's own identity.
type SupernodeDialer func(baseURL string) *supernode.Client

// Engine drives one purchase operation at a time; it holds no per-purchase
// state itself (every Purchase call is independent).
type Engine struct {
	identity   protocol.Identity
	passphrase string
	signer     protocol.Signer
	chain      ChainClient
	peers      PeerLister
	store      *persistence.Store
	oracle     *oracle.Oracle
	dial       SupernodeDialer
	log        *logrus.Logger
}

// New builds a purchase Engine.
func New(identity protocol.Identity, passphrase string, signer protocol.Signer, chain ChainClient, peers PeerLister, store *persistence.Store, costOracle *oracle.Oracle, dial SupernodeDialer, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{
		identity: identity, passphrase: passphrase, signer: signer,
		chain: chain, peers: peers, store: store, oracle: costOracle, dial: dial, log: log,
	}
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

// Purchase runs the full state machine to completion (or to the first
// terminal failure) and returns the trail of messages produced.
func (e *Engine) Purchase(ctx context.Context, p Params, targetUSDPerCredit, targetMargin float64) *Result {
	res := &Result{Stage: StageInit}
	logFields := logrus.Fields{"stage": StageInit}
	e.log.WithFields(logFields).Info("purchase: starting")

	snap, err := e.peers.Refresh(ctx)
	if err != nil {
		return res.fail(StageInit, err)
	}
	active := peer.FilterActive(snap)

	responder, ok := drawResponder(e.identity, active)
	if !ok {
		return res.fail(StageInit, protocol.NewEngineError(protocol.KindPeerUnreachable, "no active peers available", nil))
	}

	height, err := e.currentBlockHeight(ctx)
	if err != nil {
		return res.fail(StageInit, err)
	}

	req := &protocol.CreditPackPurchaseRequest{
		Envelope:                   protocol.Envelope{Timestamp: time.Now().UTC(), BlockHeight: height, Version: "1.0"},
		RequestingUserIdentity:     e.identity,
		RequestedInitialCredits:    p.RequestedCredits,
		ListOfAuthorizedPastelids:  p.AuthorizedPastelIDs,
		CreditUsageTrackingAddress: p.TrackingAddress,
	}
	hash, sig, err := envelope.Sign(e.signer, e.identity, e.passphrase, req)
	if err != nil {
		return res.fail(StageInit, err)
	}
	req.RequestHash, req.RequesterSignature = hash, sig
	res.Request = req
	e.store.InsertPurchaseRequest(req)
	res.Stage = StageRequested

	client := e.dial(responder.URL)

	var quote *protocol.PreliminaryPriceQuote
	err = withEdgeRetry(ctx, func() error {
		q, err := client.CreditPurchaseInitialRequest(ctx, req)
		if err != nil {
			return err
		}
		quote = q
		return nil
	})
	if err != nil {
		return res.fail(StageRequested, err)
	}
	if err := envelope.RequireValid(quote, envelope.ValidationContext{
		Signer:             e.signer,
		SignerIdentity:     quote.ResponderIdentity,
		CurrentBlockHeight: height,
		PredecessorHashes:  map[string]bool{req.RequestHash: true},
	}); err != nil {
		res.Quote = quote
		return res.fail(StageRequested, err)
	}
	res.Quote = quote
	e.store.InsertPreliminaryPriceQuote(quote)
	res.Stage = StageQuoted

	fairMarket, err := e.oracle.Quote(ctx, targetUSDPerCredit, targetMargin)
	if err != nil {
		return res.fail(StageQuoted, err)
	}
	agree := agreeWithQuote(quote, fairMarket, p.MaxPerCreditPSL, p.MaxTotalPSL, p.MaxDelta)

	quoteResp := &protocol.PriceQuoteResponse{
		Envelope:              protocol.Envelope{Timestamp: time.Now().UTC(), BlockHeight: height, Version: "1.0"},
		CreditPackRequestHash: req.RequestHash,
		PriceQuoteHash:        quote.QuoteHash,
		Agree:                 agree,
		RequesterIdentity:     e.identity,
	}
	hash, sig, err = envelope.Sign(e.signer, e.identity, e.passphrase, quoteResp)
	if err != nil {
		return res.fail(StageQuoted, err)
	}
	quoteResp.ResponseHash, quoteResp.RequesterSignature = hash, sig
	res.QuoteResponse = quoteResp

	if !agree {
		res.Stage = StageDeclined
		return res
	}
	res.Stage = StageAgreed

	var purchaseResp *protocol.PurchaseResponse
	err = withEdgeRetry(ctx, func() error {
		r, err := client.PriceQuoteResponse(ctx, quoteResp)
		if err != nil {
			return err
		}
		purchaseResp = r
		return nil
	})
	if err != nil {
		return res.fail(StageAgreed, err)
	}
	if purchaseResp.IsRejection() {
		res.Response = purchaseResp
		res.Stage = StageTerminated
		return res
	}
	// The quorum dict, not the top-level responder signature, is what
	// authenticates a purchase response, so envelope validation here
	// covers hash, clock, height and predecessors; verifyQuorum covers
	// every signer's signature.
	if err := envelope.RequireValid(purchaseResp, envelope.ValidationContext{
		CurrentBlockHeight: height,
		PredecessorHashes:  map[string]bool{req.RequestHash: true},
	}); err != nil {
		res.Response = purchaseResp
		return res.fail(StageAgreed, err)
	}
	if err := verifyQuorum(e.signer, purchaseResp); err != nil {
		res.Response = purchaseResp
		return res.fail(StageAgreed, err)
	}
	res.Response = purchaseResp
	e.store.InsertPurchaseResponse(purchaseResp)
	res.Stage = StageSigned

	burnAmount := math.Round(purchaseResp.ProposedTotalCost*1e5) / 1e5
	var burnTxid string
	err = withEdgeRetry(ctx, func() error {
		txid, err := e.chain.SendToAddress(ctx, p.BurnAddress, burnAmount, fmt.Sprintf("Credit pack purchase burn for request %s", req.RequestHash))
		if err != nil {
			return err
		}
		burnTxid = txid
		return nil
	})
	if err != nil {
		return res.fail(StageSigned, err)
	}
	res.BurnTxid = burnTxid
	res.Stage = StageBurnSent

	confirmation := &protocol.PurchaseConfirmation{
		Envelope:               protocol.Envelope{Timestamp: time.Now().UTC(), BlockHeight: height, Version: "1.0"},
		CreditPackRequestHash:  req.RequestHash,
		CreditPackResponseHash: purchaseResp.ResponseHash,
		BurnTransactionTxid:    burnTxid,
		RequesterIdentity:      e.identity,
	}
	hash, sig, err = envelope.Sign(e.signer, e.identity, e.passphrase, confirmation)
	if err != nil {
		return res.fail(StageBurnSent, err)
	}
	confirmation.ConfirmationHash, confirmation.RequesterSignature = hash, sig
	res.Confirmation = confirmation
	e.store.InsertPurchaseConfirmation(confirmation)

	if err := withEdgeRetry(ctx, func() error {
		return client.CreditPackPurchaseCompletionAnnouncement(ctx, confirmation)
	}); err != nil {
		return res.fail(StageBurnSent, err)
	}
	res.Stage = StageConfirmed

	registrationTxid, completed := e.pollStatus(ctx, client, responder, active, req.RequestHash)
	if completed {
		res.RegistrationTxid = registrationTxid
		res.Stage = StageCompleted
		return res
	}
	res.Stage = StageStorageFailed

	return e.retryStorage(ctx, active, purchaseResp, confirmation, res)
}

// pollStatus implements the status-polling algorithm: try the
// original responder first, then the 12 closest peers in order, taking
// the first peer to report "completed".
func (e *Engine) pollStatus(ctx context.Context, originalClient *supernode.Client, responder peer.RankedPeer, active peer.Snapshot, requestHash string) (string, bool) {
	candidates := []peer.RankedPeer{responder}
	candidates = append(candidates, peer.TopNByXor(e.identity, active, responderBandSize)...)

	clients := make(map[string]*supernode.Client, len(candidates))
	clients[responder.URL] = originalClient

	for _, cand := range candidates {
		client, ok := clients[cand.URL]
		if !ok {
			client = e.dial(cand.URL)
			clients[cand.URL] = client
		}
		status, err := client.CheckStatusOfCreditPurchaseRequest(ctx, requestHash, e.identity)
		if err != nil {
			continue
		}
		e.store.PurchaseStatuses.Insert(status.StatusHash, status)
		if status.Status == protocol.StatusCompleted {
			return status.CreditPackRegistrationTxid, true
		}
	}
	return "", false
}

// retryStorage implements the storage-retry fallback.
func (e *Engine) retryStorage(ctx context.Context, active peer.Snapshot, purchaseResp *protocol.PurchaseResponse, confirmation *protocol.PurchaseConfirmation, res *Result) *Result {
	// Responses for this request may have accumulated across earlier
	// partial runs; the fallback signer set comes from the most recent.
	if latest := e.store.LatestPurchaseResponse(string(purchaseResp.CreditPackRequestHash)); latest != nil {
		purchaseResp = latest
	}
	agreeing := purchaseResp.SelectedAgreeingSupernodes
	fallback, ok := closestAgreeingPeer(e.identity, active, agreeing)
	if !ok {
		return res.fail(StageStorageFailed, protocol.NewEngineError(protocol.KindPeerUnreachable, "no agreeing peer available for storage retry", nil))
	}

	retryReq := &protocol.StorageRetryRequest{
		Envelope:               protocol.Envelope{Timestamp: time.Now().UTC(), Version: "1.0"},
		CreditPackRequestHash:  string(purchaseResp.CreditPackRequestHash),
		CreditPackResponseHash: purchaseResp.ResponseHash,
		RequesterIdentity:      e.identity,
	}
	hash, sig, err := envelope.Sign(e.signer, e.identity, e.passphrase, retryReq)
	if err != nil {
		return res.fail(StageStorageFailed, err)
	}
	retryReq.RequestHash, retryReq.RequesterSignature = hash, sig

	fallbackClient := e.dial(fallback.URL)
	var retryResp *protocol.StorageRetryResponse
	err = withEdgeRetry(ctx, func() error {
		r, err := fallbackClient.CreditPackStorageRetryRequest(ctx, retryReq)
		if err != nil {
			return err
		}
		retryResp = r
		return nil
	})
	if err != nil || retryResp.IsRejection() {
		if err == nil {
			err = protocol.NewEngineError(protocol.KindPeerRejection, "storage retry rejected", nil).WithPeer(fallback.Identity)
		}
		return res.fail(StageFailed, err)
	}

	byIdentity := make(map[protocol.Identity]string, len(active.Peers))
	for _, p := range active.Peers {
		byIdentity[p.Identity] = peer.URLForPeer(p)
	}
	for _, id := range agreeing {
		if id == fallback.Identity {
			continue
		}
		url, ok := byIdentity[id]
		if !ok {
			continue
		}
		broadcastClient := e.dial(url)
		if err := broadcastClient.CreditPackStorageRetryCompletionAnnouncement(ctx, retryResp); err != nil {
			e.log.WithFields(logrus.Fields{"peer": id, "error": err}).Warn("storage retry completion announcement failed")
		}
	}

	res.RegistrationTxid = retryResp.CreditPackRegistrationTxid
	res.Stage = StageCompleted
	return res
}

func (r *Result) fail(stage Stage, err error) *Result {
	r.Stage = stage
	r.Err = err
	return r
}

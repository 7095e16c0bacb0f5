package persistence

import "github.com/pastelnetwork/supernode-client/internal/protocol"

// Store aggregates one Table per message kind the purchase and inference
// engines produce or consume. The zero value is not usable;
// construct with NewStore.
type Store struct {
	PurchaseRequests       *Table[*protocol.CreditPackPurchaseRequest]
	PreliminaryPriceQuotes *Table[*protocol.PreliminaryPriceQuote]
	PriceQuoteResponses    *Table[*protocol.PriceQuoteResponse]
	PurchaseResponses      *Table[*protocol.PurchaseResponse]
	PurchaseConfirmations  *Table[*protocol.PurchaseConfirmation]
	PurchaseStatuses       *Table[*protocol.PurchaseStatus]
	StorageRetryRequests   *Table[*protocol.StorageRetryRequest]
	StorageRetryResponses  *Table[*protocol.StorageRetryResponse]

	InferenceUsageRequests  *Table[*protocol.InferenceUsageRequest]
	InferenceUsageResponses *Table[*protocol.InferenceUsageResponse]
	InferenceConfirmations  *Table[*protocol.InferenceConfirmation]
	InferenceOutputResults  *Table[*protocol.InferenceOutputResult]
}

// NewStore builds an empty in-memory Store.
func NewStore() *Store {
	return &Store{
		PurchaseRequests:        NewTable[*protocol.CreditPackPurchaseRequest](),
		PreliminaryPriceQuotes:  NewTable[*protocol.PreliminaryPriceQuote](),
		PriceQuoteResponses:     NewTable[*protocol.PriceQuoteResponse](),
		PurchaseResponses:       NewTable[*protocol.PurchaseResponse](),
		PurchaseConfirmations:   NewTable[*protocol.PurchaseConfirmation](),
		PurchaseStatuses:        NewTable[*protocol.PurchaseStatus](),
		StorageRetryRequests:    NewTable[*protocol.StorageRetryRequest](),
		StorageRetryResponses:   NewTable[*protocol.StorageRetryResponse](),
		InferenceUsageRequests:  NewTable[*protocol.InferenceUsageRequest](),
		InferenceUsageResponses: NewTable[*protocol.InferenceUsageResponse](),
		InferenceConfirmations:  NewTable[*protocol.InferenceConfirmation](),
		InferenceOutputResults:  NewTable[*protocol.InferenceOutputResult](),
	}
}

// InsertPurchaseRequest records req under its own request hash
// (insert-on-seen).
func (s *Store) InsertPurchaseRequest(req *protocol.CreditPackPurchaseRequest) bool {
	return s.PurchaseRequests.Insert(req.RequestHash, req)
}

// InsertPreliminaryPriceQuote records a quote under its own quote hash,
// foreign-keyed to the request hash it quotes against.
func (s *Store) InsertPreliminaryPriceQuote(quote *protocol.PreliminaryPriceQuote) bool {
	return s.PreliminaryPriceQuotes.Insert(quote.QuoteHash, quote)
}

// InsertPurchaseResponse records a quorum-signed offer under its own
// response hash.
func (s *Store) InsertPurchaseResponse(resp *protocol.PurchaseResponse) bool {
	return s.PurchaseResponses.Insert(resp.ResponseHash, resp)
}

// InsertPurchaseConfirmation records the burn-txid confirmation under its
// own confirmation hash.
func (s *Store) InsertPurchaseConfirmation(conf *protocol.PurchaseConfirmation) bool {
	return s.PurchaseConfirmations.Insert(conf.ConfirmationHash, conf)
}

// InsertInferenceUsageRequest records an inference usage request under its
// own request hash.
func (s *Store) InsertInferenceUsageRequest(req *protocol.InferenceUsageRequest) bool {
	return s.InferenceUsageRequests.Insert(req.RequestHash, req)
}

// InsertInferenceUsageResponse records an inference usage response under
// its own response hash.
func (s *Store) InsertInferenceUsageResponse(resp *protocol.InferenceUsageResponse) bool {
	return s.InferenceUsageResponses.Insert(resp.ResponseHash, resp)
}

// InsertInferenceConfirmation records the payment-proof confirmation
// under its own confirmation hash.
func (s *Store) InsertInferenceConfirmation(conf *protocol.InferenceConfirmation) bool {
	return s.InferenceConfirmations.Insert(conf.ConfirmationHash, conf)
}

// InsertInferenceOutputResult records a decoded output result under its
// own result hash.
func (s *Store) InsertInferenceOutputResult(res *protocol.InferenceOutputResult) bool {
	return s.InferenceOutputResults.Insert(res.ResultHash, res)
}

// LatestPurchaseResponse folds every stored PurchaseResponse for
// requestHash down to the most recent by BestBlockHeight, or nil if none
// is stored. Multiple responses for one request accumulate when the
// engine re-runs a purchase after a partial failure.
func (s *Store) LatestPurchaseResponse(requestHash string) *protocol.PurchaseResponse {
	all := s.PurchaseResponses.All()
	records := make([]*protocol.PurchaseResponse, 0, len(all))
	for _, r := range all {
		if string(r.CreditPackRequestHash) == requestHash {
			records = append(records, r)
		}
	}
	deduped := DedupByIdentityAndRequestHash(records,
		func(r *protocol.PurchaseResponse) DedupKey {
			return DedupKey{RequestHash: string(r.CreditPackRequestHash)}
		},
		func(r *protocol.PurchaseResponse) int64 { return r.BestBlockHeight },
	)
	if len(deduped) == 0 {
		return nil
	}
	return deduped[0]
}

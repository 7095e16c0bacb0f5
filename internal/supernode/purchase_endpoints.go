package supernode

import (
	"context"
	"fmt"

	"github.com/pastelnetwork/supernode-client/internal/protocol"
)

// CreditPurchaseInitialRequest posts the CPPR to a candidate responder
// and returns its preliminary price quote.
func (c *Client) CreditPurchaseInitialRequest(ctx context.Context, req *protocol.CreditPackPurchaseRequest) (*protocol.PreliminaryPriceQuote, error) {
	var out protocol.PreliminaryPriceQuote
	if err := c.post(ctx, "/credit_purchase_initial_request", TimeoutNormal, structToMap(req), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PriceQuoteResponse posts the requester's accept/decline of a quote. This
// is a long-running endpoint: the responder may need to collect quorum
// signatures before replying.
func (c *Client) PriceQuoteResponse(ctx context.Context, resp *protocol.PriceQuoteResponse) (*protocol.PurchaseResponse, error) {
	var out protocol.PurchaseResponse
	if err := c.post(ctx, "/credit_purchase_preliminary_price_quote_response", TimeoutLong, structToMap(resp), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckStatusOfCreditPurchaseRequest polls a peer for the current status
// of a previously confirmed purchase.
func (c *Client) CheckStatusOfCreditPurchaseRequest(ctx context.Context, creditPackRequestHash string, requesterIdentity protocol.Identity) (*protocol.PurchaseStatus, error) {
	var out protocol.PurchaseStatus
	payload := map[string]interface{}{
		"sha3_256_hash_of_credit_pack_purchase_request_fields": creditPackRequestHash,
		"requesting_end_user_pastelid":                         requesterIdentity,
	}
	if err := c.post(ctx, "/check_status_of_credit_purchase_request", TimeoutNormal, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreditPackPurchaseCompletionAnnouncement broadcasts the completed
// purchase to a peer that did not originally respond.
func (c *Client) CreditPackPurchaseCompletionAnnouncement(ctx context.Context, confirmation *protocol.PurchaseConfirmation) error {
	return c.post(ctx, "/credit_pack_purchase_completion_announcement", TimeoutNormal, structToMap(confirmation), nil)
}

// CreditPackStorageRetryRequest asks a fallback peer to anchor the
// registration ticket after the original responder failed to.
func (c *Client) CreditPackStorageRetryRequest(ctx context.Context, req *protocol.StorageRetryRequest) (*protocol.StorageRetryResponse, error) {
	var out protocol.StorageRetryResponse
	if err := c.post(ctx, "/credit_pack_storage_retry_request", TimeoutNormal, structToMap(req), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreditPackStorageRetryCompletionAnnouncement broadcasts a successful
// storage-retry outcome to peers that did not handle the retry.
func (c *Client) CreditPackStorageRetryCompletionAnnouncement(ctx context.Context, resp *protocol.StorageRetryResponse) error {
	return c.post(ctx, "/credit_pack_storage_retry_completion_announcement", TimeoutNormal, structToMap(resp), nil)
}

// GetCreditPackTicketFromTxid fetches the on-chain registration ticket a
// purchase eventually anchors.
func (c *Client) GetCreditPackTicketFromTxid(ctx context.Context, txid string) (map[string]interface{}, error) {
	var out map[string]interface{}
	path := fmt.Sprintf("/get_credit_pack_ticket_from_txid?txid=%s", txid)
	if err := c.get(ctx, path, TimeoutNormal, &out); err != nil {
		return nil, err
	}
	return out, nil
}

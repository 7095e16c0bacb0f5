package protocol

// Message kinds. Every struct embeds Envelope and declares, as its two
// final fields, its own hash (JSON tag sha3_256_hash_of_<kind>_fields)
// and its own signature (JSON tag containing "_signature");
// internal/envelope discovers both by naming convention plus declaration
// order, so hashing logic never special-cases a message kind by name.
// Earlier sha3_256_hash_of_* fields are predecessor references and stay
// in the hash input.

// CreditPackPurchaseRequest is the requester-signed opening message of a
// credit-pack purchase (CPPR for short).
type CreditPackPurchaseRequest struct {
	Envelope
	RequestingUserIdentity   Identity   `json:"requesting_user_identity"`
	RequestedInitialCredits  int64      `json:"requested_initial_credits_in_credit_pack"`
	ListOfAuthorizedPastelids []Identity `json:"list_of_authorized_pastelids_allowed_to_use_credit_pack"`
	CreditUsageTrackingAddress string   `json:"credit_usage_tracking_psl_address"`

	RequestHash      string `json:"sha3_256_hash_of_credit_pack_purchase_request_fields"`
	RequesterSignature string `json:"requester_signature"`
}

// PreliminaryPriceQuote is the responder's quote against a known CPPR.
type PreliminaryPriceQuote struct {
	Envelope
	CreditPackRequestHash Identity `json:"sha3_256_hash_of_credit_pack_purchase_request_fields"`
	ResponderIdentity     Identity `json:"responding_supernode_pastelid"`
	PricePerCredit        float64  `json:"preliminary_quoted_price_per_credit_in_psl"`
	TotalCost             float64  `json:"preliminary_total_cost_of_credit_pack_in_psl"`

	QuoteHash      string `json:"sha3_256_hash_of_price_quote_fields"`
	ResponderSignature string `json:"responding_supernode_signature"`
}

// PriceQuoteResponse is the requester's accept/decline reply to a quote.
type PriceQuoteResponse struct {
	Envelope
	CreditPackRequestHash string `json:"sha3_256_hash_of_credit_pack_purchase_request_fields"`
	PriceQuoteHash        string `json:"sha3_256_hash_of_price_quote_fields"`
	Agree                 bool   `json:"agree_with_preliminary_price_quote"`
	RequesterIdentity     Identity `json:"requesting_end_user_pastelid"`

	ResponseHash      string `json:"sha3_256_hash_of_price_quote_response_fields"`
	RequesterSignature string `json:"requester_signature"`
}

// AgreeingSupernodeSignature is one entry of the quorum signature dict
// carried by a PurchaseResponse: a signer's signature over two hashes.
type AgreeingSupernodeSignature struct {
	SignatureOnRequestHash  string `json:"sig_on_credit_pack_purchase_request_hash"`
	SignatureOnResponseHash string `json:"sig_on_credit_pack_purchase_response_hash"`
}

// PurchaseResponse is the quorum-signed offer (CPPRR).
type PurchaseResponse struct {
	Envelope
	CreditPackRequestHash Identity `json:"sha3_256_hash_of_credit_pack_purchase_request_fields"`
	PSLCostPerCredit      float64  `json:"psl_cost_per_credit"`
	ProposedTotalCost     float64  `json:"proposed_total_cost_of_credit_pack_in_psl"`
	CreditUsageTrackingAddress string `json:"credit_usage_tracking_psl_address"`
	BestBlockMerkleRoot   string   `json:"best_block_merkle_root"`
	BestBlockHeight       int64    `json:"best_block_height"`

	PotentiallyAgreeingSupernodes []Identity `json:"list_of_potentially_agreeing_supernodes"`
	SelectedAgreeingSupernodes    []Identity `json:"list_of_supernode_pastelids_agreeing_to_credit_pack_purchase_terms_selected_for_signature_inclusion"`
	SelectedAgreeingSupernodeSignatures map[Identity]AgreeingSupernodeSignature `json:"selected_agreeing_supernodes_signatures_dict"`

	// RejectionReason / TerminationReason, when non-empty, mark this
	// message as a terminal PeerRejection rather than a valid offer.
	RejectionReason  string `json:"rejection_reason_string,omitempty"`
	TerminationReason string `json:"termination_reason_string,omitempty"`

	ResponseHash      string `json:"sha3_256_hash_of_credit_pack_purchase_response_fields"`
	ResponderSignature string `json:"responding_supernode_signature"`
}

// IsRejection reports whether this response is a terminal rejection or
// termination object, detected by the presence of either
// reason string.
func (r *PurchaseResponse) IsRejection() bool {
	return r.RejectionReason != "" || r.TerminationReason != ""
}

// PurchaseConfirmation embeds the burn txid proving payment.
type PurchaseConfirmation struct {
	Envelope
	CreditPackRequestHash  string `json:"sha3_256_hash_of_credit_pack_purchase_request_fields"`
	CreditPackResponseHash string `json:"sha3_256_hash_of_credit_pack_purchase_response_fields"`
	BurnTransactionTxid    string `json:"txid_of_credit_purchase_burn_transaction"`
	RequesterIdentity      Identity `json:"requesting_end_user_pastelid"`

	ConfirmationHash   string `json:"sha3_256_hash_of_credit_pack_purchase_confirmation_fields"`
	RequesterSignature string `json:"requester_signature"`
}

// PurchaseStatusValue enumerates the status poll outcomes.
type PurchaseStatusValue string

const (
	StatusPending    PurchaseStatusValue = "pending"
	StatusInProgress PurchaseStatusValue = "in_progress"
	StatusCompleted  PurchaseStatusValue = "completed"
	StatusFailed     PurchaseStatusValue = "failed"
)

// PurchaseStatus is the responder's answer to a status poll.
type PurchaseStatus struct {
	Envelope
	CreditPackRequestHash string              `json:"sha3_256_hash_of_credit_pack_purchase_request_fields"`
	Status                PurchaseStatusValue `json:"status"`
	CreditPackRegistrationTxid string         `json:"credit_pack_registration_txid,omitempty"`
	ResponderIdentity     Identity            `json:"responding_supernode_pastelid"`

	StatusHash      string `json:"sha3_256_hash_of_credit_pack_purchase_request_status_fields"`
	ResponderSignature string `json:"responding_supernode_signature"`
}

// StorageRetryRequest is the fallback path when the original responder
// fails to anchor the registration ticket on-chain.
type StorageRetryRequest struct {
	Envelope
	CreditPackRequestHash  string `json:"sha3_256_hash_of_credit_pack_purchase_request_fields"`
	CreditPackResponseHash string `json:"sha3_256_hash_of_credit_pack_purchase_response_fields"`
	RequesterIdentity      Identity `json:"requesting_end_user_pastelid"`

	RequestHash        string `json:"sha3_256_hash_of_credit_pack_storage_retry_request_fields"`
	RequesterSignature string `json:"requester_signature"`
}

// StorageRetryResponse carries the recovered registration txid, or a
// rejection/termination reason.
type StorageRetryResponse struct {
	Envelope
	CreditPackStorageRetryRequestHash string `json:"sha3_256_hash_of_credit_pack_storage_retry_request_fields"`
	CreditPackRegistrationTxid        string `json:"credit_pack_registration_txid"`
	ResponderIdentity                 Identity `json:"responding_supernode_pastelid"`

	RejectionReason   string `json:"rejection_reason_string,omitempty"`
	TerminationReason string `json:"termination_reason_string,omitempty"`

	ResponseHash       string `json:"sha3_256_hash_of_credit_pack_storage_retry_response_fields"`
	ResponderSignature string `json:"responding_supernode_signature"`
}

// IsRejection mirrors PurchaseResponse.IsRejection for the retry path.
func (r *StorageRetryResponse) IsRejection() bool {
	return r.RejectionReason != "" || r.TerminationReason != ""
}

// InferenceUsageRequest opens an inference request against a credit pack.
type InferenceUsageRequest struct {
	Envelope
	InferenceRequestID      string   `json:"inference_request_id"`
	RequestingPastelID      Identity `json:"requesting_pastelid"`
	CreditPackTicketTxid    string   `json:"credit_pack_ticket_pastel_txid"`
	RequestedModel          string   `json:"requested_model_canonical_string"`
	ModelInferenceTypeString string  `json:"model_inference_type_string"`
	ModelParametersJSONB64  string   `json:"model_parameters_json_b64"`
	ModelInputDataJSONB64   string   `json:"model_input_data_json_b64"`

	RequestHash        string `json:"sha3_256_hash_of_inference_request_fields"`
	RequesterSignature string `json:"requester_signature"`
}

// InferenceUsageResponse is the responder's cost quote and tracking
// instructions for an inference request.
type InferenceUsageResponse struct {
	Envelope
	InferenceRequestID    string  `json:"inference_request_id"`
	InferenceResponseID   string  `json:"inference_response_id"`
	ProposedCostInCredits float64 `json:"proposed_cost_in_inference_credits"`
	RemainingCreditsAfter float64 `json:"remaining_credits_after_this_request_processed"`
	CreditUsageTrackingAddress string `json:"credit_usage_tracking_psl_address"`
	ConfirmationAmountPatoshis int64 `json:"request_confirmation_message_amount_in_patoshis"`
	MaxBlockHeightToConfirm    int64 `json:"max_block_height_to_include_confirmation_transaction"`
	ResponderIdentity          Identity `json:"responding_supernode_pastelid"`

	RejectionReason   string `json:"rejection_reason_string,omitempty"`
	TerminationReason string `json:"termination_reason_string,omitempty"`

	ResponseHash       string `json:"sha3_256_hash_of_inference_response_fields"`
	ResponderSignature string `json:"responding_supernode_signature"`
}

// IsRejection mirrors the other message kinds' terminal-rejection check.
func (r *InferenceUsageResponse) IsRejection() bool {
	return r.RejectionReason != "" || r.TerminationReason != ""
}

// InferenceConfirmation proves payment of the tracking amount.
type InferenceConfirmation struct {
	Envelope
	InferenceRequestID string   `json:"inference_request_id"`
	RequestingIdentity  Identity `json:"requesting_pastelid"`
	Txid                string   `json:"txid"`

	ConfirmationHash   string `json:"sha3_256_hash_of_inference_confirmation_fields"`
	RequesterSignature string `json:"requester_signature"`
}

// InferenceOutputResult is the final decoded inference payload.
type InferenceOutputResult struct {
	Envelope
	InferenceResultID      string   `json:"inference_result_id"`
	InferenceRequestID     string   `json:"inference_request_id"`
	InferenceResponseID    string   `json:"inference_response_id"`
	ResponderIdentity      Identity `json:"responding_supernode_pastelid"`
	InferenceResultJSONB64 string   `json:"inference_result_json_b64"`
	FileType               string   `json:"inference_result_file_type_strings,omitempty"`

	ResultHash         string `json:"sha3_256_hash_of_inference_result_fields"`
	ResponderSignature string `json:"responding_supernode_signature_on_inference_result_id"`
}

package rpcclient

import "context"

// GetBestBlockHash returns the hash of the chain tip.
func (c *Client) GetBestBlockHash(ctx context.Context) (string, error) {
	var hash string
	if err := c.Call(ctx, "getbestblockhash", nil, &hash); err != nil {
		return "", err
	}
	return hash, nil
}

// GetBlockHash returns the hash of the block at height.
func (c *Client) GetBlockHash(ctx context.Context, height int64) (string, error) {
	var hash string
	if err := c.Call(ctx, "getblockhash", []interface{}{height}, &hash); err != nil {
		return "", err
	}
	return hash, nil
}

// Block is the subset of `getblock` verbosity-1 output the client consumes.
type Block struct {
	Hash   string   `json:"hash"`
	Height int64    `json:"height"`
	Time   int64    `json:"time"`
	Tx     []string `json:"tx"`
}

// GetBlock returns block metadata for the block with the given hash.
func (c *Client) GetBlock(ctx context.Context, hash string) (Block, error) {
	var b Block
	if err := c.Call(ctx, "getblock", []interface{}{hash}, &b); err != nil {
		return Block{}, err
	}
	return b, nil
}

// Transaction is the subset of `gettransaction` the client consumes.
type Transaction struct {
	TxID          string  `json:"txid"`
	Confirmations int64   `json:"confirmations"`
	BlockHash     string  `json:"blockhash,omitempty"`
	Amount        float64 `json:"amount"`
}

// GetTransaction returns wallet-relative details for a local transaction.
func (c *Client) GetTransaction(ctx context.Context, txid string) (Transaction, error) {
	var tx Transaction
	if err := c.Call(ctx, "gettransaction", []interface{}{txid}, &tx); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// GetRawTransaction returns the raw hex-encoded transaction for txid.
func (c *Client) GetRawTransaction(ctx context.Context, txid string) (string, error) {
	var raw string
	if err := c.Call(ctx, "getrawtransaction", []interface{}{txid}, &raw); err != nil {
		return "", err
	}
	return raw, nil
}

// DecodedTransaction is the subset of `decoderawtransaction` the client
// consumes to validate burn-transaction outputs.
type DecodedTransaction struct {
	TxID string `json:"txid"`
	Vout []struct {
		Value        float64 `json:"value"`
		ScriptPubKey struct {
			Addresses []string `json:"addresses"`
		} `json:"scriptPubKey"`
	} `json:"vout"`
}

// DecodeRawTransaction decodes a raw hex transaction without requiring it
// be known to the local wallet.
func (c *Client) DecodeRawTransaction(ctx context.Context, rawHex string) (DecodedTransaction, error) {
	var out DecodedTransaction
	if err := c.Call(ctx, "decoderawtransaction", []interface{}{rawHex}, &out); err != nil {
		return DecodedTransaction{}, err
	}
	return out, nil
}

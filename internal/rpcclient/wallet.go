package rpcclient

import "context"

// GetNewAddress returns a freshly generated transparent address.
func (c *Client) GetNewAddress(ctx context.Context) (string, error) {
	var addr string
	if err := c.Call(ctx, "getnewaddress", nil, &addr); err != nil {
		return "", err
	}
	return addr, nil
}

// SendToAddress sends amount PSL to address with an optional comment,
// returning the resulting transaction id.
func (c *Client) SendToAddress(ctx context.Context, address string, amount float64, comment string) (string, error) {
	var txid string
	params := []interface{}{address, amount}
	if comment != "" {
		params = append(params, comment)
	}
	if err := c.Call(ctx, "sendtoaddress", params, &txid); err != nil {
		return "", err
	}
	return txid, nil
}

// SendManyRecipient is one (address, amount) pair of a sendmany call.
type SendManyRecipient struct {
	Address string
	Amount  float64
}

// SendMany sends to multiple recipients from fromAccount in a single
// transaction, with the given memo attached.
func (c *Client) SendMany(ctx context.Context, fromAccount string, recipients []SendManyRecipient, memo string) (string, error) {
	amounts := make(map[string]float64, len(recipients))
	for _, r := range recipients {
		amounts[r.Address] = r.Amount
	}
	params := []interface{}{fromAccount, amounts}
	if memo != "" {
		params = append(params, 1, memo)
	}
	var txid string
	if err := c.Call(ctx, "sendmany", params, &txid); err != nil {
		return "", err
	}
	return txid, nil
}

// ImportAddress registers a watch-only address with the wallet.
func (c *Client) ImportAddress(ctx context.Context, address string, rescan bool) error {
	return c.Call(ctx, "importaddress", []interface{}{address, "", rescan}, nil)
}

// ImportPrivKey imports a private key, optionally rescanning.
func (c *Client) ImportPrivKey(ctx context.Context, privKey string, rescan bool) error {
	return c.Call(ctx, "importprivkey", []interface{}{privKey, "", rescan}, nil)
}

// ImportWallet loads a dump file produced by the node's wallet export.
func (c *Client) ImportWallet(ctx context.Context, path string) error {
	return c.Call(ctx, "importwallet", []interface{}{path}, nil)
}

// ListAddressAmounts returns the confirmed balance of every address the
// wallet tracks.
func (c *Client) ListAddressAmounts(ctx context.Context) (map[string]float64, error) {
	var out map[string]float64
	if err := c.Call(ctx, "listaddressamounts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetBalance returns the wallet's total confirmed PSL balance.
func (c *Client) GetBalance(ctx context.Context) (float64, error) {
	var bal float64
	if err := c.Call(ctx, "getbalance", nil, &bal); err != nil {
		return 0, err
	}
	return bal, nil
}

// WalletInfo is the subset of `getwalletinfo` the client consumes.
type WalletInfo struct {
	Balance           float64 `json:"balance"`
	UnconfirmedBalance float64 `json:"unconfirmed_balance"`
	TxCount           int64   `json:"txcount"`
}

// GetWalletInfo returns the wallet's summary info.
func (c *Client) GetWalletInfo(ctx context.Context) (WalletInfo, error) {
	var info WalletInfo
	if err := c.Call(ctx, "getwalletinfo", nil, &info); err != nil {
		return WalletInfo{}, err
	}
	return info, nil
}

// ZGetBalance returns the shielded balance of a z-address.
func (c *Client) ZGetBalance(ctx context.Context, zAddress string) (float64, error) {
	var bal float64
	if err := c.Call(ctx, "z_getbalance", []interface{}{zAddress}, &bal); err != nil {
		return 0, err
	}
	return bal, nil
}

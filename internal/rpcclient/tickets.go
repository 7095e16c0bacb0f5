package rpcclient

import (
	"context"
	"encoding/json"
)

// Ticket is the generic shape of a `tickets get`/`tickets find` reply: a
// typed envelope around a ticket-specific payload the caller decodes
// further.
type Ticket struct {
	TXID   string          `json:"txid"`
	Height int64           `json:"height"`
	Ticket json.RawMessage `json:"ticket"`
}

// TicketsList returns every ticket of ticketType known to the node.
func (c *Client) TicketsList(ctx context.Context, ticketType string) ([]Ticket, error) {
	var out []Ticket
	if err := c.Call(ctx, "tickets", []interface{}{"list", ticketType}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TicketsFind looks up a ticket of ticketType by its key (e.g. a credit
// pack's unique identifier).
func (c *Client) TicketsFind(ctx context.Context, ticketType, key string) (Ticket, error) {
	var out Ticket
	if err := c.Call(ctx, "tickets", []interface{}{"find", ticketType, key}, &out); err != nil {
		return Ticket{}, err
	}
	return out, nil
}

// TicketsGet fetches a ticket directly by its txid.
func (c *Client) TicketsGet(ctx context.Context, txid string) (Ticket, error) {
	var out Ticket
	if err := c.Call(ctx, "tickets", []interface{}{"get", txid}, &out); err != nil {
		return Ticket{}, err
	}
	return out, nil
}

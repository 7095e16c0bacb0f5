package supernode

import (
	"context"
	"fmt"

	"github.com/pastelnetwork/supernode-client/internal/protocol"
)

// UserMessage is the payload shape shared by `/send_user_message` and
// `GET /get_user_messages`.
type UserMessage struct {
	SendingPastelID   protocol.Identity `json:"sending_pastelid"`
	ReceivingPastelID protocol.Identity `json:"receiving_pastelid"`
	MessageBody       string            `json:"message_body"`
	Timestamp         string            `json:"timestamp"`
}

// SendUserMessage posts a direct message to a peer.
func (c *Client) SendUserMessage(ctx context.Context, msg UserMessage) error {
	payload := map[string]interface{}{
		"sending_pastelid":   msg.SendingPastelID,
		"receiving_pastelid": msg.ReceivingPastelID,
		"message_body":       msg.MessageBody,
		"timestamp":          msg.Timestamp,
	}
	return c.post(ctx, "/send_user_message", TimeoutNormal, payload, nil)
}

// GetUserMessages fetches the messages addressed to pastelID.
func (c *Client) GetUserMessages(ctx context.Context, pastelID protocol.Identity) ([]UserMessage, error) {
	var out []UserMessage
	path := fmt.Sprintf("/get_user_messages?pastelid=%s", pastelID)
	if err := c.get(ctx, path, TimeoutNormal, &out); err != nil {
		return nil, err
	}
	return out, nil
}

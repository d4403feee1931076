// Package client calls the card service over NATS request/reply.
package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/avvvet/cardbot-services/internal/comm"
	"github.com/nats-io/nats.go"
)

// Requester is satisfied by *nats.Conn.
type Requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

type Client struct {
	conn Requester
}

func New(conn Requester) *Client {
	return &Client{conn: conn}
}

func (c *Client) Drop(ctx context.Context, actorID string, count int) ([]comm.DropData, error) {
	var resp comm.DropResponse
	if err := c.request(ctx, comm.TypeDrop, comm.DropRequest{ActorID: actorID, Count: count}, &resp); err != nil {
		return nil, err
	}
	return resp.Drops, nil
}

func (c *Client) Claim(ctx context.Context, dropID, actorID string) (comm.DropData, error) {
	var resp comm.ClaimResult
	if err := c.request(ctx, comm.TypeClaim, comm.ClaimRequest{DropID: dropID, ActorID: actorID}, &resp); err != nil {
		return comm.DropData{}, err
	}
	return resp.Drop, nil
}

func (c *Client) List(ctx context.Context, userID string, page int) (comm.ListData, error) {
	var resp comm.ListData
	err := c.request(ctx, comm.TypeList, comm.ListRequest{UserID: userID, Page: page}, &resp)
	return resp, err
}

func (c *Client) Show(ctx context.Context, userID string, index int) (comm.ShowData, error) {
	var resp comm.ShowData
	err := c.request(ctx, comm.TypeShow, comm.ShowRequest{UserID: userID, Index: index}, &resp)
	return resp, err
}

// request sends one typed request. A service-side failure is returned as
// *comm.ErrorData.
func (c *Client) request(ctx context.Context, msgType string, req, resp any) error {
	msg, err := comm.NewMessage(msgType, req)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", msgType, err)
	}

	reply, err := c.conn.RequestWithContext(ctx, comm.CardServiceTopic, payload)
	if err != nil {
		return fmt.Errorf("%s request: %w", msgType, err)
	}

	var out comm.WSMessage
	if err := json.Unmarshal(reply.Data, &out); err != nil {
		return fmt.Errorf("decode %s reply: %w", msgType, err)
	}

	switch out.Type {
	case comm.TypeError:
		e := &comm.ErrorData{}
		if err := json.Unmarshal(out.Data, e); err != nil {
			return fmt.Errorf("decode %s error: %w", msgType, err)
		}
		return e
	case comm.ResponseType(msgType):
		if err := json.Unmarshal(out.Data, resp); err != nil {
			return fmt.Errorf("decode %s data: %w", msgType, err)
		}
		return nil
	default:
		return fmt.Errorf("%s request: unexpected reply type %q", msgType, out.Type)
	}
}

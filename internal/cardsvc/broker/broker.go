package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avvvet/cardbot-services/internal/cardsvc/claim"
	"github.com/avvvet/cardbot-services/internal/cardsvc/service"
	"github.com/avvvet/cardbot-services/internal/comm"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

type Broker struct {
	Conn        *nats.Conn
	CardService *service.CardService
	timeout     time.Duration
}

func NewBroker(nc *nats.Conn, cardService *service.CardService) *Broker {
	return &Broker{
		Conn:        nc,
		CardService: cardService,
		timeout:     10 * time.Second,
	}
}

// Subscribe serves card.service requests. Drops live in this process, so the
// subscription is not a queue group.
func (b *Broker) Subscribe(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessage)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// handles request coming from the bot or any other front end
func (b *Broker) handleMessage(msgNat *nats.Msg) {
	msg := &comm.WSMessage{}
	var resp *comm.WSMessage
	var events []*comm.WSMessage

	if err := json.Unmarshal(msgNat.Data, msg); err != nil {
		log.Errorf("Error nats message %s", err)
		resp = errorMessage(&comm.ErrorData{Code: comm.CodeBadRequest, Message: "malformed message"})
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		resp, events = b.handle(ctx, msg)
		cancel()
	}

	if msgNat.Reply != "" {
		payload, err := json.Marshal(resp)
		if err != nil {
			log.Errorf("Error %s", err)
			return
		}
		if err := msgNat.Respond(payload); err != nil {
			log.Errorf("Error responding to %s: %s", msg.Type, err)
		}
	}

	for _, ev := range events {
		b.publishEvent(ev)
	}
}

// handle runs one request and returns the reply and the events it caused.
func (b *Broker) handle(ctx context.Context, msg *comm.WSMessage) (*comm.WSMessage, []*comm.WSMessage) {
	var (
		data   any
		events []*comm.WSMessage
		err    error
	)

	switch msg.Type {
	case comm.TypeDrop:
		var req comm.DropRequest
		if err = decode(msg.Data, &req); err != nil {
			break
		}
		var drops []*claim.Drop
		drops, err = b.CardService.Drop(ctx, req.ActorID, req.Count)
		resp := comm.DropResponse{Drops: make([]comm.DropData, 0, len(drops))}
		for _, d := range drops {
			dd := DropData(d)
			resp.Drops = append(resp.Drops, dd)
			events = append(events, event(comm.EventDropped, dd))
		}
		if err != nil && len(drops) > 0 {
			// partial drops are already claimable; report them
			log.Errorf("Error [CardService.Drop] after %d drops: %s", len(drops), err)
			err = nil
		}
		data = resp
	case comm.TypeClaim:
		var req comm.ClaimRequest
		if err = decode(msg.Data, &req); err != nil {
			break
		}
		var d *claim.Drop
		d, err = b.CardService.Claim(ctx, req.DropID, req.ActorID)
		if err == nil {
			dd := DropData(d)
			data = comm.ClaimResult{Drop: dd}
			events = append(events, event(comm.EventClaimed, dd))
		}
	case comm.TypeList:
		var req comm.ListRequest
		if err = decode(msg.Data, &req); err != nil {
			break
		}
		var page service.Page
		page, err = b.CardService.List(ctx, req.UserID, req.Page)
		if err == nil {
			data = ListData(page)
		}
	case comm.TypeShow:
		var req comm.ShowRequest
		if err = decode(msg.Data, &req); err != nil {
			break
		}
		data, err = b.show(ctx, req)
	default:
		err = fmt.Errorf("%w: unknown message type %q", errBadRequest, msg.Type)
	}

	if err != nil {
		resp := errorMessage(errorData(err))
		resp.SocketId = msg.SocketId
		return resp, events
	}

	resp, err := comm.NewMessage(comm.ResponseType(msg.Type), data)
	if err != nil {
		log.Errorf("Error %s", err)
		resp = errorMessage(&comm.ErrorData{Code: comm.CodeInternal, Message: "internal error"})
	}
	resp.SocketId = msg.SocketId
	return resp, events
}

func (b *Broker) show(ctx context.Context, req comm.ShowRequest) (comm.ShowData, error) {
	card, err := b.CardService.Show(ctx, req.UserID, req.Index)
	if err != nil {
		return comm.ShowData{}, err
	}
	return comm.ShowData{Index: req.Index, Card: card}, nil
}

// PublishExpired announces drops retired by the expiry sweep.
func (b *Broker) PublishExpired(drops []*claim.Drop) {
	for _, d := range drops {
		b.publishEvent(event(comm.EventExpired, DropData(d)))
	}
}

func (b *Broker) publishEvent(ev *comm.WSMessage) {
	if ev == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}
	b.Publish(comm.CardEventsTopic, payload)
}

// Publish sends a raw payload on topic.
func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}

func event(eventType string, d comm.DropData) *comm.WSMessage {
	msg, err := comm.NewMessage(eventType, d)
	if err != nil {
		log.Errorf("Error %s", err)
		return nil
	}
	return msg
}

func DropData(d *claim.Drop) comm.DropData {
	state, claimant := d.Status()
	return comm.DropData{
		ID:        d.ID,
		Card:      d.Card.Record(),
		DropperID: d.DropperID,
		CreatedAt: d.CreatedAt,
		ExpiresAt: d.ExpiresAt,
		State:     state.String(),
		ClaimedBy: claimant,
	}
}

func ListData(p service.Page) comm.ListData {
	out := comm.ListData{
		Page:    p.Number,
		Items:   make([]comm.IndexedCard, 0, len(p.Items)),
		Total:   p.Total,
		HasNext: p.HasNext,
		HasPrev: p.HasPrev,
		Notice:  p.Notice(),
	}
	for _, it := range p.Items {
		out.Items = append(out.Items, comm.IndexedCard{Index: it.Index, Card: it.Card})
	}
	return out
}

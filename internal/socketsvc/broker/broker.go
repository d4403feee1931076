package broker

import (
	"encoding/json"

	"github.com/avvvet/cardbot-services/internal/comm"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

type Broker struct {
	Conn      *nats.Conn
	Broadcast func(*comm.WSMessage) int
}

func NewBroker(conn *nats.Conn, fncBroadcast func(*comm.WSMessage) int) *Broker {
	return &Broker{
		Conn:      conn,
		Broadcast: fncBroadcast,
	}
}

// consume card events; every socket service instance relays every event
func (b *Broker) Subscribe(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessages)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// handleMessages receive events from card service
func (b *Broker) handleMessages(msgNats *nats.Msg) {
	message := &comm.WSMessage{}
	if err := json.Unmarshal(msgNats.Data, message); err != nil {
		log.Errorf("Error %s", err)
		return
	}

	switch message.Type {
	case comm.EventDropped, comm.EventClaimed, comm.EventExpired:
		n := b.Broadcast(message)
		log.Debugf("%s relayed to %d sockets", message.Type, n)
	default:
		log.Warnf("Unknown message %s", message.Type)
	}
}

package broker

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/cardbot-services/internal/cardsvc/catalog"
	"github.com/avvvet/cardbot-services/internal/cardsvc/claim"
	"github.com/avvvet/cardbot-services/internal/cardsvc/issuer"
	"github.com/avvvet/cardbot-services/internal/cardsvc/random"
	"github.com/avvvet/cardbot-services/internal/cardsvc/serial"
	"github.com/avvvet/cardbot-services/internal/cardsvc/service"
	"github.com/avvvet/cardbot-services/internal/cardsvc/store"
	"github.com/avvvet/cardbot-services/internal/comm"
)

const operator = "op"

func newTestBroker(t *testing.T) *Broker {
	t.Helper()
	ctx := context.Background()
	ledger := store.NewJSONStore(filepath.Join(t.TempDir(), "collections.json"))
	cat := catalog.Default()
	registry, err := serial.NewRegistry(ctx, cat.Codes(), ledger)
	require.NoError(t, err)
	svc := service.NewCardService(
		issuer.New(cat, registry, random.NewSeeded(1)),
		claim.NewCoordinator(ledger, claim.ModeAnyone, time.Minute),
		ledger, registry, operator, 3,
	)
	return NewBroker(nil, svc)
}

func request(t *testing.T, b *Broker, msgType string, data any) (*comm.WSMessage, []*comm.WSMessage) {
	t.Helper()
	msg, err := comm.NewMessage(msgType, data)
	require.NoError(t, err)
	msg.SocketId = "sock-1"
	return b.handle(context.Background(), msg)
}

func decodeData[T any](t *testing.T, msg *comm.WSMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(msg.Data, &v))
	return v
}

func TestHandle_DropThenClaim(t *testing.T) {
	b := newTestBroker(t)

	resp, events := request(t, b, comm.TypeDrop, comm.DropRequest{ActorID: operator, Count: 2})
	require.Equal(t, "drop-resp", resp.Type)
	assert.Equal(t, "sock-1", resp.SocketId)
	drops := decodeData[comm.DropResponse](t, resp)
	require.Len(t, drops.Drops, 2)
	require.Len(t, events, 2)
	assert.Equal(t, comm.EventDropped, events[0].Type)
	assert.Equal(t, "dropped", drops.Drops[0].State)

	dropID := drops.Drops[0].ID
	resp, events = request(t, b, comm.TypeClaim, comm.ClaimRequest{DropID: dropID, ActorID: "alice"})
	require.Equal(t, "claim-resp", resp.Type)
	result := decodeData[comm.ClaimResult](t, resp)
	assert.Equal(t, "claimed", result.Drop.State)
	assert.Equal(t, "alice", result.Drop.ClaimedBy)
	require.Len(t, events, 1)
	assert.Equal(t, comm.EventClaimed, events[0].Type)

	resp, events = request(t, b, comm.TypeClaim, comm.ClaimRequest{DropID: dropID, ActorID: "bob"})
	require.Equal(t, comm.TypeError, resp.Type)
	assert.Equal(t, comm.CodeAlreadyClaimed, decodeData[comm.ErrorData](t, resp).Code)
	assert.Empty(t, events)

	resp, _ = request(t, b, comm.TypeShow, comm.ShowRequest{UserID: "alice", Index: 1})
	require.Equal(t, "show-resp", resp.Type)
	shown := decodeData[comm.ShowData](t, resp)
	assert.Equal(t, drops.Drops[0].Card, shown.Card)
}

func TestHandle_ErrorCodes(t *testing.T) {
	b := newTestBroker(t)

	cases := []struct {
		name    string
		msgType string
		data    any
		code    string
	}{
		{"not operator", comm.TypeDrop, comm.DropRequest{ActorID: "mallory", Count: 1}, comm.CodeUnauthorized},
		{"unknown drop", comm.TypeClaim, comm.ClaimRequest{DropID: "missing", ActorID: "alice"}, comm.CodeUnknownDrop},
		{"show out of range", comm.TypeShow, comm.ShowRequest{UserID: "alice", Index: 1}, comm.CodeNotFound},
		{"unknown type", "trade", struct{}{}, comm.CodeBadRequest},
		{"bad payload", comm.TypeList, "not an object", comm.CodeBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, events := request(t, b, tc.msgType, tc.data)
			require.Equal(t, comm.TypeError, resp.Type)
			assert.Equal(t, tc.code, decodeData[comm.ErrorData](t, resp).Code)
			assert.Empty(t, events)
		})
	}
}

func TestHandle_ListEmptyCollection(t *testing.T) {
	b := newTestBroker(t)

	resp, _ := request(t, b, comm.TypeList, comm.ListRequest{UserID: "nobody", Page: 1})
	require.Equal(t, "list-resp", resp.Type)
	list := decodeData[comm.ListData](t, resp)
	assert.Zero(t, list.Total)
	assert.Empty(t, list.Items)
	assert.Equal(t, service.NoCardsNotice, list.Notice)
}

package main

import (
	"context"
	"encoding/json"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	natsgo "github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/cardbot-services/configs"
	"github.com/avvvet/cardbot-services/internal/botsvc/bot"
	"github.com/avvvet/cardbot-services/internal/botsvc/client"
	botconfig "github.com/avvvet/cardbot-services/internal/botsvc/config"
	"github.com/avvvet/cardbot-services/internal/botsvc/render"
	"github.com/avvvet/cardbot-services/internal/cardsvc/catalog"
	"github.com/avvvet/cardbot-services/internal/comm"
	"github.com/avvvet/cardbot-services/internal/nats"
)

const SERVICE_NAME = "bot"

func init() {
	instanceId := config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	cfg, err := botconfig.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		log.Fatalf("failed to create bot: %v", err)
	}
	api.Debug = cfg.Debug
	log.Infof("authorized on telegram account %s", api.Self.UserName)

	// Connect to NATS
	n, err := nats.Connect(SERVICE_NAME)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	renderer := render.New(cfg.AssetDir, catalog.DefaultCodes())
	b := bot.New(api, client.New(n.Conn), renderer, cfg.RequestTimeout)

	// drop messages are retired when the card service reports a claim or expiry
	sub, err := n.Conn.Subscribe(comm.CardEventsTopic, func(m *natsgo.Msg) {
		msg := &comm.WSMessage{}
		if err := json.Unmarshal(m.Data, msg); err != nil {
			log.Errorf("Error %s", err)
			return
		}
		b.HandleEvent(msg)
	})
	if err != nil {
		log.Errorf("Error: unable to subscribe to %s %v", comm.CardEventsTopic, err)
		os.Exit(1)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = cfg.PollTimeout
	updates := api.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx, updates)
	log.Infof("%s service polling telegram updates", SERVICE_NAME)

	<-config.ShutdownSignals()

	cancel()
	api.StopReceivingUpdates()
	sub.Unsubscribe()
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}

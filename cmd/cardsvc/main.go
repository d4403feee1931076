package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/cardbot-services/configs"
	"github.com/avvvet/cardbot-services/internal/cardsvc/broker"
	"github.com/avvvet/cardbot-services/internal/cardsvc/catalog"
	"github.com/avvvet/cardbot-services/internal/cardsvc/claim"
	cardconfig "github.com/avvvet/cardbot-services/internal/cardsvc/config"
	"github.com/avvvet/cardbot-services/internal/cardsvc/db"
	"github.com/avvvet/cardbot-services/internal/cardsvc/handlers"
	"github.com/avvvet/cardbot-services/internal/cardsvc/issuer"
	"github.com/avvvet/cardbot-services/internal/cardsvc/models"
	"github.com/avvvet/cardbot-services/internal/cardsvc/random"
	"github.com/avvvet/cardbot-services/internal/cardsvc/serial"
	"github.com/avvvet/cardbot-services/internal/cardsvc/service"
	"github.com/avvvet/cardbot-services/internal/cardsvc/store"
	"github.com/avvvet/cardbot-services/internal/comm"
	mongodb "github.com/avvvet/cardbot-services/internal/db"
	"github.com/avvvet/cardbot-services/internal/nats"
)

const SERVICE_NAME = "card"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

type ledger interface {
	CardsFor(ctx context.Context, userID string) ([]models.CardRecord, error)
	Append(ctx context.Context, userID string, card models.CardInstance) error
	Serials(ctx context.Context) (map[string]struct{}, error)
}

func main() {
	cfg, err := cardconfig.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cards, closeLedger, err := openLedger(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s ledger: %v", cfg.LedgerBackend, err)
	}
	defer closeLedger()

	cat := catalog.Default()

	var opts []serial.Option
	if cfg.SerialCache {
		opts = append(opts, serial.WithSnapshotCache())
	}
	if cfg.CountsPath != "" {
		opts = append(opts, serial.WithCounterStore(store.NewCountsFile(cfg.CountsPath)))
	}
	registry, err := serial.NewRegistry(ctx, cat.Codes(), cards, opts...)
	if err != nil {
		log.Fatalf("Failed to reconcile serials with the ledger: %v", err)
	}

	// the cached snapshot is refreshed when another process rewrites the ledger file
	if js, ok := cards.(*store.JSONStore); ok && cfg.SerialCache {
		go func() {
			if err := js.Watch(ctx, registry.Invalidate); err != nil {
				log.Errorf("Error watching ledger %s: %v", js.Path(), err)
			}
		}()
	} else if cfg.SerialCache {
		log.Warnf("serial snapshot cache with the %s ledger assumes this is the only writer", cfg.LedgerBackend)
	}

	cardIssuer := issuer.New(cat, registry, random.New())
	coordinator := claim.NewCoordinator(cards, claim.Mode(cfg.ClaimMode), cfg.ClaimWindow)
	cardService := service.NewCardService(cardIssuer, coordinator, cards, registry, cfg.OperatorID, cfg.MaxDropCount)
	log.Infof("card catalog loaded: %d templates, total weight %d, claim mode %s", len(cat.All()), cat.TotalWeight(), coordinator.Mode())

	// Connect to NATS
	n, err := nats.Connect(SERVICE_NAME)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	b := broker.NewBroker(n.Conn, cardService)
	sub, err := b.Subscribe(comm.CardServiceTopic)
	if err != nil {
		log.Errorf("Error: unable to subscribe to %s %v", comm.CardServiceTopic, err)
		os.Exit(1)
	}

	go sweep(ctx, cardService, b, registry, cfg.SweepInterval)

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(cardService, cfg.Port)
	h.InitAuth(cfg.JWTSecret, os.Getenv("DEBUG_JWT") == "true")
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	<-config.ShutdownSignals()

	sub.Unsubscribe()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}

// sweep expires unclaimed drops and announces them on card.events.
func sweep(ctx context.Context, cardService *service.CardService, b *broker.Broker, registry *serial.Registry, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired := cardService.Expire()
			if len(expired) == 0 {
				continue
			}
			log.Infof("%d drops expired, %d serials issued but unclaimed", len(expired), registry.Outstanding())
			b.PublishExpired(expired)
		}
	}
}

func openLedger(ctx context.Context, cfg cardconfig.Config) (ledger, func(), error) {
	switch cfg.LedgerBackend {
	case cardconfig.BackendPostgres:
		pool, err := db.Connect(cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("pg connection established successfully")
		s := store.NewPostgresStore(pool)
		if err := s.EnsureSchema(ctx); err != nil {
			db.ClosePool()
			return nil, nil, err
		}
		return s, db.ClosePool, nil
	case cardconfig.BackendMongo:
		mdb, err := mongodb.ConnectToDB(cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("mongo connection established successfully")
		s := store.NewMongoStore(mdb)
		if err := s.EnsureIndexes(ctx); err != nil {
			mongodb.Disconnect(mdb)
			return nil, nil, err
		}
		return s, func() { mongodb.Disconnect(mdb) }, nil
	default:
		s, err := store.OpenJSONStore(cfg.LedgerPath)
		if err != nil {
			return nil, nil, err
		}
		log.Infof("json ledger at %s", s.Path())
		return s, func() {}, nil
	}
}

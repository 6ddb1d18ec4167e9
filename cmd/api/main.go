package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/adapters/cache"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/adapters/docstore"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/adapters/geo"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/adapters/handler"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/adapters/identity"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/adapters/live"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/adapters/messaging"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/adapters/metrics"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/adapters/middleware"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/adapters/repository"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/adapters/storage"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/config"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/services"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/logger"
)

func main() {
	zl, err := logger.Init(logger.ConfigFromEnv())
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	defer func() { _ = zl.Sync() }()
	log := zl.Sugar()

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalw("failed to open database", "error", err)
	}
	defer db.Close()
	if err := repository.EnsureSchema(ctx, db); err != nil {
		log.Fatalw("failed to prepare schema", "error", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	sessionStore := cache.NewRedisSessionStore(redisClient, config.NewCircuitBreaker("Redis-Sessions", log))

	identities := repository.NewIdentityRepository(db)
	collectors := metrics.NewCollectors()
	hub := live.NewHub(log)

	// Report and profile storage, plus where report events go.
	var (
		profiles  ports.ProfileRepository
		reports   ports.ReportRepository
		publisher = messaging.Fanout{hub, collectors.EventCounter()}
		checks    = []handler.Dependency{
			{Name: "database", Check: db.PingContext},
			{Name: "redis", Check: sessionStore.Ping},
		}
	)

	switch cfg.DocumentStore {
	case config.StoreMongo:
		client, err := docstore.Connect(ctx, cfg.MongoURI, log)
		if err != nil {
			log.Fatalw("failed to connect to mongo", "error", err)
		}
		defer disconnect(client, log)

		mdb := client.Database(cfg.MongoDatabase)
		if err := docstore.EnsureIndexes(ctx, mdb); err != nil {
			log.Warnw("mongo index creation incomplete", "error", err)
		}
		profiles = docstore.NewProfileRepository(mdb)
		reports = docstore.NewReportRepository(mdb)
		checks = append(checks, handler.Dependency{Name: "mongo", Check: func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		}})

		// no outbox table next to the documents, so events go straight to the broker
		if cfg.RabbitMQURL == "" {
			log.Warnw("RABBITMQ_URL not set, report events are only pushed to live clients")
		} else if broker, err := messaging.NewRabbitMQBroker(cfg.RabbitMQURL, cfg.ReportEventsQueue, log); err != nil {
			log.Warnw("failed to connect to RabbitMQ, report events are only pushed to live clients", "error", err)
		} else {
			defer broker.Close()
			publisher = append(publisher, broker)
		}

	default:
		profiles = repository.NewProfileRepository(db)
		reports = repository.NewReportRepository(db)
		publisher = append(publisher, repository.NewOutboxWriter(db))
	}

	objects, err := storage.NewCloudinaryStoreFromURL(cfg.CloudinaryURL, config.NewCircuitBreaker("Cloudinary", log))
	if err != nil {
		log.Fatalw("failed to configure object store", "error", err)
	}
	geocoder := geo.NewNominatimGeocoder(cfg.NominatimURL, cfg.GeocoderUserAgent, config.NewCircuitBreaker("Nominatim", log))

	var federated ports.FederatedProvider
	if cfg.GoogleEnabled() {
		google, err := identity.NewGoogleProvider(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL,
			config.NewCircuitBreaker("Google-OAuth", log), log)
		if err != nil {
			log.Fatalw("failed to configure Google sign-in", "error", err)
		}
		federated = google
	}

	tokens := services.NewTokenIssuer(cfg.JWTPrivateKey, cfg.JWTPublicKey, cfg.SessionTTL)
	sessionManager := services.NewSessionManager(tokens, sessionStore, profiles, log)
	sessionManager.Start(ctx)
	defer sessionManager.Stop()

	authService := services.NewAuthService(
		identity.NewPasswordProvider(identities, 0),
		federated,
		identities,
		profiles,
		tokens,
		sessionManager,
		log,
	)
	reportService := services.NewReportService(reports, profiles, objects, geocoder, publisher, cfg.UploadPrefix, log)
	profileService := services.NewProfileService(profiles, sessionStore, log)
	dashboardService := services.NewDashboardService(reportService, profileService, log)

	bootstrapAdmin(ctx, cfg, authService, log)

	go hub.Run(ctx)
	collectors.RegisterGauge("live_clients", "Connected live refresh clients.", func() float64 {
		return float64(hub.Clients())
	})

	trustedProxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalw("invalid TRUSTED_PROXIES", "error", err)
	}

	router := handler.NewRouter(handler.Routes{
		Tree:         cfg.RouteTree,
		Gate:         middleware.NewGate(sessionManager, log),
		LoginLimiter: middleware.NewRateLimiter(cfg.LoginRatePerMinute, trustedProxies),
		Metrics:      collectors,
		Origins:      cfg.AllowedOrigins,
		Auth:         handler.NewAuthHandler(authService, profileService, cfg.SecureCookies, cfg.GoogleEnabled(), log),
		Reports:      handler.NewReportHandler(reportService, log),
		Dashboards:   handler.NewDashboardHandler(dashboardService, log),
		Users:        handler.NewUserHandler(profileService, log),
		Home:         handler.NewHomeHandler(cfg.RouteTree, log),
		Live:         handler.NewLiveHandler(hub, cfg.AllowedOrigins, log),
		Health:       handler.NewHealthHandler(cfg.Version, log, checks...),
		Log:          log,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infow("starting server", "port", cfg.Port, "tree", cfg.RouteTree, "store", cfg.DocumentStore)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error shutting down server", "error", err)
	}
}

// bootstrapAdmin provisions the first admin account. An existing account with that email is left as is.
func bootstrapAdmin(ctx context.Context, cfg *config.Config, auth ports.AuthService, log *zap.SugaredLogger) {
	if cfg.BootstrapAdminEmail == "" || cfg.BootstrapAdminPassword == "" {
		return
	}
	creds := domain.Credentials{Email: cfg.BootstrapAdminEmail, Password: cfg.BootstrapAdminPassword}
	if _, err := auth.RegisterAndProvision(ctx, creds, "Administrator", domain.RoleAdmin); err != nil {
		log.Infow("bootstrap admin not created", "email", cfg.BootstrapAdminEmail, "reason", err)
		return
	}
	log.Infow("bootstrap admin created", "email", cfg.BootstrapAdminEmail)
}

func disconnect(client *mongo.Client, log *zap.SugaredLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		log.Warnw("mongo disconnect failed", "error", err)
	}
}

package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/trainlog/internal/config"
	"github.com/2beens/trainlog/internal/db"
	"github.com/2beens/trainlog/internal/gcal"
	"github.com/2beens/trainlog/internal/middleware"
	"github.com/2beens/trainlog/internal/oauth"
	"github.com/2beens/trainlog/internal/settings"
	"github.com/2beens/trainlog/internal/strava"
	"github.com/2beens/trainlog/internal/telemetry/metrics"
	"github.com/2beens/trainlog/internal/telemetry/tracing"
	"github.com/2beens/trainlog/internal/training"
	"github.com/2beens/trainlog/internal/wellness"
	"github.com/2beens/trainlog/pkg"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	dashboardSecret   string
	versionInfo       string

	config      *config.Config
	dbPool      *pgxpool.Pool
	redisClient *redis.Client

	store           *training.Store
	reconciler      *training.Reconciler
	settingsService *settings.Service
	stravaManager   *oauth.Manager
	stravaService   *strava.Service
	calendarManager *oauth.Manager
	calendarService *gcal.Service
	wellnessClient  *wellness.Client
	importCron      *cron.Cron

	// telemetry
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	StravaClientID          string
	StravaClientSecret      string
	CalendarClientID        string
	CalendarClientSecret    string
	WellnessAPIKey          string
	DashboardSecret         string
	RedisPassword           string
	VersionInfo             string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	dbPool, err := db.NewPool(ctx, db.PoolParams{
		Host:           params.Config.PostgresHost,
		Port:           params.Config.PostgresPort,
		Database:       params.Config.PostgresDBName,
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		// the store runs on the cache until postgres comes back
		log.Warnf("failed to ping db: %s", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": "trainlog_db"},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("backend", "trainlog", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(params.Config.RedisHost, params.Config.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})
	if params.HoneycombTracingEnabled {
		rdb.AddHook(redisotel.NewTracingHook())
	}

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "trainlog-backend")
	if err != nil {
		return nil, err
	}

	store := training.NewStore(
		training.NewRepo(dbPool),
		training.NewCache(rdb),
		metricsManager,
	)
	reconciler := training.NewReconciler(store, metricsManager)
	settingsService := settings.NewService(settings.NewRepo(dbPool))

	oauthRepo := oauth.NewRepo(dbPool)
	stravaManager := oauth.NewManager("strava", &oauth2.Config{
		ClientID:     params.StravaClientID,
		ClientSecret: params.StravaClientSecret,
		RedirectURL:  params.Config.ActivityRedirectURI,
		Scopes:       []string{"activity:read_all"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  params.Config.ActivityOAuthBaseURL + "/authorize",
			TokenURL: params.Config.ActivityOAuthBaseURL + "/token",
		},
	}, oauthRepo)
	calendarManager := oauth.NewManager("google-calendar", &oauth2.Config{
		ClientID:     params.CalendarClientID,
		ClientSecret: params.CalendarClientSecret,
		RedirectURL:  params.Config.CalendarRedirectURI,
		Scopes:       []string{calendar.CalendarEventsScope},
		Endpoint:     google.Endpoint,
	}, oauthRepo)

	s := &Server{
		config:          params.Config,
		dbPool:          dbPool,
		redisClient:     rdb,
		dashboardSecret: params.DashboardSecret,
		versionInfo:     params.VersionInfo,

		store:           store,
		reconciler:      reconciler,
		settingsService: settingsService,
		stravaManager:   stravaManager,
		stravaService: strava.NewService(
			strava.NewClient(params.Config.ActivityAPIBaseURL, stravaManager),
			reconciler,
			metricsManager,
		),
		calendarManager: calendarManager,
		calendarService: gcal.NewService(
			params.Config.CalendarID,
			params.Config.CalendarEventTag,
			calendarManager,
			metricsManager,
		),
		wellnessClient: wellness.NewClient(params.Config.WellnessAPIBaseURL, params.WellnessAPIKey),

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}

	return s, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("trainlog-router"))

	r.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		pkg.WriteTextResponseOK(w, "I'm OK, thanks ;)")
	}).Methods("GET", "OPTIONS").Name("root")
	r.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		pkg.WriteTextResponseOK(w, s.versionInfo)
	}).Methods("GET", "OPTIONS").Name("version")

	trainingHandler := training.NewHandler(s.store, s.reconciler, s.settingsService, s.wellnessClient)
	trainingHandler.SetupRoutes(r)

	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)
	stravaHandler := strava.NewHandler(
		s.stravaManager,
		s.stravaService,
		s.config.FrontendURL,
		s.config.AutoImportWindowDays,
	)
	stravaHandler.SetupRoutes(r, reqRateLimiter, s.config.ImportRateLimitAllowedPerMin, s.metricsManager)

	gcalHandler := gcal.NewHandler(s.calendarManager, s.calendarService, s.store, s.config.FrontendURL)
	gcalHandler.SetupRoutes(r)

	wellnessHandler := wellness.NewHandler(s.wellnessClient)
	wellnessHandler.SetupRoutes(r)

	settingsHandler := settings.NewHandler(s.settingsService)
	settingsHandler.SetupRoutes(r)

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.dashboardSecret)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) Serve(ctx context.Context, host string, port int) {
	router := s.routerSetup()

	// show cached sessions right away, catch up with postgres behind
	// the scenes
	s.store.Initialize(ctx)

	s.setupAutoImport(ctx)

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("trainlog service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

// setupAutoImport schedules the periodic background activity import.
// It runs in skip mode, so sessions already on the schedule (possibly
// edited by the user) are never touched.
func (s *Server) setupAutoImport(ctx context.Context) {
	if s.config.AutoImportCronSpec == "" {
		log.Debugln("auto import disabled")
		return
	}

	s.importCron = cron.New()
	_, err := s.importCron.AddFunc(s.config.AutoImportCronSpec, func() {
		jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Minute)
		defer cancel()

		if !s.stravaManager.IsConnected(jobCtx) {
			log.Debugln("auto import: activity tracker not connected, skipping")
			return
		}
		if _, err := s.stravaService.Import(
			jobCtx,
			s.config.AutoImportWindowDays,
			training.ImportModeSkip,
		); err != nil {
			log.Errorf("auto import failed: %s", err)
		}
	})
	if err != nil {
		log.Errorf("failed to schedule auto import [%s]: %s", s.config.AutoImportCronSpec, err)
		return
	}

	s.importCron.Start()
	log.Infof("auto import scheduled: [%s], window %d days",
		s.config.AutoImportCronSpec, s.config.AutoImportWindowDays)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	if s.importCron != nil {
		cronCtx := s.importCron.Stop()
		<-cronCtx.Done()
		log.Trace("import cron stopped ...")
	}

	// let pending remote session writes land before closing the pool
	s.store.Flush()

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown http server")
	}
	log.Warnln("server shut down")

	if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown metrics http server")
	}
	log.Warnln("metrics server shut down")
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}

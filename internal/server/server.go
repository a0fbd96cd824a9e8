package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/trivia/internal/api"
	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/event"
	"github.com/victornm/trivia/internal/infra/postgres"
	redisinfra "github.com/victornm/trivia/internal/infra/redis"
	"github.com/victornm/trivia/internal/leaderboard"
	"github.com/victornm/trivia/internal/question"
	"github.com/victornm/trivia/internal/score"
	"github.com/victornm/trivia/internal/session"
	"github.com/victornm/trivia/internal/telemetry"
)

const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"

	BankPostgres = "postgres"
	BankSample   = "sample"
)

type RedisConfig struct {
	Addrs  []string
	Pass   string
	Prefix string
	TTL    time.Duration
}

type PostgresConfig struct {
	Addr    string
	User    string
	Pass    string
	Name    string
	SSLMode string
}

func (c PostgresConfig) DSN() string {
	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s", c.User, c.Pass, c.Addr, c.Name)
	if c.SSLMode != "" {
		dsn += "?sslmode=" + c.SSLMode
	}
	return dsn
}

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Storage struct {
		// Driver stores sessions and leaderboards in postgres or redis.
		Driver string
		// Bank reads questions from postgres or from the built-in sample set.
		Bank string
	}

	Postgres PostgresConfig

	Redis struct {
		Session RedisConfig
		// Cache fronts the question bank. No addresses disables it.
		Cache RedisConfig
		// Pubsub receives leaderboard notifications. No addresses disables it.
		Pubsub RedisConfig
	}

	Game struct {
		TimeLimitSec     int
		ScoringMode      string
		TopicLimit       int
		LeaderboardLimit int
	}

	Log struct {
		Level string
	}
}

// DefaultConfig returns the values used for everything a config file leaves out.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 8081
	c.Storage.Driver = DriverRedis
	c.Storage.Bank = BankSample
	c.Postgres.Addr = "localhost:5432"
	c.Postgres.SSLMode = "disable"
	c.Redis.Session.Addrs = []string{"localhost:6379"}
	c.Redis.Session.Prefix = "trivia"
	c.Redis.Session.TTL = 24 * time.Hour
	c.Redis.Cache.Prefix = "trivia"
	c.Redis.Cache.TTL = 10 * time.Minute
	c.Redis.Pubsub.Prefix = "trivia"
	c.Game.ScoringMode = "speed_bonus"
	c.Game.TimeLimitSec = 20
	c.Game.TopicLimit = question.DefaultTopicLimit
	c.Game.LeaderboardLimit = leaderboard.DefaultLimit
	c.Log.Level = "info"
	return c
}

func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres, DriverRedis:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Storage.Bank {
	case BankPostgres, BankSample:
	default:
		return fmt.Errorf("unknown question bank %q", c.Storage.Bank)
	}

	if _, err := score.ParseMode(c.Game.ScoringMode, domain.ScoringModeSpeedBonus); err != nil {
		return err
	}

	if c.Storage.Driver == DriverRedis && len(c.Redis.Session.Addrs) == 0 {
		return errors.New("redis session addrs are required by the redis driver")
	}

	return nil
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			session redis.UniversalClient
			cache   redis.UniversalClient
			pubsub  redis.UniversalClient
		}

		postgres *pgxpool.Pool
	}

	service struct {
		session     *session.Service
		leaderboard *leaderboard.Service
	}

	http   *http.Server
	grpc   *grpc.Server
	health *health.Server
}

func Init(c Config) (*Server, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("server: invalid config: %w", err)
	}

	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		s.closeInfra()
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		s.closeInfra()
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) usesPostgres() bool {
	return s.c.Storage.Driver == DriverPostgres || s.c.Storage.Bank == BankPostgres
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if s.usesPostgres() {
		if err := s.initPostgres(); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(name string, c RedisConfig) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    c.Addrs,
			Password: c.Pass,
		})

		if err := telemetry.MonitorRedis(r, name); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			_ = r.Close()
			return nil, err
		}

		return r, nil
	}

	var err error
	if s.c.Storage.Driver == DriverRedis {
		s.infra.redis.session, err = connect("session", s.c.Redis.Session)
		if err != nil {
			return fmt.Errorf("session: %w", err)
		}
	}

	if len(s.c.Redis.Cache.Addrs) > 0 {
		s.infra.redis.cache, err = connect("cache", s.c.Redis.Cache)
		if err != nil {
			return fmt.Errorf("cache: %w", err)
		}
	}

	if len(s.c.Redis.Pubsub.Addrs) > 0 {
		s.infra.redis.pubsub, err = connect("pubsub", s.c.Redis.Pubsub)
		if err != nil {
			return fmt.Errorf("pubsub: %w", err)
		}
	}

	return nil
}

func (s *Server) initPostgres() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cc, err := pgxpool.ParseConfig(s.c.Postgres.DSN())
	if err != nil {
		return err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return err
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return err
	}

	s.infra.postgres = db
	return nil
}

func (s *Server) initService() error {
	var (
		sessions session.Store
		lbStore  leaderboard.Store
		bank     question.Bank
	)

	switch s.c.Storage.Driver {
	case DriverPostgres:
		sessions = postgres.NewSessionStore(s.infra.postgres)
		lbStore = postgres.NewLeaderboardStore(s.infra.postgres)
	case DriverRedis:
		sessions = redisinfra.NewSessionStore(s.infra.redis.session, s.c.Redis.Session.Prefix, s.c.Redis.Session.TTL)
		lbStore = redisinfra.NewLeaderboardStore(s.infra.redis.session, s.c.Redis.Session.Prefix)
	}

	switch s.c.Storage.Bank {
	case BankPostgres:
		bank = postgres.NewQuestionBank(s.infra.postgres)
	case BankSample:
		sample, err := question.NewSampleBank()
		if err != nil {
			return fmt.Errorf("sample bank: %w", err)
		}
		bank = sample
	}

	if s.infra.redis.cache != nil {
		bank = redisinfra.NewQuestionCache(s.infra.redis.cache, bank, s.c.Redis.Cache.Prefix, s.c.Redis.Cache.TTL)
	}

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		Store:        lbStore,
		EventBus:     s.eb,
		DefaultLimit: s.c.Game.LeaderboardLimit,
	})

	s.service.session = session.NewService(session.Config{
		Store:               sessions,
		Bank:                bank,
		Leaderboard:         s.service.leaderboard,
		EventBus:            s.eb,
		DefaultTimeLimitSec: s.c.Game.TimeLimitSec,
		DefaultScoringMode:  domain.ScoringMode(s.c.Game.ScoringMode),
		TopicLimit:          s.c.Game.TopicLimit,
	})

	return nil
}

func (s *Server) initAPI() {
	gin.SetMode(gin.ReleaseMode)

	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	e.GET("/healthz", s.healthz)
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery(), api.RequestLogger(slog.Default()))

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptors(slog.Default()))
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)

	a := api.Config{
		Router:       e,
		EventBus:     s.eb,
		Session:      s.service.session,
		Leaderboard:  s.service.leaderboard,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	}
	if s.infra.redis.pubsub != nil {
		a.Redis = s.infra.redis.pubsub
	}
	api.New(a)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.ping(ctx); err != nil {
		slog.WarnContext(ctx, "server: health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) ping(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	for _, r := range []redis.UniversalClient{s.infra.redis.session, s.infra.redis.cache, s.infra.redis.pubsub} {
		if r == nil {
			continue
		}
		eg.Go(func() error { return r.Ping(ctx).Err() })
	}

	if db := s.infra.postgres; db != nil {
		eg.Go(func() error { return db.Ping(ctx) })
	}

	return eg.Wait()
}

// Start serves HTTP and gRPC until Shutdown is called or one of them fails.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		return fmt.Errorf("grpc server: listen: %w", err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port),
			"driver", s.c.Storage.Driver,
			"bank", s.c.Storage.Bank,
		)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	return eg.Wait()
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()
	s.closeInfra()

	slog.InfoContext(ctx, "server: shutdown completed")
}

func (s *Server) closeInfra() {
	for _, r := range []redis.UniversalClient{s.infra.redis.session, s.infra.redis.cache, s.infra.redis.pubsub} {
		if r != nil {
			_ = r.Close()
		}
	}

	if s.infra.postgres != nil {
		s.infra.postgres.Close()
	}
}

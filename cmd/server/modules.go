package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/iliyamo/cinema-seat-booking/internal/booking"
	"github.com/iliyamo/cinema-seat-booking/internal/clock"
	"github.com/iliyamo/cinema-seat-booking/internal/config"
	"github.com/iliyamo/cinema-seat-booking/internal/database"
	"github.com/iliyamo/cinema-seat-booking/internal/errs"
	"github.com/iliyamo/cinema-seat-booking/internal/handler"
	"github.com/iliyamo/cinema-seat-booking/internal/logger"
	"github.com/iliyamo/cinema-seat-booking/internal/middleware"
	"github.com/iliyamo/cinema-seat-booking/internal/payment"
	"github.com/iliyamo/cinema-seat-booking/internal/pricing"
	"github.com/iliyamo/cinema-seat-booking/internal/promo"
	"github.com/iliyamo/cinema-seat-booking/internal/queue"
	"github.com/iliyamo/cinema-seat-booking/internal/repository"
	"github.com/iliyamo/cinema-seat-booking/internal/reservation"
	"github.com/iliyamo/cinema-seat-booking/internal/router"
)

// Module is the whole object graph of the server.
var Module = fx.Options(
	ConfigModule,
	InfraModule,
	BookingModule,
	HTTPModule,
)

var ConfigModule = fx.Module("config",
	fx.Provide(
		config.Load,
		config.LoadBookingConfig,
		config.LoadRateLimitConfig,
		config.LoadRedisConfig,
		newLogger,
	),
)

var InfraModule = fx.Module("infra",
	fx.Provide(
		newDB,
		newRedis,
		newSeatStore,
		newPublisher,
	),
)

var BookingModule = fx.Module("booking",
	fx.Provide(
		clock.NewRealClock,
		newCoordinator,
		newSweeper,
		newPricing,
		newPromoService,
		newPaymentGateway,
		fx.Annotate(repository.NewOrderRepo, fx.As(new(booking.Repository))),
		newBookingService,
	),
)

var HTTPModule = fx.Module("http",
	fx.Provide(
		newEcho,
		handler.NewHealthHandler,
		handler.NewBookingHandler,
	),
)

func newLogger(cfg config.Config, bc config.BookingConfig) *slog.Logger {
	log := logger.New(logger.Options{Env: cfg.Env, Level: bc.LogLevel})
	slog.SetDefault(log)
	return log
}

func newDB(lc fx.Lifecycle, cfg config.Config, bc config.BookingConfig, log *slog.Logger) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := database.Open(ctx, cfg.Database())
	if err != nil {
		return nil, err
	}
	if bc.Migrate {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info("database schema applied")
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return db.Close() }})
	return db, nil
}

// newRedis connects when something needs Redis. The seat store cannot run
// without it; the rate limiter degrades to no limiting.
func newRedis(lc fx.Lifecycle, rc config.RedisConfig, bc config.BookingConfig, rl config.RateLimitConfig, log *slog.Logger) (*redis.Client, error) {
	needed := bc.StoreBackend == config.StoreRedis
	if !needed && !rl.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb, err := config.NewRedisClient(ctx, rc)
	if err != nil {
		if needed {
			return nil, err
		}
		log.Warn("redis unavailable, rate limiting disabled", "addr", rc.Addr, "error", err)
		return nil, nil
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return rdb.Close() }})
	return rdb, nil
}

func newSeatStore(bc config.BookingConfig, rdb *redis.Client, log *slog.Logger) reservation.Store {
	if bc.StoreBackend == config.StoreRedis {
		log.Info("seat holds stored in redis", "prefix", bc.RedisPrefix)
		return reservation.NewRedisStore(rdb, bc.RedisPrefix, bc.TombstoneRetention)
	}
	log.Info("seat holds stored in memory")
	return reservation.NewMemoryStore(bc.TombstoneRetention)
}

func newPublisher(lc fx.Lifecycle, bc config.BookingConfig, log *slog.Logger) queue.Publisher {
	var p queue.Publisher
	switch bc.EventSink {
	case config.SinkRabbitMQ:
		p = queue.NewRabbitPublisher(bc.AMQPURL, bc.AMQPQueue, log)
	case config.SinkKafka:
		p = queue.NewKafkaPublisher(bc.KafkaBrokers, bc.KafkaTopic, log)
	default:
		return queue.NopPublisher{}
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return p.Close() }})
	return p
}

func newCoordinator(store reservation.Store, clk clock.Clock, bc config.BookingConfig, log *slog.Logger) *reservation.Coordinator {
	return reservation.NewCoordinator(store, clk, log, reservation.Options{
		HoldTTL:         bc.HoldTTL,
		SnapshotRefresh: bc.SnapshotRefresh,
	})
}

func newSweeper(coord *reservation.Coordinator, bc config.BookingConfig, log *slog.Logger) *reservation.Sweeper {
	return reservation.NewSweeper(coord, reservation.SweeperConfig{
		Interval:  bc.SweepInterval,
		BatchSize: bc.SweepBatchSize,
	}, log)
}

func newPricing(bc config.BookingConfig) (*pricing.Engine, error) {
	rates, err := bc.Rates()
	if err != nil {
		return nil, err
	}
	return pricing.NewEngine(rates), nil
}

func newPromoService(db *sql.DB, clk clock.Clock, log *slog.Logger) promo.Validator {
	return promo.NewService(repository.NewPromoRepo(db), clk, log)
}

func newPaymentGateway(log *slog.Logger) payment.Gateway {
	return payment.NewSandboxGateway(log)
}

func newBookingService(
	repo booking.Repository,
	coord *reservation.Coordinator,
	engine *pricing.Engine,
	promos promo.Validator,
	gateway payment.Gateway,
	events queue.Publisher,
	clk clock.Clock,
	bc config.BookingConfig,
	log *slog.Logger,
) *booking.Service {
	return booking.NewService(booking.Deps{
		Repo:     repo,
		Seats:    coord,
		Pricing:  engine,
		Promos:   promos,
		Payments: gateway,
		Events:   events,
		Clock:    clk,
		Log:      log,
		Config: booking.Config{
			HoldTTL:      bc.HoldTTL,
			CancelWindow: bc.CancelWindow,
			Currency:     bc.Currency,
			HistoryLimit: bc.HistoryLimit,
		},
	})
}

func newEcho(
	cfg config.Config,
	rl config.RateLimitConfig,
	rdb *redis.Client,
	health *handler.HealthHandler,
	bookings *handler.BookingHandler,
	log *slog.Logger,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))

	router.RegisterRoutes(e, health)
	router.RegisterPublic(e, bookings)
	router.RegisterCustomer(e, bookings, cfg.JWTSecret, middleware.NewTokenBucket(rl, rdb, log))
	return e
}

func startServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, e *echo.Echo, cfg config.Config, log *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			addr := ":" + cfg.Port
			log.Info("listening", "address", addr, "env", cfg.Env)
			go func() {
				if err := e.Start(addr); err != nil && !errs.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", "error", err)
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
	})
}

// startSweeper frees lapsed holds in the background and cancels the
// PENDING orders they belonged to.
func startSweeper(lc fx.Lifecycle, sw *reservation.Sweeper, svc *booking.Service) {
	sw.OnExpire(svc.HandleHoldExpired)
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			sw.Start(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			sw.Stop()
			return nil
		},
	})
}

// startBookingLog tails the configured event sink into the booking log
// file. With no sink there is nothing to consume.
func startBookingLog(lc fx.Lifecycle, bc config.BookingConfig, log *slog.Logger) {
	if !bc.BookingLog || bc.EventSink == config.SinkNone {
		return
	}
	bl := queue.NewBookingLog(bc.LogDir)
	log = logger.Component(log, "booking-log")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				var err error
				switch bc.EventSink {
				case config.SinkRabbitMQ:
					err = queue.ConsumeRabbit(ctx, bc.AMQPURL, bc.AMQPQueue, bl.Handle, log)
				case config.SinkKafka:
					err = queue.ConsumeKafka(ctx, bc.KafkaBrokers, bc.KafkaGroup, bc.KafkaTopic, bl.Handle, log)
				}
				if err != nil && !errs.Is(err, context.Canceled) {
					log.Error("booking log consumer stopped", "error", err)
				}
			}()
			log.Info("booking log consumer started", "sink", bc.EventSink, "path", bl.Path())
			return nil
		},
		OnStop: func(stop context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stop.Done():
			}
			return nil
		},
	})
}

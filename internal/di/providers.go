package di

import (
	"context"
	"fmt"
	"time"

	"Stooorage/internal/domain/repository"
	domsvc "Stooorage/internal/domain/service"
	"Stooorage/internal/handler/api"
	mid "Stooorage/internal/middleware"
	internalrepo "Stooorage/internal/repository"
	icache "Stooorage/internal/service/cache"
	"Stooorage/internal/service/ratelimit"
	"Stooorage/internal/services/forecast"
	"Stooorage/internal/usecase"
	pkgch "Stooorage/pkg/clickhouse"
	"Stooorage/pkg/config"
	xhttp "Stooorage/pkg/http"
	pkgkafka "Stooorage/pkg/kafka"
	applogger "Stooorage/pkg/logger"
	"Stooorage/pkg/metrics"
	"Stooorage/pkg/postgres"
	"Stooorage/pkg/server"

	echomw "github.com/labstack/echo/v4/middleware"
)

// ProvideLogger builds the application logger from the logger section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		TimeFormat: cfg.Logger.TimeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New(nil)
}

// ProvidePostgresClient connects the pool and ensures the schema.
func ProvidePostgresClient(cfg *config.Config, l *applogger.Logger) (*postgres.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.Postgres.ConnectTimeout)
	defer cancel()

	client, err := postgres.NewClient(ctx,
		postgres.WithDSN(cfg.Postgres.DSN),
		postgres.WithPoolSize(cfg.Postgres.MaxConns, cfg.Postgres.MinConns),
		postgres.WithConnLifetime(cfg.Postgres.MaxConnLifetime, cfg.Postgres.MaxConnIdleTime),
		postgres.WithConnectTimeout(cfg.Postgres.ConnectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres client: %w", err)
	}
	if cfg.Postgres.InitSchema {
		if err := client.InitSchema(ctx, internalrepo.PostgresSchema); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
	}
	l.Info("postgres connected", applogger.Bool("schema", cfg.Postgres.InitSchema))
	return client, nil
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.ClickHouse.DialTimeout)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(10, 5, 5*time.Minute),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		pkgch.WithCreateDatabase(true),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if err := client.InitSchema(ctx, internalrepo.ClickHouseSchema(cfg.ClickHouse.Database, cfg.ClickHouse.Table)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse connected", applogger.String("table", cfg.ClickHouse.QualifiedTable()))
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSalePublisher publishes sale events to Kafka through the redelivery
// pipeline, or drops them when Kafka is off.
func ProvideSalePublisher(producer *pkgkafka.Producer, m repository.Metrics, l *applogger.Logger, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return internalrepo.NoopPublisher{}
	}
	p := mid.NewSalePipeline(internalrepo.NewKafkaSalePublisher(producer, cfg.Kafka.Topic), m,
		mid.WithBufferSize(2000),
		mid.WithBackoff(cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		mid.WithPipelineLogger(l),
	)
	p.Start(context.Background())
	return p
}

// ProvideLogPublisher ships aggregated error logs over the producer, or nil without Kafka.
func ProvideLogPublisher(producer *pkgkafka.Producer) applogger.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSalePublisher(producer, "")
}

// ProvideSaleSink returns the ClickHouse sale mirror, or nil without ClickHouse.
func ProvideSaleSink(ch *pkgch.Client, cfg *config.Config) repository.SaleSink {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCHSaleStore(ch, cfg.ClickHouse.QualifiedTable())
}

// ProvideSeriesStore picks the forecast series source.
func ProvideSeriesStore(cfg *config.Config, pg *postgres.Client, ch *pkgch.Client, l *applogger.Logger) repository.SeriesStore {
	if cfg.Forecast.Source == "clickhouse" && ch != nil {
		s := internalrepo.NewCHSeriesStore(ch, cfg.ClickHouse.QualifiedTable())
		s.SetLogger(l)
		return s
	}
	return internalrepo.NewPostgresSeriesStore(pg.Pool(), l)
}

// ProvideKafkaConsumer creates the sale mirror consumer. It is nil unless Kafka,
// the consumer and ClickHouse are all enabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled || !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.NewTraceHook(l, cfg.Kafka.Consumer.SlowLog),
		pkgkafka.NewJSONHook(),
	))
	return consumer, nil
}

// ProvideKafkaSalesHandler mirrors sale events into ClickHouse.
func ProvideKafkaSalesHandler(sink repository.SaleSink, m repository.Metrics, cfg *config.Config) *usecase.KafkaSalesHandler {
	if sink == nil {
		return nil
	}
	return usecase.NewKafkaSalesHandler(cfg.Kafka.Topic, sink, m)
}

// ProvideForecaster selects the model engine.
func ProvideForecaster(cfg *config.Config) domsvc.Forecaster {
	if cfg.Forecast.Engine == "prophet" {
		return forecast.NewProphetHTTPForecaster(cfg.Forecast.ProphetURL, cfg.Forecast.Timeout)
	}
	return forecast.NewTrendForecaster(cfg.Forecast.IntervalWidth)
}

// ProvideForecastUseCase creates the forecast use case.
func ProvideForecastUseCase(
	store repository.SeriesStore,
	model domsvc.Forecaster,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.ForecastUseCase {
	uc := usecase.NewForecastUseCase(store, forecast.NewAdapter(model), m, l)
	uc.SetTimeout(cfg.Forecast.Timeout)
	uc.SetWorkers(cfg.Forecast.Workers)
	return uc
}

// ProvideProductUseCase creates the product use case.
func ProvideProductUseCase(pg *postgres.Client, l *applogger.Logger, cfg *config.Config) *usecase.ProductUseCase {
	uc := usecase.NewProductUseCase(internalrepo.NewPostgresProductStore(pg.Pool(), l), l)
	uc.SetStockThresholds(cfg.Reports.CriticalStock, cfg.Reports.LowStock)
	return uc
}

// ProvideTransactionUseCase creates the transaction use case.
func ProvideTransactionUseCase(pg *postgres.Client, pub repository.Publisher, m repository.Metrics, l *applogger.Logger) *usecase.TransactionUseCase {
	return usecase.NewTransactionUseCase(internalrepo.NewPostgresTransactionStore(pg.Pool(), l), pub, m, l)
}

// ProvideReportUseCase creates the report use case.
func ProvideReportUseCase(pg *postgres.Client, cfg *config.Config) (*usecase.ReportUseCase, error) {
	ref, err := cfg.Reports.Reference()
	if err != nil {
		return nil, err
	}
	return usecase.NewReportUseCase(internalrepo.NewPostgresReportStore(pg.Pool()), ref), nil
}

// ProvideRedisCache creates the Redis response cache, or nil when disabled.
func ProvideRedisCache(cfg *config.Config) *icache.RedisCache {
	if !cfg.Redis.Enabled {
		return nil
	}
	return icache.NewRedisCache(icache.RedisConfig{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		KeyPrefix: cfg.Redis.KeyPrefix,
	})
}

// ProvideForecastCache prefers Redis and falls back to the in-process TTL cache.
func ProvideForecastCache(rc *icache.RedisCache) icache.BytesCache {
	if rc != nil {
		return rc
	}
	return icache.NewTTLCache()
}

// ProvideServiceHandler serves / and /health with dependency checks.
func ProvideServiceHandler(l *applogger.Logger, pg *postgres.Client, ch *pkgch.Client, rc *icache.RedisCache) *api.ServiceEchoHandler {
	h := api.NewServiceEchoHandler(l)
	h.AddCheck("postgres", pg.Health)
	if ch != nil {
		h.AddCheck("clickhouse", ch.Health)
	}
	if rc != nil {
		h.AddCheck("redis", rc.Ping)
	}
	return h
}

// ProvideForecastHandler serves the forecast routes.
func ProvideForecastHandler(l *applogger.Logger, uc *usecase.ForecastUseCase, c icache.BytesCache, cfg *config.Config) *api.ForecastEchoHandler {
	h := api.NewForecastEchoHandler(l, uc)
	if cfg.Forecast.CacheTTL > 0 {
		h.SetCache(c, cfg.Forecast.CacheTTL)
	}
	if cfg.Forecast.RateLimitBurst > 0 {
		h.SetRateLimiter(ratelimit.New(cfg.Forecast.RateLimitBurst, cfg.Forecast.RateLimitRate))
	}
	return h
}

// ProvideProductsHandler serves the product, transaction and report routes.
func ProvideProductsHandler(
	l *applogger.Logger,
	products *usecase.ProductUseCase,
	txs *usecase.TransactionUseCase,
	reports *usecase.ReportUseCase,
) *api.ProductsEchoHandler {
	return api.NewProductsEchoHandler(l, products, txs, reports)
}

// ProvideHTTPServer builds the echo server with every route group.
func ProvideHTTPServer(
	cfg *config.Config,
	l *applogger.Logger,
	svc *api.ServiceEchoHandler,
	fc *api.ForecastEchoHandler,
	pr *api.ProductsEchoHandler,
) *xhttp.Server {
	return xhttp.NewServer(xhttp.Handlers{svc, fc, pr},
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS, cfg.Server.CORSOrigins...),
		xhttp.WithMetrics(cfg.Metrics.Enabled, cfg.Metrics.Path, cfg.Metrics.SlowThreshold),
		xhttp.WithMiddleware(echomw.BodyLimit(cfg.Server.BodyLimit)),
		xhttp.WithLogger(l),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	pg *postgres.Client,
	ch *pkgch.Client,
	producer *pkgkafka.Producer,
	pub repository.Publisher,
	logPub applogger.Publisher,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaSalesHandler,
	rc *icache.RedisCache,
) *server.App {
	app := server.New(cfg, l, httpServer, pg)
	if ch != nil {
		app.AddCloser("clickhouse", ch.Close)
	}
	if rc != nil {
		app.AddCloser("redis", rc.Close)
	}
	if producer != nil {
		app.AddCloser("kafka producer", pub.Close)
		if cfg.Logger.Collector.Enabled && logPub != nil {
			app.SetLogCollector(&applogger.CollectionConfig{
				Service:        "stooorage",
				TimeInterval:   cfg.Logger.Collector.Interval,
				CountThreshold: cfg.Logger.Collector.CountThreshold,
				Topic:          cfg.Logger.Collector.Topic,
				Publisher:      logPub,
			})
		}
	}
	if consumer != nil && kh != nil {
		app.SetConsumer(consumer, kh)
	}
	return app
}

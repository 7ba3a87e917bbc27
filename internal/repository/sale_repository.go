package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"

	"Stooorage/internal/domain/models"
	"Stooorage/internal/domain/repository"
	pkgch "Stooorage/pkg/clickhouse"
	pkgkafka "Stooorage/pkg/kafka"

	"github.com/segmentio/kafka-go"
)

// ClickHouseSchema returns the DDL for the sales mirror table.
func ClickHouseSchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            event_id        String,
            transaction_no  String,
            ts              DateTime,
            product_no      String,
            product_name    String,
            quantity        Int64,
            price_at_sale   Decimal(18, 4),
            country         LowCardinality(String),
            ingested_at     DateTime DEFAULT now()
        ) ENGINE = ReplacingMergeTree(ingested_at)
        PARTITION BY toYYYYMM(ts)
        ORDER BY (product_no, transaction_no)`, table),
	}
}

// CHSaleStore implements SaleSink for ClickHouse.
type CHSaleStore struct {
	db    *sql.DB
	table string
}

// NewCHSaleStore creates the ClickHouse sale sink.
func NewCHSaleStore(ch *pkgch.Client, table string) *CHSaleStore {
	return &CHSaleStore{db: ch.DB(), table: table}
}

func (s *CHSaleStore) StoreSale(ctx context.Context, e *models.SaleEvent) error {
	q := fmt.Sprintf("INSERT INTO %s (event_id, transaction_no, ts, product_no, product_name, quantity, price_at_sale, country) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q,
		e.EventID,
		e.TransactionNo,
		models.Naive(e.TransactionDate),
		e.ProductNo,
		e.ProductName,
		e.Quantity,
		e.PriceAtSale,
		e.Country,
	)
	if err != nil {
		return fmt.Errorf("insert sale: %w", chErr(err))
	}
	return nil
}

func (s *CHSaleStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// chErr tags network failures with ErrUpstreamUnavailable.
func chErr(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %w", models.ErrUpstreamUnavailable, err)
	}
	return err
}

// KafkaSalePublisher implements Publisher for Kafka.
type KafkaSalePublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaSalePublisher creates Kafka publisher.
func NewKafkaSalePublisher(producer *pkgkafka.Producer, topic string) *KafkaSalePublisher {
	return &KafkaSalePublisher{producer: producer, topic: topic}
}

// PublishSale keys messages by product so one product's sales stay ordered.
func (p *KafkaSalePublisher) PublishSale(ctx context.Context, e *models.SaleEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(e.ProductNo), e,
		kafka.Header{Key: pkgkafka.TraceHeader, Value: []byte(e.EventID)})
}

// PublishMessage lets the log collector ship aggregated entries over the same producer.
func (p *KafkaSalePublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

func (p *KafkaSalePublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NoopPublisher drops events when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishSale(context.Context, *models.SaleEvent) error { return nil }
func (NoopPublisher) Close() error                                         { return nil }

var (
	_ repository.SaleSink  = (*CHSaleStore)(nil)
	_ repository.Publisher = (*KafkaSalePublisher)(nil)
	_ repository.Publisher = NoopPublisher{}
)

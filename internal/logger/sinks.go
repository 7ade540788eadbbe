package logger

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// webhookSink is the shared shape of the three inert publisher stubs: each
// is enabled by its own config flag and holds an external ingestion
// endpoint, but Write publishes nothing to it. The core never treats any of
// these as the system of record.
type webhookSink struct {
	name     string
	endpoint string
}

func (s *webhookSink) Name() string { return s.name }

func (s *webhookSink) Write(_ context.Context, _ []Record) error {
	if s.endpoint == "" {
		return nil
	}
	// Publishing is intentionally a no-op placeholder: the core is only
	// responsible for handing records to the sink interface, not for the
	// wire protocol of any specific SaaS logging backend.
	return nil
}

// NewSplunkSink builds a Splunk HEC publisher stub.
func NewSplunkSink(endpoint string) Sink { return &webhookSink{name: "splunk", endpoint: endpoint} }

// NewDatadogSink builds a Datadog logs-intake publisher stub.
func NewDatadogSink(endpoint string) Sink { return &webhookSink{name: "datadog", endpoint: endpoint} }

// NewElasticsearchSink builds an Elasticsearch bulk-index publisher stub.
func NewElasticsearchSink(endpoint string) Sink {
	return &webhookSink{name: "elasticsearch", endpoint: endpoint}
}

// ClickHouseSink batches log records into the gateway_logs table. Unlike
// the webhook stubs, this sink holds a real driver connection, since
// ClickHouse mirrors log records for ad-hoc analytics rather than acting as
// a SaaS logging backend the core treats as out of scope.
type ClickHouseSink struct {
	conn  clickhouse.Conn
	table string
}

// NewClickHouseSink opens a connection against addr (host:port) and
// database, targeting table for inserts.
func NewClickHouseSink(addr, database, username, password, table string) (*ClickHouseSink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("logger: clickhouse: open: %w", err)
	}
	if table == "" {
		table = "gateway_logs"
	}
	return &ClickHouseSink{conn: conn, table: table}, nil
}

func (s *ClickHouseSink) Name() string { return "clickhouse" }

func (s *ClickHouseSink) Write(ctx context.Context, records []Record) error {
	batch, err := s.conn.PrepareBatch(ctx, fmt.Sprintf(
		"INSERT INTO %s (timestamp, level, component, message) VALUES", s.table,
	))
	if err != nil {
		return fmt.Errorf("logger: clickhouse: prepare batch: %w", err)
	}

	for _, rec := range records {
		if err := batch.Append(rec.Timestamp, int8(rec.Level), rec.Component, rec.Message); err != nil {
			return fmt.Errorf("logger: clickhouse: append: %w", err)
		}
	}
	return batch.Send()
}

// Close releases the underlying ClickHouse connection.
func (s *ClickHouseSink) Close() error {
	return s.conn.Close()
}

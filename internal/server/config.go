package server

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	TransportRaw  = "raw"
	TransportHTTP = "http"

	ConsumerGoChannel = "gochannel"
	ConsumerWAL       = "wal"
	ConsumerNone      = "none"

	SinkDB    = "db"
	SinkKafka = "kafka"
)

type Config struct {
	ListenAddr   string `env:"LISTEN_ADDR" envDefault:"0.0.0.0:8080"`
	DBConnString string `env:"DB_CONN_STRING" envDefault:"postgresql://postgres:postgres@db:5432/postgres"`
	Transport    string `env:"TRANSPORT" envDefault:"raw"`

	WorkerCount    int           `env:"WORKER_COUNT" envDefault:"8"`
	ReadBufferSize int           `env:"READ_BUFFER_SIZE" envDefault:"1024"`
	ReadTimeout    time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	QueryTimeout   time.Duration `env:"QUERY_TIMEOUT" envDefault:"5s"`

	DBMaxConns int32 `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns int32 `env:"DB_MIN_CONNS" envDefault:"2"`

	UpdateMissingIsNotFound bool `env:"UPDATE_MISSING_IS_NOT_FOUND" envDefault:"false"`

	EventConsumerType string   `env:"EVENT_CONSUMER_TYPE" envDefault:"gochannel"`
	EventSink         string   `env:"EVENT_SINK" envDefault:"db"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaTopic        string   `env:"KAFKA_TOPIC" envDefault:"user-events"`
	WALDir            string   `env:"WAL_DIR" envDefault:"./wal"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// LoadConfig reads the configuration from the process environment.
func LoadConfig() (*Config, error) {
	return loadConfig(env.Options{})
}

func loadConfig(opts env.Options) (*Config, error) {
	config := &Config{}
	if err := env.ParseWithOptions(config, opts); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	switch c.Transport {
	case TransportRaw, TransportHTTP:
	default:
		return fmt.Errorf("unsupported transport: %s", c.Transport)
	}

	switch c.EventConsumerType {
	case ConsumerGoChannel, ConsumerWAL, ConsumerNone:
	default:
		return fmt.Errorf("unsupported event consumer type: %s", c.EventConsumerType)
	}

	switch c.EventSink {
	case SinkDB:
	case SinkKafka:
		if len(c.KafkaBrokers) == 0 || c.KafkaTopic == "" {
			return fmt.Errorf("kafka event sink requires KAFKA_BROKERS and KAFKA_TOPIC")
		}
	default:
		return fmt.Errorf("unsupported event sink: %s", c.EventSink)
	}

	if c.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1, got %d", c.WorkerCount)
	}
	if c.ReadBufferSize < 1 {
		return fmt.Errorf("READ_BUFFER_SIZE must be at least 1, got %d", c.ReadBufferSize)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}

	return nil
}

package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"`
	Name     string `envconfig:"DB_NAME" default:"orderhub"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

func (c DBConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

func (c DBConfig) MigrationURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type KafkaConfig struct {
	BrokerURL string `envconfig:"KAFKA_BROKER_URL" default:"localhost:9092"`
	Topic     string `envconfig:"KAFKA_ORDER_TOPIC" default:"order_topic"`
}

func (c KafkaConfig) Brokers() []string {
	return []string{c.BrokerURL}
}

type OrdersConfig struct {
	DB    DBConfig
	Kafka KafkaConfig

	HTTPPort       int    `envconfig:"ORDERS_HTTP_PORT" default:"8081"`
	MigrationsPath string `envconfig:"ORDERS_MIGRATIONS_PATH" default:"file://migrations/orders"`

	OutboxPollInterval time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"1s"`
	OutboxBatchSize    int           `envconfig:"OUTBOX_BATCH_SIZE" default:"100"`
	OutboxBackoffBase  time.Duration `envconfig:"OUTBOX_BACKOFF_BASE" default:"500ms"`
	OutboxBackoffCap   time.Duration `envconfig:"OUTBOX_BACKOFF_CAP" default:"30s"`
}

type ConsumerConfig struct {
	DB    DBConfig
	Kafka KafkaConfig

	ConsumerGroup  string        `envconfig:"CONSUMER_GROUP"`
	AdminHTTPPort  int           `envconfig:"ADMIN_HTTP_PORT" default:"8090"`
	MigrationsPath string        `envconfig:"MIGRATIONS_PATH"`
	Workers        int           `envconfig:"CONSUMER_WORKERS" default:"3"`
	RetryBudget    int           `envconfig:"RETRY_BUDGET" default:"5"`
	RetryBackoff   time.Duration `envconfig:"RETRY_BACKOFF" default:"500ms"`
	RetryCap       time.Duration `envconfig:"RETRY_CAP" default:"10s"`
}

type SMTPConfig struct {
	Host     string `envconfig:"SMTP_HOST" default:"localhost"`
	Port     int    `envconfig:"SMTP_PORT" default:"587"`
	User     string `envconfig:"SMTP_USER"`
	Password string `envconfig:"SMTP_PASSWORD"`
	From     string `envconfig:"SMTP_FROM" default:"orders@orderhub.local"`
}

type EmailConfig struct {
	ConsumerConfig
	SMTP SMTPConfig
}

type GatewayConfig struct {
	Port             int    `envconfig:"GATEWAY_PORT" default:"8080"`
	OrdersServiceURL string `envconfig:"ORDERS_SERVICE_URL" default:"http://localhost:8081"`
	StockAdminURL    string `envconfig:"STOCK_ADMIN_URL" default:"http://localhost:8091"`
	EmailAdminURL    string `envconfig:"EMAIL_ADMIN_URL" default:"http://localhost:8092"`
	AllowedOrigin    string `envconfig:"GATEWAY_ALLOWED_ORIGIN" default:"http://localhost:5173"`
}

// LoadOrders reads the producer's configuration from the environment. Each
// service is prefixed so the fleet can share one environment file.
func LoadOrders() (*OrdersConfig, error) {
	cfg := &OrdersConfig{}
	if err := envconfig.Process("orders", cfg); err != nil {
		return nil, fmt.Errorf("failed to load orders config: %w", err)
	}
	return cfg, nil
}

func LoadStock() (*ConsumerConfig, error) {
	cfg := &ConsumerConfig{}
	if err := envconfig.Process("stock", cfg); err != nil {
		return nil, fmt.Errorf("failed to load stock config: %w", err)
	}
	if cfg.ConsumerGroup == "" {
		cfg.ConsumerGroup = "stock-service"
	}
	if cfg.MigrationsPath == "" {
		cfg.MigrationsPath = "file://migrations/stock"
	}
	return cfg, nil
}

func LoadEmail() (*EmailConfig, error) {
	cfg := &EmailConfig{}
	if err := envconfig.Process("email", cfg); err != nil {
		return nil, fmt.Errorf("failed to load email config: %w", err)
	}
	if cfg.ConsumerGroup == "" {
		cfg.ConsumerGroup = "email-service"
	}
	if cfg.MigrationsPath == "" {
		cfg.MigrationsPath = "file://migrations/email"
	}
	return cfg, nil
}

func LoadGateway() (*GatewayConfig, error) {
	cfg := &GatewayConfig{}
	if err := envconfig.Process("gateway", cfg); err != nil {
		return nil, fmt.Errorf("failed to load gateway config: %w", err)
	}
	return cfg, nil
}

package config

import (
	"os"

	"github.com/joho/godotenv"
)

// RelayConfig holds configuration for the outbox relay worker.
// It only includes what the relay needs.
type RelayConfig struct {
	DatabaseURL       string
	RabbitMQURL       string
	ReportEventsQueue string
	HealthPort        string
}

func LoadRelayConfig() *RelayConfig {
	_ = godotenv.Load()

	dbURL := os.Getenv("DB_CONNECTION_STRING")
	if dbURL == "" {
		panic("DB_CONNECTION_STRING environment variable is required")
	}

	rabbitURL := os.Getenv("RABBITMQ_URL")
	if rabbitURL == "" {
		panic("RABBITMQ_URL environment variable is required")
	}

	return &RelayConfig{
		DatabaseURL:       dbURL,
		RabbitMQURL:       rabbitURL,
		ReportEventsQueue: getEnv("REPORT_EVENTS_QUEUE", "report-events"),
		HealthPort:        getEnv("RELAY_HEALTH_PORT", "8090"),
	}
}

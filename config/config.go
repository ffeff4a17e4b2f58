package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

var (
	Environment      string
	KnoxEndpoint     string
	AlchemyEndpoint  string
	HeimdallEndpoint string
	KafkaBroker      string
	IngestionTopic   string
	OrganizationID   string
	TemplatePath     string
)

func init() {
	// Local runs keep settings in a .env file; absence is fine everywhere else.
	_ = godotenv.Load()
	Reload()
}

// Reload re-reads every setting from the environment. Tests use it after
// mutating env vars.
func Reload() {
	Environment = GetEnv("ENVIRONMENT", "local")
	KnoxEndpoint = strings.TrimRight(GetEnv("KNOX_ENDPOINT", "http://localhost:8000"), "/")
	AlchemyEndpoint = strings.TrimRight(GetEnv("ALCHEMY_ENDPOINT", "http://localhost:8001"), "/")
	HeimdallEndpoint = strings.TrimRight(GetEnv("HEIMDALL_ENDPOINT", "http://localhost:8002"), "/")
	KafkaBroker = GetEnv("KAFKA_BROKER", "localhost:9092")
	IngestionTopic = resolveIngestionTopic()
	OrganizationID = resolveOrganizationID()
	TemplatePath = GetEnv("NTDV1_TEMPLATE_PATH", "mount/test-message.json")
}

// GetEnv returns the value of the environment variable or a default value
func GetEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

// Local returns true when running against local infrastructure.
func Local() bool { return Environment == "local" }

// Validate reports missing required settings up front, before any test body
// runs against half-configured infrastructure.
func Validate() error {
	var missing []string
	if KnoxEndpoint == "" {
		missing = append(missing, "KNOX_ENDPOINT")
	}
	if KafkaBroker == "" {
		missing = append(missing, "KAFKA_BROKER")
	}
	if !Local() && os.Getenv("TEST_ORGANIZATION_ID") == "" {
		missing = append(missing, "TEST_ORGANIZATION_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func resolveIngestionTopic() string {
	if topic := os.Getenv("KNOX_INGESTION_TOPIC"); topic != "" {
		return topic
	}
	if GetEnv("ENVIRONMENT", "local") == "local" {
		return "local-stack-source-ntd-queue"
	}
	return "knox-ingestion-source-ntd-queue"
}

// resolveOrganizationID returns a throwaway org for local runs so repeated
// sessions never share a tenant; deployed environments pin one explicitly.
func resolveOrganizationID() string {
	if id := os.Getenv("TEST_ORGANIZATION_ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

package config

import (
	"crypto/rsa"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
)

const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

type Config struct {
	Port      string
	RouteTree domain.Role

	JWTPrivateKey *rsa.PrivateKey
	JWTPublicKey  *rsa.PublicKey
	SessionTTL    time.Duration

	DatabaseURL   string
	DocumentStore string
	MongoURI      string
	MongoDatabase string

	RedisAddress  string
	RedisPassword string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	CloudinaryURL string
	UploadPrefix  string

	NominatimURL       string
	GeocoderUserAgent  string
	RabbitMQURL        string
	ReportEventsQueue  string
	AllowedOrigins     []string
	LoginRatePerMinute int
	// TrustedProxies is a comma-separated list of IPs and CIDR ranges whose X-Forwarded-For is honoured.
	TrustedProxies string
	SecureCookies  bool
	Version        string

	// BootstrapAdmin* provision the first admin on startup when both are set.
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// Load reads the environment (and a .env file when present) and panics on misconfiguration.
func Load() *Config {
	_ = godotenv.Load()

	privateKey, err := loadPrivateKey(getEnv("PRIVATE_KEY_PATH", "/etc/certs/private.pem"))
	if err != nil {
		panic("Failed to load private key: " + err.Error())
	}
	publicKey, err := loadPublicKey(getEnv("PUBLIC_KEY_PATH", "/etc/certs/public.pem"))
	if err != nil {
		panic("Failed to load public key: " + err.Error())
	}

	dbURL := os.Getenv("DB_CONNECTION_STRING")
	if dbURL == "" {
		panic("DB_CONNECTION_STRING environment variable is required")
	}

	tree, ok := ParseRouteTree(os.Getenv("APP_ROLE_TREE"))
	if !ok {
		panic("APP_ROLE_TREE must be one of citizen, cleaner, admin")
	}

	store := strings.ToLower(getEnv("DOCUMENT_STORE", StorePostgres))
	if store != StorePostgres && store != StoreMongo {
		panic("DOCUMENT_STORE must be postgres or mongo")
	}
	mongoURI := os.Getenv("MONGO_URI")
	if store == StoreMongo && mongoURI == "" {
		panic("MONGO_URI environment variable is required when DOCUMENT_STORE=mongo")
	}

	sessionTTL, err := time.ParseDuration(getEnv("SESSION_TTL", "24h"))
	if err != nil || sessionTTL <= 0 {
		panic("SESSION_TTL must be a positive duration")
	}

	loginRate, err := strconv.Atoi(getEnv("LOGIN_RATE_LIMIT", "10"))
	if err != nil || loginRate <= 0 {
		panic("LOGIN_RATE_LIMIT must be a positive integer")
	}

	secureCookies, err := strconv.ParseBool(getEnv("SECURE_COOKIES", "true"))
	if err != nil {
		panic("SECURE_COOKIES must be a boolean")
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		RouteTree:          tree,
		JWTPrivateKey:      privateKey,
		JWTPublicKey:       publicKey,
		SessionTTL:         sessionTTL,
		DatabaseURL:        dbURL,
		DocumentStore:      store,
		MongoURI:           mongoURI,
		MongoDatabase:      getEnv("MONGO_DB", "smartwaste"),
		RedisAddress:       getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		CloudinaryURL:      os.Getenv("CLOUDINARY_URL"),
		UploadPrefix:       getEnv("UPLOAD_PREFIX", "waste-reports"),
		NominatimURL:       getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		GeocoderUserAgent:  getEnv("GEOCODER_USER_AGENT", "SmartWaste/1.0"),
		RabbitMQURL:        os.Getenv("RABBITMQ_URL"),
		ReportEventsQueue:  getEnv("REPORT_EVENTS_QUEUE", "report-events"),
		AllowedOrigins:     splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		LoginRatePerMinute: loginRate,
		TrustedProxies:     os.Getenv("TRUSTED_PROXIES"),
		SecureCookies:      secureCookies,
		Version:            getEnv("APP_VERSION", "unknown"),

		BootstrapAdminEmail:    os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
		BootstrapAdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
	}
}

// ParseRouteTree picks which role tree the server mounts. Unset means citizen.
func ParseRouteTree(v string) (domain.Role, bool) {
	if strings.TrimSpace(v) == "" {
		return domain.RoleCitizen, true
	}
	return domain.ParseRole(v)
}

// GoogleEnabled reports whether federated sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return jwt.ParseRSAPrivateKeyFromPEM(keyData)
}

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return jwt.ParseRSAPublicKeyFromPEM(keyData)
}

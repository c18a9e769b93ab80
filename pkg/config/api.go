package config

import "time"

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment          string
	Addr                 string
	DatabaseURL          string
	MigrationsDir        string
	JWTSecret            string
	ContactEncryptionKey string
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	PageSize             int
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:          GetString("APP_ENV", "development"),
		Addr:                 GetString("API_ADDR", ":4000"),
		DatabaseURL:          GetString("DATABASE_URL", "postgres://psychologists:psychologists@db:5432/psychologists?sslmode=disable"),
		MigrationsDir:        GetString("DB_MIGRATIONS_DIR", "db/migrations"),
		JWTSecret:            GetString("JWT_SECRET", "supersecuresecret"),
		ContactEncryptionKey: GetString("CONTACT_ENCRYPTION_KEY", "supersecuresecret"),
		AccessTokenTTL:       time.Duration(GetInt("ACCESS_TOKEN_TTL_MIN", 15)) * time.Minute,
		RefreshTokenTTL:      time.Duration(GetInt("REFRESH_TOKEN_TTL_HOURS", 24)) * time.Hour,
		PageSize:             GetInt("CATALOG_PAGE_SIZE", 3),
		RedisAddr:            GetString("REDIS_ADDR", ""),
		RedisPassword:        GetString("REDIS_PASSWORD", ""),
		RedisDB:              GetInt("REDIS_DB", 0),
	}
}

package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"4243"`

	// Schreibende Endpunkte nur mit X-API-KEY, wenn gesetzt.
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Zeitplan für den Katalog-Statistik-Job.
	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 3 * * *"`

	// Optionaler Legacy-Dump (JSON-Array), wird beim Start importiert.
	SeedFile string `envconfig:"SEED_FILE"`

	// S3-kompatibler Speicher für Kräuterbilder. Ohne URL bleibt der
	// Upload-Endpunkt deaktiviert.
	StratoS3Key    string `envconfig:"STRATO_S3_KEY"`
	StratoS3Secret string `envconfig:"STRATO_S3_SECRET"`
	StratoS3URL    string `envconfig:"STRATO_S3_URL"`
	StratoS3Region string `envconfig:"STRATO_S3_REGION" default:"de"`
	StratoS3Bucket string `envconfig:"STRATO_S3_BUCKET" default:"herb-images"`

	CORSAllowOrigins string `envconfig:"CORS_ALLOW_ORIGINS" default:"*"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// ImagesEnabled meldet, ob der Bild-Upload konfiguriert ist.
func (c *Config) ImagesEnabled() bool {
	return c.StratoS3URL != "" && c.StratoS3Key != "" && c.StratoS3Secret != ""
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}

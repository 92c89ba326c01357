package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/herbenzoayurvedic-eng/herbs/config"
	"github.com/herbenzoayurvedic-eng/herbs/models"
	"github.com/herbenzoayurvedic-eng/herbs/services"
	"github.com/herbenzoayurvedic-eng/herbs/storage"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	herbsCreatedCounter prometheus.Counter
	herbsTotalGauge     prometheus.Gauge
)

func init() {
	herbsCreatedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "herbs_created_total",
			Help: "Total number of herb records created via the API.",
		},
	)
	herbsTotalGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "herbs_total",
			Help: "Current number of herb records in the catalog.",
		},
	)
	prometheus.MustRegister(herbsCreatedCounter, herbsTotalGauge)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		logging.Fatal("Failed to connect to herbs database", zap.Error(err))
	}
	logging.Info("Successfully connected to herbs database.")

	// Auto-Migration
	if gin.Mode() == gin.DebugMode {
		logging.Info("Debug mode detected. Dropping tables for fresh start.")
		db.Migrator().DropTable(&models.Herb{})
	}
	logging.Info("Running database auto-migration...")
	db.AutoMigrate(&models.Herb{})

	// Setup Services
	herbService := services.NewHerbService(db, logging)
	normalizer := services.NewLegacyNormalizer(logging)

	// Seeding aus Legacy-Dump (optional)
	if cfg.SeedFile != "" {
		importSeedFile(herbService, normalizer, cfg.SeedFile, logging)
	}

	var s3Client *awss3.Client
	if cfg.ImagesEnabled() {
		s3Client, err = storage.NewS3Client(cfg)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		logging.Info("Image storage enabled", zap.String("bucket", cfg.StratoS3Bucket))
	} else {
		logging.Warn("No S3 endpoint configured, image upload disabled")
	}

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "herbs-api"})
	})

	// Setup Routes
	setupHerbRoutes(router, herbService, normalizer, s3Client, cfg, logging)

	// Setup Cron: Katalog-Statistik für das herbs_total-Gauge
	refreshStats := func() {
		count, err := herbService.Count(context.Background())
		if err != nil {
			logging.Error("Catalog stats job failed", zap.Error(err))
			return
		}
		herbsTotalGauge.Set(float64(count))
		logging.Info("Catalog stats refreshed", zap.Int64("herbs", count))
	}
	refreshStats()
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, refreshStats)
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "X-API-KEY"},
		MaxAge:       12 * time.Hour,
	}
	if cfg.CORSAllowOrigins == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = strings.Split(cfg.CORSAllowOrigins, ",")
	}
	return cors.New(corsCfg)
}

// Einheitlicher Antwort-Umschlag: {success, data} bzw. {success, message}.
func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondFail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// respondServiceError mappt die Service-Taxonomie auf Statuscodes.
// Unklassifizierte Store-Fehler werden geloggt und als 500 mit
// durchgereichter Message beantwortet.
func respondServiceError(c *gin.Context, log *zap.Logger, err error) {
	var missing *services.MissingFieldsError
	var invalid *services.ValidationError
	switch {
	case errors.As(err, &missing):
		respondFail(c, http.StatusBadRequest, missing.Error())
	case errors.As(err, &invalid):
		respondFail(c, http.StatusBadRequest, invalid.Error())
	case errors.Is(err, services.ErrMalformedID):
		respondFail(c, http.StatusBadRequest, "Invalid herb ID")
	case errors.Is(err, services.ErrDuplicateName):
		respondFail(c, http.StatusBadRequest, "A herb with this name already exists")
	case errors.Is(err, services.ErrNotFound):
		respondFail(c, http.StatusNotFound, "Herb not found")
	default:
		log.Error("Store operation failed", zap.String("path", c.FullPath()), zap.Error(err))
		respondFail(c, http.StatusInternalServerError, err.Error())
	}
}

func setupHerbRoutes(router *gin.Engine, svc *services.HerbService, normalizer *services.LegacyNormalizer, s3Client *awss3.Client, cfg *config.Config, log *zap.Logger) {
	rg := router.Group("/api/herbs")
	auth := apiKeyAuthMiddleware(cfg)

	// GET /api/herbs - alle Einträge in Karten-Projektion
	rg.GET("", func(c *gin.Context) {
		cards, err := svc.ListAll(c.Request.Context())
		if err != nil {
			respondServiceError(c, log, err)
			return
		}
		respondOK(c, http.StatusOK, cards)
	})

	// GET /api/herbs/slug/:slug - vollständiger Eintrag per Slug
	rg.GET("/slug/:slug", func(c *gin.Context) {
		herb, err := svc.GetBySlug(c.Request.Context(), c.Param("slug"))
		if err != nil {
			respondServiceError(c, log, err)
			return
		}
		respondOK(c, http.StatusOK, herb)
	})

	// GET /api/herbs/:id - vollständiger Eintrag per ID
	rg.GET("/:id", func(c *gin.Context) {
		herb, err := svc.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondServiceError(c, log, err)
			return
		}
		respondOK(c, http.StatusOK, herb)
	})

	// POST /api/herbs - neuen Eintrag anlegen
	rg.POST("", auth, func(c *gin.Context) {
		var in services.HerbInput
		if err := c.ShouldBindJSON(&in); err != nil {
			respondFail(c, http.StatusBadRequest, "Invalid request body")
			return
		}
		herb, err := svc.Create(c.Request.Context(), &in)
		if err != nil {
			respondServiceError(c, log, err)
			return
		}
		herbsCreatedCounter.Inc()
		respondOK(c, http.StatusCreated, herb)
	})

	// PUT /api/herbs/:id - partielles Update über die Feld-Whitelist
	rg.PUT("/:id", auth, func(c *gin.Context) {
		var payload map[string]any
		if err := c.ShouldBindJSON(&payload); err != nil {
			respondFail(c, http.StatusBadRequest, "Invalid request body")
			return
		}
		herb, err := svc.Update(c.Request.Context(), c.Param("id"), payload)
		if err != nil {
			respondServiceError(c, log, err)
			return
		}
		respondOK(c, http.StatusOK, herb)
	})

	// DELETE /api/herbs/:id - Eintrag endgültig löschen
	rg.DELETE("/:id", auth, func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
			respondServiceError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Herb deleted successfully"})
	})

	// POST /api/herbs/import - Bulk-Import eines Legacy-Dumps
	rg.POST("/import", auth, func(c *gin.Context) {
		var docs []map[string]any
		if err := c.ShouldBindJSON(&docs); err != nil {
			respondFail(c, http.StatusBadRequest, "Invalid request body: expected a JSON array of documents")
			return
		}
		stats := normalizer.ImportAll(c.Request.Context(), svc, docs)
		herbsCreatedCounter.Add(float64(stats.Created))
		respondOK(c, http.StatusCreated, stats)
	})

	// POST /api/herbs/:id/image - Bild hochladen, imageUrl setzen
	if s3Client != nil {
		rg.POST("/:id/image", auth, func(c *gin.Context) {
			file, err := c.FormFile("image")
			if err != nil {
				respondFail(c, http.StatusBadRequest, "Invalid request: 'image' file is required")
				return
			}
			src, err := file.Open()
			if err != nil {
				respondFail(c, http.StatusBadRequest, "Could not read uploaded file")
				return
			}
			defer src.Close()
			data, err := io.ReadAll(src)
			if err != nil {
				respondFail(c, http.StatusBadRequest, "Could not read uploaded file")
				return
			}

			key := fmt.Sprintf("herbs/%s/%s", c.Param("id"), filepath.Base(file.Filename))
			link, err := storage.UploadImage(c.Request.Context(), s3Client, cfg, key, file.Header.Get("Content-Type"), data)
			if err != nil {
				log.Error("Image upload failed", zap.String("key", key), zap.Error(err))
				respondFail(c, http.StatusInternalServerError, "Image upload failed")
				return
			}

			herb, err := svc.SetImageURL(c.Request.Context(), c.Param("id"), link)
			if err != nil {
				respondServiceError(c, log, err)
				return
			}
			respondOK(c, http.StatusOK, herb)
		})
	}

	log.Info("Herb routes configured successfully",
		zap.String("base_path", "/api/herbs"),
		zap.Bool("image_upload", s3Client != nil))
}

// importSeedFile importiert einen Legacy-Dump (JSON-Array) beim Start.
// Bereits vorhandene Namen werden übersprungen, der Start bricht bei
// fehlerhaften Dokumenten nicht ab.
func importSeedFile(svc *services.HerbService, normalizer *services.LegacyNormalizer, path string, logging *zap.Logger) {
	raw, err := os.ReadFile(path)
	if err != nil {
		logging.Warn("Failed to read seed file", zap.String("path", path), zap.Error(err))
		return
	}
	var docs []map[string]any
	if err := json.Unmarshal(raw, &docs); err != nil {
		logging.Warn("Seed file is not a JSON array of documents", zap.String("path", path), zap.Error(err))
		return
	}
	stats := normalizer.ImportAll(context.Background(), svc, docs)
	logging.Info("Seed import completed",
		zap.String("path", path),
		zap.Int("created", stats.Created),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed))
}

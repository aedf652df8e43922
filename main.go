package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"fm3d/admin"
	"fm3d/analytics"
	"fm3d/assets"
	"fm3d/auth"
	"fm3d/cache"
	"fm3d/common"
	"fm3d/config"
	"fm3d/content"
	"fm3d/database"
	"fm3d/guard"
	"fm3d/participants"
	"fm3d/profile"
	"fm3d/site"
	"fm3d/storage"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := common.NewLogger(cfg.LogLevel, os.Stdout)

	db, err := common.ConnectDb(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.RunMigrations(db, log); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	if len(os.Args) > 1 && os.Args[1] == "seed-admin" {
		seedAdmin(cfg, db, log)
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	var bucket storage.Bucket
	var memory *storage.MemoryBucket
	switch cfg.StorageDriver {
	case "oss":
		bucket, err = storage.NewOSSBucket(storage.OSSConfig{
			Endpoint:  cfg.OSSEndpoint,
			AccessKey: cfg.OSSAccessKey,
			SecretKey: cfg.OSSSecretKey,
			Bucket:    cfg.OSSBucket,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open object storage")
		}
	default:
		memory = storage.NewMemoryBucket(cfg.PublicBaseURL)
		bucket = memory
		log.Warn().Msg("using in-memory object storage, uploads are lost on restart")
	}

	pages := cache.New(cfg.CacheDir, cfg.CacheMaxAge, log)
	if err := pages.Sweep(); err != nil {
		log.Warn().Err(err).Msg("cache sweep failed")
	}

	assetService := assets.NewService(bucket, cfg.SignedURLTTL, log)
	imageLimits := assets.ImageLimits(cfg.UploadMaxBytes, false)
	contentService := content.NewService(db, assetService, pages, content.Limits{
		Cover: imageLimits,
		File:  assets.AnyLimits(cfg.UploadMaxBytes),
	}, log)
	participantService := participants.NewService(db, assetService, pages, imageLimits, log)
	profileService := profile.NewService(db, assetService, pages, imageLimits, log)
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL, cfg.SecureCookies)
	visits, err := analytics.NewAnalyticsModule(db, cfg.SecureCookies, log)
	if err != nil {
		log.Error().Err(err).Msg("analytics disabled")
		visits = nil
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), common.RequestLogger(log))

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions("fm3d-session", store))
	router.Use(tokens.Middleware(), guard.Middleware())
	router.Use(pages.Middleware("/api/"))

	router.Static("/images", "./public/images")
	if memory != nil {
		serveMemoryBucket(router, cfg.PublicBaseURL, memory)
	}

	adminModule := admin.NewAdminModule(db, tokens, contentService, participantService, assetService, admin.Options{
		UploadMax:  cfg.UploadMaxBytes,
		NewsLimits: assets.ImageLimits(cfg.NewsUploadMax, true),
		Analytics:  visits,
		Cache:      pages,
	}, log)
	adminModule.RegisterRoutes(router)

	profileModule := profile.NewProfileModule(profileService, contentService, cfg.UploadMaxBytes, log)
	profileModule.RegisterRoutes(router)

	siteModule := site.NewSiteModule(contentService, participantService, visits, cfg.Domain, log)
	siteModule.RegisterRoutes(router)

	log.Info().Str("port", cfg.Port).Str("storage", cfg.StorageDriver).Msg("starting server")
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
}

// serveMemoryBucket exposes the development bucket under the path of its
// public base URL so stored files can be viewed.
func serveMemoryBucket(router *gin.Engine, baseURL string, bucket *storage.MemoryBucket) {
	prefix := "/files"
	if u, err := url.Parse(baseURL); err == nil && u.Path != "" {
		prefix = strings.TrimRight(u.Path, "/")
	}
	router.GET(prefix+"/*key", func(c *gin.Context) {
		data, contentType, ok := bucket.Object(strings.TrimPrefix(c.Param("key"), "/"))
		if !ok {
			c.Status(http.StatusNotFound)
			return
		}
		c.Data(http.StatusOK, contentType, data)
	})
}

// seedAdmin upserts the SUPERADMIN named by SEED_ADMIN_EMAIL. A generated
// password is printed once, since it is not stored anywhere else.
func seedAdmin(cfg *config.Config, db *gorm.DB, log zerolog.Logger) {
	user, password, err := database.SeedAdmin(db, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("seeding admin failed")
	}
	log.Info().Str("id", user.ID).Str("email", user.Email).Msg("superadmin ready")
	if cfg.SeedAdminPassword == "" {
		fmt.Printf("Generated password for %s: %s\n", user.Email, password)
	}
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clubhouse/internal/attendance"
	"clubhouse/internal/auth"
	"clubhouse/internal/cloudinary"
	"clubhouse/internal/club"
	"clubhouse/internal/config"
	"clubhouse/internal/handler"
	"clubhouse/internal/httpmiddleware"
	"clubhouse/internal/identity"
	"clubhouse/internal/members"
	"clubhouse/internal/queue"
	"clubhouse/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.Migrate(db.Client); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "clubhouse:checkins")
	}

	verifier := identity.New(cfg.FirebaseAPIKey, cfg.FirebaseSkip)
	if cfg.FirebaseSkip {
		log.Println("identity provider skipped: every credential verifies (dev mode)")
	}

	loc := attendance.ReportLocation(cfg.ReportTimezone)
	attRepo := attendance.NewRepository(db.Client)
	att := attendance.NewService(attRepo, verifier, cfg.CheckinWindow, loc)

	memberRepo := members.NewRepository(db.Client)
	memberSvc := members.NewService(memberRepo, verifier)

	clubRepo := club.NewRepository(db.Client)

	// Cloudinary client (nil when not configured)
	var cdnClient *cloudinary.Client
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		cdnClient = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Println("Cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		log.Println("Cloudinary not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set)")
	}

	h := handler.New(att, memberSvc, clubRepo, verifier, cdnClient, q, cfg, loc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	api := r.Group("/api")
	api.POST("/attendance", h.CheckIn)
	api.POST("/login", h.Login)
	api.POST("/member-users/signup", h.Signup)
	api.GET("/retrieve-all-projects", h.Projects)
	api.GET("/retrieve-all-photos", h.Photos)
	api.GET("/events", h.EventsList)

	authed := api.Group("", auth.MemberAuth(cfg.JWTSigningKey, cfg.JWTIssuer))
	admin := authed.Group("", auth.AdminOnly())
	admin.GET("/qr-create", h.QRCreate)
	admin.POST("/events", h.EventCreate)
	admin.GET("/adminpage/attendance_list", h.AttendanceList)
	admin.POST("/adminpage/attendance_status", h.AttendanceStatus)
	admin.GET("/adminpage/attendance-summary", h.AttendanceSummary)
	admin.GET("/adminpage/members_list", h.MembersList)
	admin.PUT("/adminpage/members_edit/:member_id", h.MemberEdit)
	admin.DELETE("/adminpage/members_delete/:member_id", h.MemberDelete)
	admin.POST("/adminpage/photos", h.PhotoUpload)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

package main

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/auth"
	"rollcall/internal/catalog"
	"rollcall/internal/config"
	"rollcall/internal/faults"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/ledger"
	"rollcall/internal/request"
	"rollcall/internal/roster"
	"rollcall/internal/store"
	"rollcall/internal/validate"
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

	if err := db.EnsureSchema(context.Background()); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	users := roster.NewService(roster.NewPostgresRepository(db.Client), nil)
	courses := catalog.NewResolver(
		catalog.NewRedisCache(redisClient.Client, cfg.CatalogCacheTTL),
		catalog.NewClient(cfg.CatalogURL),
	)
	attendance := ledger.NewService(ledger.NewPostgresRepository(db.Client), users, nil)
	requests := request.NewService(request.NewPostgresRepository(db.Client), users, attendance, nil)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewRateLimiter(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

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

	register := func(instructor bool) gin.HandlerFunc {
		return func(c *gin.Context) {
			var req struct {
				Username string   `json:"username" binding:"required"`
				Courses  []string `json:"courses" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			role := auth.RoleStudent
			if instructor {
				role = auth.RoleInstructor
			}
			u, err := users.Register(c.Request.Context(), req.Username, req.Courses, instructor)
			if err != nil {
				fail(c, err)
				return
			}
			tokens, err := auth.Issue(u.Username, role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
				return
			}
			c.JSON(http.StatusCreated, gin.H{
				"username":      u.Username,
				"term":          u.Term,
				"access_token":  tokens.AccessToken,
				"refresh_token": tokens.RefreshToken,
				"expires_at":    tokens.AccessExp.Unix(),
			})
		}
	}
	r.POST("/api/userSetup", register(false))
	r.POST("/api/instructorSetup", register(true))

	// Title resolution never touches per-user data, so it stays open like
	// registration. One bad or slow title must not affect the rest.
	r.POST("/api/coursePrompt", func(c *gin.Context) {
		var req struct {
			Courses []string `json:"courses" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		results := courses.LookupBatch(c.Request.Context(), req.Courses)
		for _, res := range results {
			if res.Err != nil {
				log.Printf("catalog lookup %s %s failed: %v", res.Title.School, res.Title.CourseNumber, res.Err)
			}
		}
		c.JSON(http.StatusOK, gin.H{"courses": catalog.Aggregate(results)})
	})

	// Demo stand-in while the campus location API is unavailable.
	r.GET("/api/mock/locationData", func(c *gin.Context) {
		locations := []string{
			"Klaus 1456",
			"Skiles 368",
			"Howey L2",
			"U A Whitaker Biomedical Engr 1103",
			"Instruction Center 219",
		}
		c.JSON(http.StatusOK, gin.H{"location": locations[rand.Intn(len(locations))]})
	})

	api := r.Group("/api", auth.UserAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	api.POST("/myCourses", func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !actorMatches(c, req.Username) {
			return
		}
		u, err := users.Find(c.Request.Context(), req.Username)
		if roster.IsNotFound(err) {
			c.JSON(http.StatusOK, gin.H{"userExists": false, "courses": []catalog.Section{}})
			return
		}
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"userExists": true,
			"instructor": u.Instructor,
			"courses":    courses.CoursesFor(c.Request.Context(), u.CRNs),
		})
	})

	api.POST("/course/roster", func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			CRN      string `json:"crn" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		crn, ok := validate.Integer(req.CRN)
		if !ok {
			fail(c, faults.ErrInvalidInput)
			return
		}
		if !actorMatches(c, req.Username) {
			return
		}
		students, err := users.Students(c.Request.Context(), req.Username, crn)
		if err != nil {
			fail(c, err)
			return
		}
		names := make([]string, 0, len(students))
		for _, s := range students {
			names = append(names, s.Username)
		}
		c.JSON(http.StatusOK, gin.H{"roster": names})
	})

	api.POST("/checkin", func(c *gin.Context) {
		var req struct {
			Username       string `json:"username" binding:"required"`
			CRN            string `json:"crn" binding:"required"`
			RouterLocation string `json:"routerLocation"`
			PastDate       string `json:"pastDate"`
			Instructor     string `json:"instructor"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		crn, ok := validate.Integer(req.CRN)
		if !ok {
			fail(c, faults.ErrInvalidInput)
			return
		}
		// A pastDate plus an instructor username means a historical
		// correction; otherwise the student is checking themselves in.
		if req.PastDate != "" && req.Instructor != "" {
			at, ok := validate.Date(req.PastDate)
			if !ok {
				fail(c, faults.ErrInvalidDate)
				return
			}
			if !actorMatches(c, req.Instructor) {
				return
			}
			if _, err := attendance.BackdateCheckIn(c.Request.Context(), req.Instructor, req.Username, crn, at); err != nil {
				fail(c, err)
				return
			}
		} else {
			if !actorMatches(c, req.Username) {
				return
			}
			if _, err := attendance.CheckIn(c.Request.Context(), req.Username, crn, req.RouterLocation); err != nil {
				fail(c, err)
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"err": false})
	})

	api.POST("/attendanceData", func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			CRN      string `json:"crn"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !actorMatches(c, req.Username) {
			return
		}
		crn, filter := validate.Integer(req.CRN)
		records, err := attendance.History(c.Request.Context(), req.Username, crn, filter)
		if err != nil {
			fail(c, err)
			return
		}
		times := make([]gin.H, 0, len(records))
		for _, rec := range records {
			times = append(times, gin.H{"time": rec.Time})
		}
		c.JSON(http.StatusOK, gin.H{"attendance": times})
	})

	api.POST("/course/summary", func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			CRN      string `json:"crn" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		crn, ok := validate.Integer(req.CRN)
		if !ok {
			fail(c, faults.ErrInvalidInput)
			return
		}
		if !actorMatches(c, req.Username) {
			return
		}
		summary, err := attendance.Summarize(c.Request.Context(), req.Username, crn)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"studentData": summary.PerStudent, "attendanceData": summary.PerDate})
	})

	api.POST("/request/create", func(c *gin.Context) {
		var req struct {
			Username    string `json:"username" binding:"required"`
			CRN         string `json:"crn" binding:"required"`
			MistakeDate string `json:"mistakeDate" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		crn, ok := validate.Integer(req.CRN)
		if !ok {
			fail(c, faults.ErrInvalidInput)
			return
		}
		date, ok := validate.Date(req.MistakeDate)
		if !ok {
			fail(c, faults.ErrInvalidDate)
			return
		}
		if !actorMatches(c, req.Username) {
			return
		}
		if err := requests.Create(c.Request.Context(), req.Username, crn, date); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"msg": "Success"})
	})

	api.POST("/request/view", func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			CRN      string `json:"crn" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		crn, ok := validate.Integer(req.CRN)
		if !ok {
			fail(c, faults.ErrInvalidInput)
			return
		}
		if !actorMatches(c, req.Username) {
			return
		}
		pending, err := requests.View(c.Request.Context(), req.Username, crn)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"requests": pending})
	})

	api.POST("/request/remove", func(c *gin.Context) {
		var req struct {
			Username    string `json:"username" binding:"required"`
			CRN         string `json:"crn" binding:"required"`
			MistakeDate string `json:"mistakeDate" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		crn, ok := validate.Integer(req.CRN)
		if !ok {
			fail(c, faults.ErrInvalidInput)
			return
		}
		date, ok := validate.Date(req.MistakeDate)
		if !ok {
			fail(c, faults.ErrInvalidDate)
			return
		}
		if !actorMatches(c, req.Username) {
			return
		}
		if err := requests.Remove(c.Request.Context(), req.Username, crn, date); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"msg": "Successfully removed request"})
	})

	api.POST("/request/accept", func(c *gin.Context) {
		var req struct {
			Username    string `json:"username" binding:"required"`
			Instructor  string `json:"instructor" binding:"required"`
			CRN         string `json:"crn" binding:"required"`
			MistakeDate string `json:"mistakeDate" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		crn, ok := validate.Integer(req.CRN)
		if !ok {
			fail(c, faults.ErrInvalidInput)
			return
		}
		date, ok := validate.Date(req.MistakeDate)
		if !ok {
			fail(c, faults.ErrInvalidDate)
			return
		}
		if !actorMatches(c, req.Instructor) {
			return
		}
		if err := requests.Accept(c.Request.Context(), req.Instructor, req.Username, crn, date); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"msg": "Successfully accepted request"})
	})

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// actorMatches pins the acting username in the body to the bearer token's
// subject, aborting with 403 on mismatch.
func actorMatches(c *gin.Context, username string) bool {
	claimsAny, _ := c.Get("claims")
	claims, _ := claimsAny.(auth.Claims)
	if claims.Username != "" && claims.Username != username {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user mismatch"})
		return false
	}
	return true
}

// fail translates the core failure taxonomy into HTTP responses.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, faults.ErrInvalidInput), errors.Is(err, faults.ErrInvalidDate):
		status = http.StatusBadRequest
	case errors.Is(err, faults.ErrInvalidPermissions):
		status = http.StatusForbidden
	case errors.Is(err, faults.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, faults.ErrDuplicateUser),
		errors.Is(err, faults.ErrDuplicateRecord),
		errors.Is(err, faults.ErrDuplicateRequest),
		errors.Is(err, faults.ErrAcceptedButNotCleared):
		status = http.StatusConflict
	case errors.Is(err, faults.ErrUpstreamUnavailable),
		errors.Is(err, faults.ErrUpstreamNotJSON),
		errors.Is(err, faults.ErrUpstreamUnparsable):
		status = http.StatusBadGateway
	}
	if !faults.Terminal(err) {
		log.Printf("request failed: %v", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
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

// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/amirphl/charmemo/app/dto"
	"github.com/amirphl/charmemo/app/handlers"
	"github.com/amirphl/charmemo/app/middleware"
	"github.com/amirphl/charmemo/config"
	"github.com/amirphl/charmemo/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/gofiber/fiber/v3/middleware/static"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthPath = "/api/health"

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	Shutdown(timeout time.Duration) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app              *fiber.App
	cfg              *config.ProductionConfig
	characterHandler handlers.CharacterHandlerInterface
	healthHandler    handlers.HealthHandlerInterface
	authMiddleware   *middleware.AuthMiddleware
	accessLog        io.Writer
}

// NewFiberRouter creates a new Fiber router. accessLog receives one JSON line per request; nil means stdout.
func NewFiberRouter(
	cfg *config.ProductionConfig,
	characterHandler handlers.CharacterHandlerInterface,
	healthHandler handlers.HealthHandlerInterface,
	authMiddleware *middleware.AuthMiddleware,
	accessLog io.Writer,
) Router {
	app := fiber.New(fiber.Config{
		AppName:      "charmemo",
		ServerHeader: "charmemo",
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ProxyHeader:  cfg.Server.ProxyHeader,
		TrustProxy:   len(cfg.Server.TrustedProxies) > 0,
		TrustProxyConfig: fiber.TrustProxyConfig{
			Proxies: cfg.Server.TrustedProxies,
		},
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})

	if accessLog == nil {
		accessLog = os.Stdout
	}

	return &FiberRouter{
		app:              app,
		cfg:              cfg,
		characterHandler: characterHandler,
		healthHandler:    healthHandler,
		authMiddleware:   authMiddleware,
		accessLog:        accessLog,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	r.setupMiddleware()

	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.PrometheusPath, adaptor.HTTPHandler(promhttp.Handler()))
	}

	r.app.Get("/api", r.healthHandler.Greeting)

	api := r.app.Group("/api")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthHandler.Health)

	if r.cfg.IsDevelopment() {
		api.Get("/docs", r.getAPIDocumentation)
		log.Println("API documentation enabled for development")
	}

	api.Use(limiter.New(limiter.Config{
		Max:        r.cfg.Security.GlobalRateLimit,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: func(c fiber.Ctx) bool {
			return c.Path() == healthPath
		},
	}))

	writeGuard := r.authMiddleware.RequireWriteToken()

	api.Post("/char", writeGuard, r.characterHandler.CreateCharacter)

	characters := api.Group("/characters")
	characters.Post("/", writeGuard, r.characterHandler.CreateCharacter)
	characters.Get("/", r.characterHandler.ListCharacters)
	characters.Get("/export", r.characterHandler.ExportCharacters)
	characters.Get("/:id", r.characterHandler.GetCharacter)
	characters.Delete("/:id", writeGuard, r.characterHandler.DeleteCharacter)

	// Static files, then JSON 404 for anything left
	r.app.Get("/*", static.New(r.cfg.Server.StaticDir))
	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: uuid.NewString,
	}))

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "0",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             r.cfg.Security.XFrameOptions,
		HSTSMaxAge:                31536000,
		ContentSecurityPolicy:     r.cfg.Security.CSPPolicy,
		ReferrerPolicy:            r.cfg.Security.ReferrerPolicy,
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     r.cfg.Security.AllowedOrigins,
		AllowMethods:     r.cfg.Security.AllowedMethods,
		AllowHeaders:     r.cfg.Security.AllowedHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: r.cfg.Security.AllowCredentials,
		MaxAge:           r.cfg.Security.CORSMaxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
			Next: func(c fiber.Ctx) bool {
				return strings.HasPrefix(c.Path(), r.cfg.Metrics.PrometheusPath)
			},
		}))
	}

	if r.cfg.Logging.EnableAccessLog {
		r.app.Use(logger.New(logger.Config{
			Format:     `{"time":"${time}","pid":"${pid}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${path}","url":"${url}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Stream:     r.accessLog,
			Next: func(c fiber.Ctx) bool {
				return c.Path() == healthPath
			},
		}))
	}

	if r.cfg.Metrics.Enabled {
		r.app.Use(middleware.Metrics())
	}

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				requestid.FromContext(c),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))
}

// Start begins serving on address
func (r *FiberRouter) Start(address string) error {
	return r.app.Listen(address, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown stops accepting connections and waits for in-flight requests up to timeout
func (r *FiberRouter) Shutdown(timeout time.Duration) error {
	return r.app.ShutdownWithTimeout(timeout)
}

// GetApp returns the fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) getAPIDocumentation(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "API documentation",
		Data:    GetRouteDocumentation(),
	})
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errCode := "INTERNAL_ERROR"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		if code < fiber.StatusInternalServerError {
			message = fiberErr.Message
			errCode = "REQUEST_ERROR"
		}
	}

	log.Printf("Error %d: %v", code, err)

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNowUnix(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// GetRouteDocumentation returns API documentation
func GetRouteDocumentation() []map[string]any {
	return []map[string]any{
		{
			"method":      "GET",
			"path":        "/api",
			"description": "Greeting",
		},
		{
			"method":      "POST",
			"path":        "/api/characters",
			"description": "Create a character (alias: POST /api/char); JSON or urlencoded body",
			"parameters": map[string]any{
				"name":   "string (required) - unique, 1-255 characters after trimming",
				"health": "integer (optional) - >= 0, defaults to 500",
				"power":  "integer (optional) - >= 0, defaults to 100",
			},
		},
		{
			"method":      "GET",
			"path":        "/api/characters",
			"description": "List all characters ordered by id",
		},
		{
			"method":      "GET",
			"path":        "/api/characters/export",
			"description": "Download all characters as an Excel workbook",
		},
		{
			"method":      "GET",
			"path":        "/api/characters/:id",
			"description": "Get a character by id",
		},
		{
			"method":      "DELETE",
			"path":        "/api/characters/:id",
			"description": "Delete a character by id",
		},
		{
			"method":      "GET",
			"path":        healthPath,
			"description": "Storage health",
		},
	}
}

package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/otp-service/internal/api/handlers"
	"github.com/andresuchdata/otp-service/internal/api/middleware"
	"github.com/andresuchdata/otp-service/internal/erpnext"
	"github.com/andresuchdata/otp-service/internal/promise"
	"github.com/andresuchdata/otp-service/internal/service"
)

const Version = "1.0.0"

type Services struct {
	PromiseService *promise.Service
	ApplyService   *service.ApplyService
	ERPNext        *erpnext.Client
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())

	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	var erpnextCheck func(c *gin.Context) bool
	if services.ERPNext != nil {
		client := services.ERPNext
		erpnextCheck = func(c *gin.Context) bool {
			return client.HealthCheck(c.Request.Context())
		}
	}

	promiseHandler := handlers.NewPromiseHandler(services.PromiseService, services.ApplyService, Version, erpnextCheck)

	router.GET("/health", promiseHandler.Health)

	apiGroup := router.Group("/api/v1")
	otpGroup := apiGroup.Group("/otp")
	{
		otpGroup.POST("/promise", promiseHandler.CalculatePromise)
		otpGroup.POST("/apply", promiseHandler.ApplyPromise)
		otpGroup.POST("/procurement-suggest", promiseHandler.SuggestProcurement)
		otpGroup.GET("/health", promiseHandler.Health)
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/otp-service/internal/domain"
	"github.com/andresuchdata/otp-service/internal/promise"
	"github.com/andresuchdata/otp-service/internal/service"
)

type PromiseHandler struct {
	promiseService *promise.Service
	applyService   *service.ApplyService
	version        string
	erpnextCheck   func(c *gin.Context) bool
}

func NewPromiseHandler(promiseService *promise.Service, applyService *service.ApplyService, version string, erpnextCheck func(c *gin.Context) bool) *PromiseHandler {
	return &PromiseHandler{
		promiseService: promiseService,
		applyService:   applyService,
		version:        version,
		erpnextCheck:   erpnextCheck,
	}
}

// CalculatePromise computes a delivery promise for an order.
func (h *PromiseHandler) CalculatePromise(c *gin.Context) {
	var req domain.PromiseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.promiseService.CalculatePromise(c.Request.Context(), req)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}

		var unmet *domain.DesiredDateUnmetError
		if errors.As(err, &unmet) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":             unmet.Error(),
				"desired_date":      unmet.Desired,
				"earliest_possible": unmet.EarliestPossible,
			})
			return
		}

		log.Error().Err(err).Msg("promise calculation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "promise calculation failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ApplyPromise writes a promise back to an ERPNext Sales Order.
func (h *PromiseHandler) ApplyPromise(c *gin.Context) {
	if h.applyService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ERPNext write-back is not configured"})
		return
	}

	var req domain.ApplyPromiseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := h.applyService.ApplyPromise(c.Request.Context(), req)
	status := http.StatusOK
	if resp.Status != "success" {
		status = http.StatusBadGateway
	}
	c.JSON(status, resp)
}

// SuggestProcurement creates a procurement document from shortage lines.
func (h *PromiseHandler) SuggestProcurement(c *gin.Context) {
	if h.applyService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ERPNext write-back is not configured"})
		return
	}

	var req domain.ProcurementSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := h.applyService.CreateProcurementSuggestion(c.Request.Context(), req)
	status := http.StatusOK
	if resp.Status != "success" {
		status = http.StatusBadGateway
	}
	c.JSON(status, resp)
}

// Health reports service liveness and ERPNext connectivity.
func (h *PromiseHandler) Health(c *gin.Context) {
	connected := false
	if h.erpnextCheck != nil {
		connected = h.erpnextCheck(c)
	}

	resp := domain.HealthResponse{
		Status:           "ok",
		Version:          h.version,
		ERPNextConnected: connected,
	}
	if h.erpnextCheck != nil && !connected {
		resp.Status = "degraded"
		resp.Message = "ERPNext is not reachable"
	}
	c.JSON(http.StatusOK, resp)
}

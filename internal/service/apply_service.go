package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/otp-service/internal/domain"
	"github.com/andresuchdata/otp-service/internal/erpnext"
)

// ApplyService writes promise results back to ERPNext: a comment on the Sales
// Order, custom promise fields, and Material Requests for shortages.
type ApplyService struct {
	client *erpnext.Client
}

func NewApplyService(client *erpnext.Client) *ApplyService {
	return &ApplyService{client: client}
}

// ApplyPromise attaches a computed promise to a Sales Order. The write-back is
// best effort per action: a failed comment does not block the field update,
// and partial results are reported in ActionsTaken.
func (s *ApplyService) ApplyPromise(ctx context.Context, req domain.ApplyPromiseRequest) domain.ApplyPromiseResponse {
	action := req.Action
	if action == "" {
		action = "both"
	}

	so, err := s.client.GetSalesOrder(ctx, req.SalesOrderID)
	if err != nil || so == nil {
		detail := fmt.Sprintf("Sales Order %s not found", req.SalesOrderID)
		if err != nil {
			detail = err.Error()
		}
		return domain.ApplyPromiseResponse{
			Status:       "error",
			SalesOrderID: req.SalesOrderID,
			ActionsTaken: []string{},
			Error:        detail,
		}
	}

	actionsTaken := []string{}

	if action == "add_comment" || action == "both" {
		comment := req.CommentText
		if comment == "" {
			comment = fmt.Sprintf(
				"Order Promise Date: %s (Confidence: %s)\nCalculated by OTP Engine.",
				req.PromiseDate, req.Confidence)
		}
		if err := s.client.AddComment(ctx, "Sales Order", req.SalesOrderID, comment); err != nil {
			log.Warn().Err(err).Str("sales_order", req.SalesOrderID).Msg("failed to add comment")
			actionsTaken = append(actionsTaken, fmt.Sprintf("Failed to add comment: %v", err))
		} else {
			actionsTaken = append(actionsTaken, fmt.Sprintf("Added comment to %s", req.SalesOrderID))
		}
	}

	if action == "set_custom_field" || action == "both" {
		err := s.client.UpdateSalesOrderField(ctx, req.SalesOrderID, "custom_otp_promise_date", req.PromiseDate.String())
		if err != nil {
			log.Warn().Err(err).Str("sales_order", req.SalesOrderID).Msg("failed to set custom field")
			actionsTaken = append(actionsTaken, "Custom field not available (may need to create it in ERPNext)")
		} else {
			actionsTaken = append(actionsTaken,
				fmt.Sprintf("Set custom field 'custom_otp_promise_date' to %s", req.PromiseDate))

			// Confidence field may not exist on older sites; ignore failures.
			if err := s.client.UpdateSalesOrderField(ctx, req.SalesOrderID, "custom_otp_confidence", req.Confidence); err == nil {
				actionsTaken = append(actionsTaken,
					fmt.Sprintf("Set custom field 'custom_otp_confidence' to %s", req.Confidence))
			}
		}
	}

	return domain.ApplyPromiseResponse{
		Status:       "success",
		SalesOrderID: req.SalesOrderID,
		ActionsTaken: actionsTaken,
	}
}

// CreateProcurementSuggestion turns shortage lines into an ERPNext document.
// Only Material Requests are supported; draft POs and tasks are future types.
func (s *ApplyService) CreateProcurementSuggestion(ctx context.Context, req domain.ProcurementSuggestionRequest) domain.ProcurementSuggestionResponse {
	suggestionType := req.SuggestionType
	if suggestionType == "" {
		suggestionType = "material_request"
	}

	if suggestionType != "material_request" {
		return domain.ProcurementSuggestionResponse{
			Status:     "error",
			Type:       suggestionType,
			ItemsCount: 0,
			Error:      fmt.Sprintf("Suggestion type '%s' not implemented yet", suggestionType),
		}
	}

	items := make([]erpnext.MaterialRequestItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, erpnext.MaterialRequestItem{
			ItemCode:     item.ItemCode,
			Qty:          item.QtyNeeded,
			ScheduleDate: item.RequiredBy.String(),
			Warehouse:    item.Warehouse,
		})
	}

	name, err := s.client.CreateMaterialRequest(ctx, items, mapPriority(req.Priority))
	if err != nil {
		log.Error().Err(err).Msg("failed to create material request")
		return domain.ProcurementSuggestionResponse{
			Status:     "error",
			Type:       suggestionType,
			ItemsCount: len(req.Items),
			Error:      err.Error(),
		}
	}

	return domain.ProcurementSuggestionResponse{
		Status:       "success",
		SuggestionID: name,
		Type:         suggestionType,
		ItemsCount:   len(req.Items),
		ERPNextURL:   fmt.Sprintf("%s/app/material-request/%s", s.client.BaseURL(), name),
	}
}

func mapPriority(priority string) string {
	switch priority {
	case "HIGH":
		return "High"
	case "LOW":
		return "Low"
	default:
		return "Medium"
	}
}

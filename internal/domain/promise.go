package domain

// DesiredDateMode selects how a computed promise is reconciled against the
// customer's desired delivery date.
type DesiredDateMode string

const (
	// DesiredDateLatestAcceptable treats the desired date as a deadline:
	// the computed promise always stands, on_time reports whether it is met.
	DesiredDateLatestAcceptable DesiredDateMode = "LATEST_ACCEPTABLE"
	// DesiredDateStrictFail rejects the whole calculation when the computed
	// promise misses the desired date.
	DesiredDateStrictFail DesiredDateMode = "STRICT_FAIL"
	// DesiredDateNoEarlyDelivery holds delivery until the desired date when
	// the order could ship earlier.
	DesiredDateNoEarlyDelivery DesiredDateMode = "NO_EARLY_DELIVERY"
)

// PromiseStatus is the overall outcome of a promise calculation.
type PromiseStatus string

const (
	StatusOK                    PromiseStatus = "OK"
	StatusCannotFulfill         PromiseStatus = "CANNOT_FULFILL"
	StatusCannotPromiseReliably PromiseStatus = "CANNOT_PROMISE_RELIABLY"
)

// Confidence is the qualitative trust rating of a promise date.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// SourceType tags the provenance of a fulfillment source.
type SourceType string

const (
	SourceStock         SourceType = "stock"
	SourcePurchaseOrder SourceType = "purchase_order"
)

// ItemRequest is a single line of a promise request.
type ItemRequest struct {
	ItemCode  string  `json:"item_code" binding:"required"`
	Qty       float64 `json:"qty" binding:"required,gt=0"`
	Warehouse string  `json:"warehouse,omitempty"`
}

// PromiseRules are per-call business-rule overrides. Pointer fields
// distinguish "not supplied" (inherit the configured default) from an
// explicit zero or false.
type PromiseRules struct {
	NoWeekends             *bool           `json:"no_weekends,omitempty"`
	CutoffTime             string          `json:"cutoff_time,omitempty"`
	Timezone               string          `json:"timezone,omitempty"`
	LeadTimeBufferDays     *int            `json:"lead_time_buffer_days,omitempty" binding:"omitempty,gte=0"`
	ProcessingLeadTimeDays *int            `json:"processing_lead_time_days,omitempty"`
	DesiredDateMode        DesiredDateMode `json:"desired_date_mode,omitempty"`
}

// PromiseRequest is a request to calculate an order promise date.
type PromiseRequest struct {
	Customer    string        `json:"customer" binding:"required"`
	Items       []ItemRequest `json:"items" binding:"required,min=1,dive"`
	DesiredDate *Date         `json:"desired_date,omitempty"`
	Rules       *PromiseRules `json:"rules,omitempty"`
}

// FulfillmentSource is a quantity drawn from one supply record.
type FulfillmentSource struct {
	Source        SourceType `json:"source"`
	Qty           float64    `json:"qty"`
	AvailableDate Date       `json:"available_date"`
	ShipReadyDate Date       `json:"ship_ready_date"`
	Warehouse     string     `json:"warehouse,omitempty"`
	POID          string     `json:"po_id,omitempty"`
	ExpectedDate  *Date      `json:"expected_date,omitempty"`
}

// ItemPlan is the fulfillment plan for a single item.
type ItemPlan struct {
	ItemCode    string              `json:"item_code"`
	QtyRequired float64             `json:"qty_required"`
	Fulfillment []FulfillmentSource `json:"fulfillment"`
	Shortage    float64             `json:"shortage"`
}

// PromiseOption is a best-effort remediation suggestion.
type PromiseOption struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Impact      string `json:"impact"`
	POID        string `json:"po_id,omitempty"`
}

// PromiseResult is the full outcome of a promise calculation.
// PromiseDate is nil exactly when Status != OK; PromiseDateRaw always carries
// the date the engine computed before desired-date reconciliation.
type PromiseResult struct {
	Status                       PromiseStatus   `json:"status"`
	CanFulfill                   bool            `json:"can_fulfill"`
	PromiseDate                  *Date           `json:"promise_date"`
	PromiseDateRaw               Date            `json:"promise_date_raw"`
	DesiredDate                  *Date           `json:"desired_date,omitempty"`
	DesiredDateMode              DesiredDateMode `json:"desired_date_mode,omitempty"`
	OnTime                       *bool           `json:"on_time"`
	AdjustedDueToNoEarlyDelivery bool            `json:"adjusted_due_to_no_early_delivery"`
	Confidence                   Confidence      `json:"confidence"`
	Plan                         []ItemPlan      `json:"plan"`
	Reasons                      []string        `json:"reasons"`
	Blockers                     []string        `json:"blockers"`
	Options                      []PromiseOption `json:"options"`
}

// ApplyPromiseRequest asks for a computed promise to be written back to a
// Sales Order.
type ApplyPromiseRequest struct {
	SalesOrderID string `json:"sales_order_id" binding:"required"`
	PromiseDate  Date   `json:"promise_date" binding:"required"`
	Confidence   string `json:"confidence" binding:"required"`
	Action       string `json:"action,omitempty"`
	CommentText  string `json:"comment_text,omitempty"`
}

// ApplyPromiseResponse reports which write-back actions succeeded.
type ApplyPromiseResponse struct {
	Status       string   `json:"status"`
	SalesOrderID string   `json:"sales_order_id"`
	ActionsTaken []string `json:"actions_taken"`
	Error        string   `json:"error,omitempty"`
}

// ProcurementItem is one line of a procurement suggestion.
type ProcurementItem struct {
	ItemCode   string  `json:"item_code" binding:"required"`
	QtyNeeded  float64 `json:"qty_needed" binding:"required,gt=0"`
	RequiredBy Date    `json:"required_by" binding:"required"`
	Reason     string  `json:"reason,omitempty"`
	Warehouse  string  `json:"warehouse,omitempty"`
}

// ProcurementSuggestionRequest asks for a procurement document to be created.
type ProcurementSuggestionRequest struct {
	Items          []ProcurementItem `json:"items" binding:"required,min=1,dive"`
	SuggestionType string            `json:"suggestion_type,omitempty"`
	Priority       string            `json:"priority,omitempty"`
}

// ProcurementSuggestionResponse reports the created document.
type ProcurementSuggestionResponse struct {
	Status       string `json:"status"`
	SuggestionID string `json:"suggestion_id"`
	Type         string `json:"type"`
	ItemsCount   int    `json:"items_count"`
	ERPNextURL   string `json:"erpnext_url,omitempty"`
	Error        string `json:"error,omitempty"`
}

// HealthResponse is the service health payload.
type HealthResponse struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	ERPNextConnected bool   `json:"erpnext_connected"`
	Message          string `json:"message,omitempty"`
}

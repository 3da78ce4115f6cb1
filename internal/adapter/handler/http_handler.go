package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yuandi/fulfillment/internal/core/domain"
	"github.com/yuandi/fulfillment/internal/core/service"
	"github.com/yuandi/fulfillment/internal/port"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	defaultListLimit     = 50
	maxListLimit         = 500
)

type HTTPHandler struct {
	inventory *service.InventoryService
	orders    *service.OrderService
	cashbook  *service.CashbookService
	integrity *service.IntegrityValidator
	ping      func(ctx context.Context) error
}

// NewHTTPHandler wires the services. ping backs /health and may be nil.
func NewHTTPHandler(
	inventory *service.InventoryService,
	orders *service.OrderService,
	cashbook *service.CashbookService,
	integrity *service.IntegrityValidator,
	ping func(ctx context.Context) error,
) *HTTPHandler {
	return &HTTPHandler{
		inventory: inventory,
		orders:    orders,
		cashbook:  cashbook,
		integrity: integrity,
		ping:      ping,
	}
}

func (h *HTTPHandler) RegisterProduct(c *gin.Context) {
	var req RegisterProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	p, err := h.inventory.RegisterProduct(c.Request.Context(), service.RegisterProductRequest{
		SKU:               req.SKU,
		Name:              req.Name,
		InitialStock:      req.InitialStock,
		LowStockThreshold: req.LowStockThreshold,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, toProductResponse(*p))
}

func (h *HTTPHandler) ListProducts(c *gin.Context) {
	activeOnly, _ := strconv.ParseBool(c.Query("active_only"))
	products, err := h.inventory.ListProducts(c.Request.Context(), activeOnly)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, toProductResponses(products))
}

func (h *HTTPHandler) ListLowStock(c *gin.Context) {
	products, err := h.inventory.ListLowStock(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, toProductResponses(products))
}

func (h *HTTPHandler) GetProduct(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	p, err := h.inventory.GetProduct(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, toProductResponse(*p))
}

func (h *HTTPHandler) DeactivateProduct(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	if err := h.inventory.DeactivateProduct(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	p, err := h.inventory.GetProduct(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, toProductResponse(*p))
}

func (h *HTTPHandler) CreateInbound(c *gin.Context) {
	var req InboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	in, err := h.inventory.CreateInbound(c.Request.Context(), service.InboundRequest{
		ProductID:     uuid.MustParse(req.ProductID),
		Quantity:      req.Quantity,
		CostCNY:       req.CostCNY,
		ExchangeRate:  req.ExchangeRate,
		TotalCostKRW:  req.TotalCostKRW,
		Supplier:      req.Supplier,
		InvoiceNumber: req.InvoiceNumber,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, toInboundResponse(in))
}

func (h *HTTPHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.OrderItem{
			ProductID: uuid.MustParse(it.ProductID),
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}

	o, err := h.orders.CreateOrder(c.Request.Context(), service.CreateOrderRequest{
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		PCCC:            req.PCCC,
		ShippingAddress: req.ShippingAddress,
		Items:           items,
		TotalAmount:     req.TotalAmount,
		ShippingFee:     req.ShippingFee,
		IdempotencyKey:  c.GetHeader(IdempotencyKeyHeader),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, toOrderResponse(o))
}

func (h *HTTPHandler) ListOrders(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(c, domain.InvalidInput("limit must be a positive integer"))
			return
		}
		limit = min(n, maxListLimit)
	}

	orders, err := h.orders.ListOrders(c.Request.Context(), port.OrderFilter{
		Status: domain.OrderStatus(c.Query("status")),
		Limit:  limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderResponse(&orders[i]))
	}
	ok(c, http.StatusOK, out)
}

func (h *HTTPHandler) GetOrder(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	o, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, toOrderResponse(o))
}

func (h *HTTPHandler) ShipOrder(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req ShipOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	s, err := h.orders.CreateShipment(c.Request.Context(), service.ShipmentRequest{
		OrderID:        id,
		CourierCompany: req.CourierCompany,
		TrackingNumber: req.TrackingNumber,
		ShippingFee:    req.ShippingFee,
		ShippingDate:   req.ShippingDate,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, toShipmentResponse(s))
}

func (h *HTTPHandler) CompleteOrder(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	o, err := h.orders.CompleteOrder(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, toOrderResponse(o))
}

func (h *HTTPHandler) RefundOrder(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req RefundOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	r, err := h.orders.ProcessRefund(c.Request.Context(), service.RefundRequest{
		OrderID:        id,
		Reason:         req.Reason,
		RefundAmount:   req.RefundAmount,
		RefundFee:      req.RefundFee,
		ShippingRefund: req.ShippingRefund,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, toRefundResponse(r))
}

func (h *HTTPHandler) GetCashbook(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	ctx := c.Request.Context()

	balance, err := h.cashbook.Balance(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	entries, err := h.cashbook.ListTransactions(ctx, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := CashbookResponse{Balance: balance, Transactions: make([]CashbookEntryResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Transactions = append(resp.Transactions, toCashbookEntryResponse(e))
	}
	ok(c, http.StatusOK, resp)
}

func (h *HTTPHandler) RecordAdjustment(c *gin.Context) {
	var req AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	e, err := h.cashbook.RecordAdjustment(c.Request.Context(), req.Amount, req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, toCashbookEntryResponse(*e))
}

// ValidateIntegrity always answers 200; violations are part of the report.
func (h *HTTPHandler) ValidateIntegrity(c *gin.Context) {
	report, err := h.integrity.ValidateSystemIntegrity(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, report)
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, domain.InvalidInput("invalid id "+strconv.Quote(c.Param("id"))))
		return uuid.Nil, false
	}
	return id, true
}

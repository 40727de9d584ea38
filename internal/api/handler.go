package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"vintrade-orders/internal/apperr"
	"vintrade-orders/internal/models"
	"vintrade-orders/internal/service"
	"vintrade-orders/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	orders     *service.OrderWorkflowService
	stock      *service.StockWorkflowService
	recovery   *service.AdminRecoveryService
	dashboards *service.DashboardService
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orders *service.OrderWorkflowService,
	stock *service.StockWorkflowService,
	recovery *service.AdminRecoveryService,
	dashboards *service.DashboardService,
) *Handler {
	return &Handler{
		orders:     orders,
		stock:      stock,
		recovery:   recovery,
		dashboards: dashboards,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders", h.createDraft)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.GET("/orders/:id/timeline", h.getTimeline)
		v1.POST("/orders/:id/items", h.addLineItem)
		v1.POST("/orders/:id/submit", h.submit)
		v1.POST("/orders/:id/review", h.startReview)
		v1.POST("/orders/:id/approve", h.approve)
		v1.POST("/orders/:id/request-revision", h.requestRevision)
		v1.POST("/orders/:id/assign-distributor", h.assignDistributor)
		v1.POST("/orders/:id/verification/partner", h.partnerVerification)
		v1.POST("/orders/:id/verification/distributor", h.distributorVerification)
		v1.POST("/orders/:id/payment-step", h.paymentStep)
		v1.POST("/orders/:id/fulfillment-step", h.fulfillmentStep)
		v1.POST("/orders/:id/cancel", h.cancel)
		v1.POST("/orders/:id/admin-reset", h.adminReset)

		v1.PATCH("/orders/:id/items/:itemID/stock", h.updateItemStock)
		v1.POST("/orders/:id/items/stock-bulk", h.bulkUpdateStock)
		v1.POST("/orders/:id/items/confirm-receipt", h.confirmReceipt)

		v1.GET("/dashboard/operator", h.operatorDashboard)
		v1.GET("/dashboard/partner", h.partnerDashboard)
		v1.GET("/dashboard/distributor", h.distributorDashboard)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// actorFrom reads the authenticated actor from the gateway headers. Session
// management is external; by the time a request reaches this service the
// gateway has already authenticated the user.
func actorFrom(c *gin.Context) (models.Actor, bool) {
	actor := models.Actor{
		ID:    c.GetHeader("X-User-ID"),
		Role:  models.Role(c.GetHeader("X-User-Role")),
		OrgID: c.GetHeader("X-Org-ID"),
	}
	if actor.ID == "" || actor.Role == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing actor headers"})
		return models.Actor{}, false
	}
	return actor, true
}

func orderID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return 0, false
	}
	return id, true
}

// respondErr maps the error taxonomy to HTTP statuses.
func respondErr(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindPreconditionFailed, apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindForbidden:
		status = http.StatusForbidden
	case apperr.KindValidationFailed:
		status = http.StatusBadRequest
	}

	body := gin.H{"error": apperr.KindOf(err).String()}
	if status != http.StatusInternalServerError {
		body["details"] = err.Error()
	}
	c.JSON(status, body)
}

func (h *Handler) createDraft(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.CreateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	order, err := h.orders.CreateDraft(c.Request.Context(), actor, &req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) listOrders(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	orders, err := h.orders.ListOrders(c.Request.Context(), actor)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) getOrder(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}
	order, items, err := h.orders.GetOrder(c.Request.Context(), actor, id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "items": items})
}

func (h *Handler) getTimeline(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}
	entries, err := h.orders.GetTimeline(c.Request.Context(), actor, id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timeline": entries})
}

func (h *Handler) addLineItem(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req service.AddLineItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	item, err := h.orders.AddLineItem(c.Request.Context(), actor, id, &req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) submit(c *gin.Context) {
	h.orderAction(c, h.orders.Submit)
}

func (h *Handler) startReview(c *gin.Context) {
	h.orderAction(c, h.orders.StartReview)
}

func (h *Handler) approve(c *gin.Context) {
	h.orderAction(c, h.orders.Approve)
}

func (h *Handler) paymentStep(c *gin.Context) {
	h.orderAction(c, h.orders.RecordPaymentStep)
}

func (h *Handler) fulfillmentStep(c *gin.Context) {
	h.orderAction(c, h.orders.AdvanceFulfillment)
}

func (h *Handler) orderAction(c *gin.Context, fn func(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error)) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}
	order, err := fn(c.Request.Context(), actor, id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) requestRevision(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	order, err := h.orders.RequestRevision(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type assignDistributorRequest struct {
	DistributorID string `json:"distributor_id" binding:"required"`
}

func (h *Handler) assignDistributor(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req assignDistributorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	order, err := h.orders.AssignDistributor(c.Request.Context(), actor, id, req.DistributorID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) partnerVerification(c *gin.Context) {
	h.verification(c, h.orders.RespondPartnerVerification)
}

func (h *Handler) distributorVerification(c *gin.Context) {
	h.verification(c, h.orders.RespondDistributorVerification)
}

func (h *Handler) verification(c *gin.Context, fn func(ctx context.Context, actor models.Actor, orderID int64, req *service.VerificationRequest) (*models.Order, error)) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req service.VerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	order, err := fn(c.Request.Context(), actor, id, &req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) cancel(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	order, err := h.orders.Cancel(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type adminResetRequest struct {
	Target string `json:"target" binding:"required"`
	Notes  string `json:"notes"`
}

func (h *Handler) adminReset(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req adminResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	order, err := h.recovery.ResetVerification(c.Request.Context(), actor, id, models.OrderStatus(req.Target), req.Notes)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) updateItemStock(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}
	itemID, err := strconv.ParseInt(c.Param("itemID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}
	var req service.StockUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	item, err := h.stock.UpdateItemStock(c.Request.Context(), actor, id, itemID, &req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) bulkUpdateStock(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req service.BulkStockUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	items, err := h.stock.BulkUpdateStock(c.Request.Context(), actor, id, &req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) confirmReceipt(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req service.ConfirmReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	items, err := h.stock.ConfirmReceipt(c.Request.Context(), actor, id, &req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) operatorDashboard(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	d, err := h.dashboards.Operator(c.Request.Context(), actor)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) partnerDashboard(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	orgID := c.DefaultQuery("partner_id", actor.OrgID)
	d, err := h.dashboards.Partner(c.Request.Context(), actor, orgID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) distributorDashboard(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	orgID := c.DefaultQuery("distributor_id", actor.OrgID)
	d, err := h.dashboards.Distributor(c.Request.Context(), actor, orgID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

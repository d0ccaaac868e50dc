package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/robertkottelin/equity/internal/auth"
	"github.com/robertkottelin/equity/internal/billing"
	"github.com/robertkottelin/equity/internal/database"
	"github.com/robertkottelin/equity/internal/models"
	"github.com/robertkottelin/equity/internal/valuation"
)

// Repository is the slice of the database layer the handlers need;
// *database.Repo satisfies it.
type Repository interface {
	CreateUser(ctx context.Context, email, passwordHash string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateSubscription(ctx context.Context, userID, customerID, subscriptionID, status string) error

	ListAssets(ctx context.Context, userID string) ([]models.Asset, error)
	CountAssets(ctx context.Context, userID string) (int, error)
	CreateAsset(ctx context.Context, a *models.Asset) error
	UpdateAsset(ctx context.Context, a *models.Asset) error
	DeleteAsset(ctx context.Context, userID, id string) error
}

type Handler struct {
	repo           Repository
	billing        billing.Provider
	tokens         *auth.TokenIssuer
	freeAssetLimit int
	log            *logrus.Logger
}

// NewHandler wires the API handlers. freeAssetLimit caps the number of
// assets an unsubscribed user may hold; <= 0 disables the cap.
func NewHandler(repo Repository, b billing.Provider, tokens *auth.TokenIssuer, freeAssetLimit int, log *logrus.Logger) *Handler {
	return &Handler{repo: repo, billing: b, tokens: tokens, freeAssetLimit: freeAssetLimit, log: log}
}

// Register mounts all routes on r. Everything under /api/equity plus the
// account endpoints require a bearer token.
func (h *Handler) Register(r *gin.Engine) {
	api := r.Group("/api")
	api.POST("/register", h.RegisterUser)
	api.POST("/login", h.Login)
	api.POST("/logout", h.Logout)

	authed := api.Group("", auth.Middleware(h.tokens))
	authed.GET("/me", h.Me)
	authed.POST("/subscribe", h.Subscribe)
	authed.POST("/cancel-subscription", h.CancelSubscription)
	authed.GET("/check-subscription", h.CheckSubscription)

	equity := authed.Group("/equity")
	equity.GET("/assets", h.ListAssets)
	equity.POST("/assets", h.CreateAsset)
	equity.PUT("/assets/:id", h.UpdateAsset)
	equity.DELETE("/assets/:id", h.DeleteAsset)
	equity.GET("/summary", h.GetSummary)
}

// --- account ---

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func userPayload(u *models.User) gin.H {
	return gin.H{"email": u.Email, "isSubscribed": u.IsSubscribed()}
}

func (h *Handler) RegisterUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.log.Errorf("hash password failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	user, err := h.repo.CreateUser(c.Request.Context(), req.Email, hash)
	if err != nil {
		if errors.Is(err, database.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		h.log.Errorf("create user failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	token, err := h.tokens.Sign(user)
	if err != nil {
		h.log.Errorf("sign token failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "token": token, "user": userPayload(user)})
}

func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}

	user, err := h.repo.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			h.log.Errorf("get user failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	token, err := h.tokens.Sign(user)
	if err != nil {
		h.log.Errorf("sign token failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "token": token, "user": userPayload(user)})
}

// Logout is stateless on the server; tokens expire on their own. The client
// clears its persisted token and cached data.
func (h *Handler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) Me(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, userPayload(user))
}

func (h *Handler) CheckSubscription(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"isSubscribed": user.IsSubscribed()})
}

type subscribeRequest struct {
	PaymentMethodID string `json:"paymentMethodId"`
}

func (h *Handler) Subscribe(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PaymentMethodID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payment method ID is required"})
		return
	}

	sub, err := h.billing.Subscribe(c.Request.Context(), user.Email, user.CustomerID.String, req.PaymentMethodID)
	if err != nil {
		if errors.Is(err, billing.ErrCardDeclined) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "payment method declined", "message": err.Error()})
			return
		}
		h.log.Errorf("subscribe failed for %s: %v", user.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.repo.UpdateSubscription(c.Request.Context(), user.ID, sub.CustomerID, sub.ID, sub.Status); err != nil {
		h.log.Errorf("persist subscription failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "subscriptionId": sub.ID, "status": sub.Status})
}

func (h *Handler) CancelSubscription(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if !user.SubscriptionID.Valid || user.SubscriptionID.String == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no active subscription found"})
		return
	}

	if err := h.billing.Cancel(c.Request.Context(), user.SubscriptionID.String); err != nil {
		h.log.Errorf("cancel subscription failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.repo.UpdateSubscription(c.Request.Context(), user.ID, user.CustomerID.String, user.SubscriptionID.String, "canceled"); err != nil {
		h.log.Errorf("persist cancellation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "subscription canceled successfully"})
}

// --- assets ---

// assetRequest carries the user-entered fields. Pointers distinguish an
// absent numeric from a present zero. Derived metrics are intentionally not
// part of the request; they are always recomputed server-side.
type assetRequest struct {
	SectorType       models.SectorType   `json:"sectorType"`
	SubSector        string              `json:"subSector"`
	Name             string              `json:"name"`
	Price            *decimal.Decimal    `json:"price"`
	AcquisitionPrice *decimal.Decimal    `json:"acquisitionPrice"`
	Amount           *int64              `json:"amount"`
	PE               decimal.NullDecimal `json:"pe"`
	DividendYield    decimal.NullDecimal `json:"dividendYield"`
	Growth1Y         decimal.NullDecimal `json:"growth1y"`
	Growth3Y         decimal.NullDecimal `json:"growth3y"`
	Growth5Y         decimal.NullDecimal `json:"growth5y"`
}

func (r *assetRequest) validate() string {
	switch {
	case r.SectorType == "" || r.Name == "" || r.Price == nil || r.AcquisitionPrice == nil || r.Amount == nil:
		return "sectorType, name, price, acquisitionPrice and amount are required"
	case !r.SectorType.Valid():
		return "sectorType must be one of equity, fund, cash, others"
	case r.Price.IsNegative() || r.AcquisitionPrice.IsNegative():
		return "price and acquisitionPrice must be non-negative"
	case *r.Amount < 0:
		return "amount must be a non-negative integer"
	}
	return ""
}

func (r *assetRequest) toAsset(userID string) models.Asset {
	a := models.Asset{
		UserID:           userID,
		SectorType:       r.SectorType,
		SubSector:        r.SubSector,
		Name:             r.Name,
		Price:            *r.Price,
		AcquisitionPrice: *r.AcquisitionPrice,
		Amount:           *r.Amount,
		PE:               r.PE,
		DividendYield:    r.DividendYield,
		Growth1Y:         r.Growth1Y,
		Growth3Y:         r.Growth3Y,
		Growth5Y:         r.Growth5Y,
	}
	valuation.Apply(&a)
	return a
}

func (h *Handler) ListAssets(c *gin.Context) {
	assets, err := h.repo.ListAssets(c.Request.Context(), auth.UserID(c))
	if err != nil {
		h.log.Errorf("list assets failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"assets": assets})
}

func (h *Handler) CreateAsset(c *gin.Context) {
	var req assetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid asset body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg := req.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if h.freeAssetLimit > 0 && !user.IsSubscribed() {
		n, err := h.repo.CountAssets(c.Request.Context(), user.ID)
		if err != nil {
			h.log.Errorf("count assets failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		if n >= h.freeAssetLimit {
			c.JSON(http.StatusForbidden, gin.H{"error": "free plan asset limit reached; subscribe to add more"})
			return
		}
	}

	asset := req.toAsset(user.ID)
	if err := h.repo.CreateAsset(c.Request.Context(), &asset); err != nil {
		h.log.Errorf("create asset failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "asset": asset})
}

func (h *Handler) UpdateAsset(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
		return
	}

	var req assetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid asset body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg := req.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	asset := req.toAsset(auth.UserID(c))
	asset.ID = id
	if err := h.repo.UpdateAsset(c.Request.Context(), &asset); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
			return
		}
		h.log.Errorf("update asset failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "asset": asset})
}

func (h *Handler) DeleteAsset(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
		return
	}

	if err := h.repo.DeleteAsset(c.Request.Context(), auth.UserID(c), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
			return
		}
		h.log.Errorf("delete asset failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "asset deleted successfully"})
}

func (h *Handler) GetSummary(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	assets, err := h.repo.ListAssets(c.Request.Context(), user.ID)
	if err != nil {
		h.log.Errorf("list assets failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	total, sectors := valuation.Aggregate(assets)
	summary := models.Summary{TotalValue: total, SectorSummary: sectors}
	if user.IsSubscribed() {
		premium := valuation.Premium(assets)
		summary.Premium = &premium
	}
	c.JSON(http.StatusOK, summary)
}

// currentUser resolves the authenticated user or writes the error response
// and returns ok=false.
func (h *Handler) currentUser(c *gin.Context) (*models.User, bool) {
	user, err := h.repo.GetUserByID(c.Request.Context(), auth.UserID(c))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return nil, false
		}
		h.log.Errorf("get user failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return nil, false
	}
	return user, true
}

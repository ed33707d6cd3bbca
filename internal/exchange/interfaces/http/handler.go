package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/response"

	"github.com/wyfcoding/exchange/internal/exchange/application"
	"github.com/wyfcoding/exchange/internal/exchange/domain"
)

// ExchangeHandler HTTP 接口
// 身份由上游网关注入，这里直接信任请求中的 user_id。
type ExchangeHandler struct {
	registry   *application.RegistryService
	ledger     *application.LedgerService
	orders     *application.OrderService
	marketData *application.MarketDataService
}

// NewExchangeHandler 创建 HTTP 接口
func NewExchangeHandler(
	registry *application.RegistryService,
	ledger *application.LedgerService,
	orders *application.OrderService,
	marketData *application.MarketDataService,
) *ExchangeHandler {
	return &ExchangeHandler{
		registry:   registry,
		ledger:     ledger,
		orders:     orders,
		marketData: marketData,
	}
}

// RegisterRoutes 注册路由
func (h *ExchangeHandler) RegisterRoutes(router *gin.RouterGroup) {
	v1 := router.Group("/v1")
	{
		v1.POST("/currencies", h.CreateCurrency)
		v1.GET("/currencies", h.ListCurrencies)
		v1.POST("/instruments", h.CreateInstrument)
		v1.GET("/instruments", h.ListInstruments)
		v1.POST("/users", h.CreateUser)

		v1.GET("/accounts", h.ListAccounts)
		v1.POST("/accounts/deposit", h.Deposit)
		v1.GET("/accounts/:id/transfers", h.ListTransfers)

		v1.POST("/orders", h.OpenOrder)
		v1.DELETE("/orders/:id", h.CancelOrder)
		v1.GET("/orders", h.ListOpenOrders)
		v1.GET("/orders/closed", h.ListClosedOrders)

		v1.GET("/orderbooks/:instrument", h.GetOrderbook)
		v1.GET("/tickers/:instrument", h.GetTicker)
		v1.GET("/vwap/:instrument", h.GetVWAP)
	}
}

// CreateCurrency 创建币种
func (h *ExchangeHandler) CreateCurrency(c *gin.Context) {
	var cmd application.CreateCurrencyCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	currency, err := h.registry.CreateCurrency(c.Request.Context(), cmd)
	if err != nil {
		h.fail(c, "create currency failed", err)
		return
	}
	response.Success(c, currency)
}

// ListCurrencies 查询币种列表
func (h *ExchangeHandler) ListCurrencies(c *gin.Context) {
	currencies, err := h.registry.ListCurrencies(c.Request.Context())
	if err != nil {
		h.fail(c, "list currencies failed", err)
		return
	}
	response.Success(c, currencies)
}

// CreateInstrument 创建交易品种
func (h *ExchangeHandler) CreateInstrument(c *gin.Context) {
	var cmd application.CreateInstrumentCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	instrument, err := h.registry.CreateInstrument(c.Request.Context(), cmd)
	if err != nil {
		h.fail(c, "create instrument failed", err)
		return
	}
	response.Success(c, instrument)
}

// ListInstruments 查询品种列表
func (h *ExchangeHandler) ListInstruments(c *gin.Context) {
	instruments, err := h.registry.ListInstruments(c.Request.Context())
	if err != nil {
		h.fail(c, "list instruments failed", err)
		return
	}
	response.Success(c, instruments)
}

// CreateUser 创建用户
func (h *ExchangeHandler) CreateUser(c *gin.Context) {
	var cmd application.CreateUserCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	user, err := h.registry.CreateUser(c.Request.Context(), cmd)
	if err != nil {
		h.fail(c, "create user failed", err)
		return
	}
	response.Success(c, user)
}

// ListAccounts 查询用户账户
func (h *ExchangeHandler) ListAccounts(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ErrorWithStatus(c, http.StatusBadRequest, "user_id is required", "")
		return
	}
	accounts, err := h.ledger.ListAccounts(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, "list accounts failed", err)
		return
	}
	response.Success(c, accounts)
}

// Deposit 账户入金
func (h *ExchangeHandler) Deposit(c *gin.Context) {
	var cmd application.DepositCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	account, err := h.ledger.Deposit(c.Request.Context(), cmd)
	if err != nil {
		h.fail(c, "deposit failed", err)
		return
	}
	response.Success(c, account)
}

// ListTransfers 分页查询账户流水
func (h *ExchangeHandler) ListTransfers(c *gin.Context) {
	limit, offset := pagination(c)
	transfers, total, err := h.ledger.ListTransfers(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		h.fail(c, "list transfers failed", err)
		return
	}
	response.Success(c, gin.H{"items": transfers, "total": total})
}

// OpenOrder 下单
func (h *ExchangeHandler) OpenOrder(c *gin.Context) {
	var cmd application.OpenOrderCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	order, err := h.orders.OpenOrder(c.Request.Context(), cmd)
	if err != nil {
		if order != nil {
			// 订单已受理但后续撮合失败，返回订单并携带错误说明。
			logging.Error(c.Request.Context(), "post-open processing failed", "order_id", order.ID, "error", err)
			response.Success(c, gin.H{"order": order, "warning": err.Error()})
			return
		}
		h.fail(c, "open order failed", err)
		return
	}
	response.Success(c, order)
}

// CancelOrder 撤单
func (h *ExchangeHandler) CancelOrder(c *gin.Context) {
	closed, err := h.orders.CancelOrder(c.Request.Context(), c.Query("user_id"), c.Param("id"), c.Query("message"))
	if err != nil {
		h.fail(c, "cancel order failed", err)
		return
	}
	response.Success(c, closed)
}

// ListOpenOrders 分页查询挂单
func (h *ExchangeHandler) ListOpenOrders(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ErrorWithStatus(c, http.StatusBadRequest, "user_id is required", "")
		return
	}
	limit, offset := pagination(c)
	orders, total, err := h.orders.ListOpenOrders(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.fail(c, "list open orders failed", err)
		return
	}
	response.Success(c, gin.H{"items": orders, "total": total})
}

// ListClosedOrders 分页查询历史订单
func (h *ExchangeHandler) ListClosedOrders(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ErrorWithStatus(c, http.StatusBadRequest, "user_id is required", "")
		return
	}
	limit, offset := pagination(c)
	orders, total, err := h.orders.ListClosedOrders(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.fail(c, "list closed orders failed", err)
		return
	}
	response.Success(c, gin.H{"items": orders, "total": total})
}

// GetOrderbook 查询订单簿
func (h *ExchangeHandler) GetOrderbook(c *gin.Context) {
	book, err := h.marketData.GetOrderbook(c.Request.Context(), c.Param("instrument"))
	if err != nil {
		h.fail(c, "get orderbook failed", err)
		return
	}
	if book == nil {
		response.ErrorWithStatus(c, http.StatusNotFound, "orderbook not found", "")
		return
	}
	response.Success(c, gin.H{
		"instrument_id": book.InstrumentID,
		"buy":           book.BuySide(),
		"sell":          book.SellSide(),
		"updated_at":    book.UpdatedAt,
	})
}

// GetTicker 查询最优报价
func (h *ExchangeHandler) GetTicker(c *gin.Context) {
	ticker, err := h.marketData.GetTicker(c.Request.Context(), c.Param("instrument"))
	if err != nil {
		h.fail(c, "get ticker failed", err)
		return
	}
	if ticker == nil {
		response.ErrorWithStatus(c, http.StatusNotFound, "ticker not found", "")
		return
	}
	response.Success(c, ticker)
}

// GetVWAP 加权均价估算
func (h *ExchangeHandler) GetVWAP(c *gin.Context) {
	volume, err := decimal.NewFromString(c.Query("volume"))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid volume", "")
		return
	}
	query := application.VWAPQuery{
		InstrumentID: c.Param("instrument"),
		Side:         domain.OrderSide(c.Query("side")),
		Volume:       volume,
	}
	if query.Side != domain.OrderSideBuy && query.Side != domain.OrderSideSell {
		response.ErrorWithStatus(c, http.StatusBadRequest, "side must be buy or sell", "")
		return
	}
	result, err := h.orders.EstimateVWAP(c.Request.Context(), query)
	if err != nil {
		h.fail(c, "estimate vwap failed", err)
		return
	}
	response.Success(c, result)
}

func (h *ExchangeHandler) fail(c *gin.Context, msg string, err error) {
	logging.Error(c.Request.Context(), msg, "error", err)

	var de *domain.Error
	if errors.As(err, &de) {
		response.ErrorWithStatus(c, statusForCode(de.Code), de.Message, de.Code)
		return
	}
	response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
}

func statusForCode(code string) int {
	switch code {
	case domain.ErrCodeOrderNotFound, domain.ErrCodeUserNotFound,
		domain.ErrCodeCurrencyNotFound, domain.ErrCodeInstrumentNotFound,
		domain.ErrCodeAccountNotFound,
		domain.ErrCodeTraderBaseAccountNotFound, domain.ErrCodeTraderQuoteAccountNotFound,
		domain.ErrCodeBrokerBaseAccountNotFound, domain.ErrCodeBrokerQuoteAccountNotFound:
		return http.StatusNotFound
	case domain.ErrCodeInvalidQuantity, domain.ErrCodeNotEnoughBalance,
		domain.ErrCodeMarketOrderFokAndIocOnly, domain.ErrCodePositiveVolumeExpected:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

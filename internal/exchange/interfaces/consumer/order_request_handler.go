package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/wyfcoding/exchange/internal/exchange/application"
	"github.com/wyfcoding/exchange/internal/exchange/domain"
)

// 外部做市机器人提交订单的入口主题。
const (
	OrderOpenRequestedTopic  = "exchange.order.open.requested"
	OrderCloseRequestedTopic = "exchange.order.close.requested"
)

// CloseOrderRequest 撤单请求消息体
type CloseOrderRequest struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// OrderRequestHandler Kafka 订单入口
// 与 HTTP 接口走同一套下单/撤单操作，消息来源没有任何特殊通道。
type OrderRequestHandler struct {
	orders *application.OrderService
	logger *slog.Logger
}

// NewOrderRequestHandler 创建订单消息处理器
func NewOrderRequestHandler(orders *application.OrderService, logger *slog.Logger) *OrderRequestHandler {
	return &OrderRequestHandler{orders: orders, logger: logger}
}

// Handle 消费一条订单请求消息
// 业务校验失败不重试，直接记日志丢弃；基础设施错误上抛触发重投。
func (h *OrderRequestHandler) Handle(ctx context.Context, msg kafka.Message) error {
	switch msg.Topic {
	case OrderOpenRequestedTopic:
		var cmd application.OpenOrderCommand
		if err := json.Unmarshal(msg.Value, &cmd); err != nil {
			h.logger.ErrorContext(ctx, "failed to unmarshal open order request", "error", err)
			return nil
		}
		order, err := h.orders.OpenOrder(ctx, cmd)
		if err != nil {
			if order != nil || isRejection(err) {
				h.logger.WarnContext(ctx, "open order request rejected", "user_id", cmd.UserID, "error", err)
				return nil
			}
			return err
		}
		return nil
	case OrderCloseRequestedTopic:
		var req CloseOrderRequest
		if err := json.Unmarshal(msg.Value, &req); err != nil {
			h.logger.ErrorContext(ctx, "failed to unmarshal close order request", "error", err)
			return nil
		}
		if _, err := h.orders.CancelOrder(ctx, req.UserID, req.OrderID, req.Message); err != nil {
			if isRejection(err) {
				h.logger.WarnContext(ctx, "close order request rejected", "order_id", req.OrderID, "error", err)
				return nil
			}
			return err
		}
		return nil
	default:
		h.logger.WarnContext(ctx, "unknown order request topic", "topic", msg.Topic)
		return nil
	}
}

// isRejection 业务性拒绝，消息重投也不会成功
func isRejection(err error) bool {
	for _, code := range []string{
		domain.ErrCodeInvalidQuantity,
		domain.ErrCodeMarketOrderFokAndIocOnly,
		domain.ErrCodeNotEnoughBalance,
		domain.ErrCodeOrderNotFound,
		domain.ErrCodeUserNotFound,
		domain.ErrCodeInstrumentNotFound,
		domain.ErrCodeTraderBaseAccountNotFound,
		domain.ErrCodeTraderQuoteAccountNotFound,
		domain.ErrCodeBrokerBaseAccountNotFound,
		domain.ErrCodeBrokerQuoteAccountNotFound,
	} {
		if domain.IsCode(err, code) {
			return true
		}
	}
	return false
}

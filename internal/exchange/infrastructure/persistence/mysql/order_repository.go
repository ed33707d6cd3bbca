package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/exchange/internal/exchange/domain"
)

// orderRepository 挂单仓储实现
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建挂单仓储
func NewOrderRepository(db *gorm.DB) domain.OrderRepository {
	return &orderRepository{db: db}
}

// Save 保存挂单，已存在时更新成交进度与状态
func (r *orderRepository) Save(ctx context.Context, order *domain.Order) error {
	model := toOrderModel(order)
	err := getDB(ctx, r.db).WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "order_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"price", "executed_quantity", "executed_quote_quantity",
			"status", "message",
			"hold_transfer_id", "release_transfer_id", "payout_transfer_id",
			"updated_at",
		}),
	}).Create(model).Error
	if err != nil {
		return err
	}
	order.CreatedAt = model.CreatedAt
	order.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *orderRepository) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	var model OrderModel
	if err := getDB(ctx, r.db).WithContext(ctx).Where("order_id = ?", orderID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toOrder(&model), nil
}

// Delete 物理删除挂单，归档行由 ClosedOrderRepository 负责
func (r *orderRepository) Delete(ctx context.Context, orderID string) error {
	return getDB(ctx, r.db).WithContext(ctx).Unscoped().Where("order_id = ?", orderID).Delete(&OrderModel{}).Error
}

func (r *orderRepository) ListOpen(ctx context.Context) ([]*domain.Order, error) {
	var models []*OrderModel
	if err := getDB(ctx, r.db).WithContext(ctx).Order("created_at asc, id asc").Find(&models).Error; err != nil {
		return nil, err
	}
	return toOrders(models), nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Order, int64, error) {
	db := getDB(ctx, r.db).WithContext(ctx).Model(&OrderModel{}).Where("user_id = ?", userID)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []*OrderModel
	if err := db.Order("id desc").Limit(limit).Offset(offset).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	return toOrders(models), total, nil
}

// FindMatching 查找可与 order 成交的对手挂单
// 价格优先，同价按受理时间先后，卖单按价格升序吃买档的逆序条件。
func (r *orderRepository) FindMatching(ctx context.Context, order *domain.Order) ([]*domain.Order, error) {
	db := getDB(ctx, r.db).WithContext(ctx).
		Where("side = ?", string(order.Side.Opposite())).
		Where("instrument_id = ?", order.InstrumentID).
		Where("user_id <> ?", order.UserID).
		Where("executed_quantity < quantity")

	if order.Side == domain.OrderSideBuy {
		db = db.Where("price <= ?", order.Price.String()).Order("price asc, created_at asc, id asc")
	} else {
		db = db.Where("price >= ?", order.Price.String()).Order("price desc, created_at asc, id asc")
	}

	var models []*OrderModel
	if err := db.Find(&models).Error; err != nil {
		return nil, err
	}
	return toOrders(models), nil
}

// FindSweepable 查找应被平仓的挂单：IOC 订单或已全部成交的订单
func (r *orderRepository) FindSweepable(ctx context.Context) ([]*domain.Order, error) {
	var models []*OrderModel
	err := getDB(ctx, r.db).WithContext(ctx).
		Where("time_in_force = ? OR executed_quantity >= quantity", string(domain.TimeInForceIOC)).
		Order("created_at asc, id asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return toOrders(models), nil
}

func toOrderModel(order *domain.Order) *OrderModel {
	return &OrderModel{
		OrderID:               order.ID,
		InstrumentID:          order.InstrumentID,
		UserID:                order.UserID,
		Type:                  string(order.Type),
		Side:                  string(order.Side),
		TimeInForce:           string(order.TimeInForce),
		Price:                 order.Price.String(),
		Quantity:              order.Quantity.String(),
		ExecutedQuantity:      order.ExecutedQuantity.String(),
		ExecutedQuoteQuantity: order.ExecutedQuoteQuantity.String(),
		Status:                string(order.Status),
		Message:               order.Message,
		ClientBaseAccountID:   order.ClientBaseAccountID,
		ClientQuoteAccountID:  order.ClientQuoteAccountID,
		BrokerBaseAccountID:   order.BrokerBaseAccountID,
		BrokerQuoteAccountID:  order.BrokerQuoteAccountID,
		HoldTransferID:        order.HoldTransferID,
		ReleaseTransferID:     order.ReleaseTransferID,
		PayoutTransferID:      order.PayoutTransferID,
	}
}

func toOrder(model *OrderModel) *domain.Order {
	return &domain.Order{
		ID:                    model.OrderID,
		InstrumentID:          model.InstrumentID,
		UserID:                model.UserID,
		Type:                  domain.OrderType(model.Type),
		Side:                  domain.OrderSide(model.Side),
		TimeInForce:           domain.TimeInForce(model.TimeInForce),
		Price:                 parseDecimal(model.Price),
		Quantity:              parseDecimal(model.Quantity),
		ExecutedQuantity:      parseDecimal(model.ExecutedQuantity),
		ExecutedQuoteQuantity: parseDecimal(model.ExecutedQuoteQuantity),
		Status:                domain.OrderStatus(model.Status),
		Message:               model.Message,
		ClientBaseAccountID:   model.ClientBaseAccountID,
		ClientQuoteAccountID:  model.ClientQuoteAccountID,
		BrokerBaseAccountID:   model.BrokerBaseAccountID,
		BrokerQuoteAccountID:  model.BrokerQuoteAccountID,
		HoldTransferID:        model.HoldTransferID,
		ReleaseTransferID:     model.ReleaseTransferID,
		PayoutTransferID:      model.PayoutTransferID,
		CreatedAt:             model.CreatedAt,
		UpdatedAt:             model.UpdatedAt,
	}
}

func toOrders(models []*OrderModel) []*domain.Order {
	orders := make([]*domain.Order, len(models))
	for i, m := range models {
		orders[i] = toOrder(m)
	}
	return orders
}

// closedOrderRepository 平仓归档仓储实现
type closedOrderRepository struct {
	db *gorm.DB
}

// NewClosedOrderRepository 创建归档仓储
func NewClosedOrderRepository(db *gorm.DB) domain.ClosedOrderRepository {
	return &closedOrderRepository{db: db}
}

// Save 写入归档行
func (r *closedOrderRepository) Save(ctx context.Context, order *domain.ClosedOrder) error {
	model := &ClosedOrderModel{
		OrderID:               order.ID,
		InstrumentID:          order.InstrumentID,
		UserID:                order.UserID,
		Type:                  string(order.Type),
		Side:                  string(order.Side),
		TimeInForce:           string(order.TimeInForce),
		Price:                 order.Price.String(),
		Quantity:              order.Quantity.String(),
		ExecutedQuantity:      order.ExecutedQuantity.String(),
		ExecutedQuoteQuantity: order.ExecutedQuoteQuantity.String(),
		Status:                string(order.Status),
		Message:               order.Message,
		ClientBaseAccountID:   order.ClientBaseAccountID,
		ClientQuoteAccountID:  order.ClientQuoteAccountID,
		BrokerBaseAccountID:   order.BrokerBaseAccountID,
		BrokerQuoteAccountID:  order.BrokerQuoteAccountID,
		HoldTransferID:        order.HoldTransferID,
		ReleaseTransferID:     order.ReleaseTransferID,
		PayoutTransferID:      order.PayoutTransferID,
		OpenedAt:              order.CreatedAt,
		ClosedAt:              order.ClosedAt,
	}
	return getDB(ctx, r.db).WithContext(ctx).Create(model).Error
}

func (r *closedOrderRepository) Get(ctx context.Context, orderID string) (*domain.ClosedOrder, error) {
	var model ClosedOrderModel
	if err := getDB(ctx, r.db).WithContext(ctx).Where("order_id = ?", orderID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toClosedOrder(&model), nil
}

func (r *closedOrderRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.ClosedOrder, int64, error) {
	db := getDB(ctx, r.db).WithContext(ctx).Model(&ClosedOrderModel{}).Where("user_id = ?", userID)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []*ClosedOrderModel
	if err := db.Order("closed_at desc, id desc").Limit(limit).Offset(offset).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	orders := make([]*domain.ClosedOrder, len(models))
	for i, m := range models {
		orders[i] = toClosedOrder(m)
	}
	return orders, total, nil
}

func toClosedOrder(model *ClosedOrderModel) *domain.ClosedOrder {
	return &domain.ClosedOrder{
		Order: domain.Order{
			ID:                    model.OrderID,
			InstrumentID:          model.InstrumentID,
			UserID:                model.UserID,
			Type:                  domain.OrderType(model.Type),
			Side:                  domain.OrderSide(model.Side),
			TimeInForce:           domain.TimeInForce(model.TimeInForce),
			Price:                 parseDecimal(model.Price),
			Quantity:              parseDecimal(model.Quantity),
			ExecutedQuantity:      parseDecimal(model.ExecutedQuantity),
			ExecutedQuoteQuantity: parseDecimal(model.ExecutedQuoteQuantity),
			Status:                domain.OrderStatus(model.Status),
			Message:               model.Message,
			ClientBaseAccountID:   model.ClientBaseAccountID,
			ClientQuoteAccountID:  model.ClientQuoteAccountID,
			BrokerBaseAccountID:   model.BrokerBaseAccountID,
			BrokerQuoteAccountID:  model.BrokerQuoteAccountID,
			HoldTransferID:        model.HoldTransferID,
			ReleaseTransferID:     model.ReleaseTransferID,
			PayoutTransferID:      model.PayoutTransferID,
			CreatedAt:             model.OpenedAt,
			UpdatedAt:             model.UpdatedAt,
		},
		ClosedAt: model.ClosedAt,
	}
}

// tradeRepository 成交记录仓储实现
type tradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository 创建成交记录仓储
func NewTradeRepository(db *gorm.DB) domain.TradeRepository {
	return &tradeRepository{db: db}
}

// Save 写入成交记录
func (r *tradeRepository) Save(ctx context.Context, trade *domain.OrderTrade) error {
	model := &TradeModel{
		TradeID:      trade.ID,
		InstrumentID: trade.InstrumentID,
		BuyOrderID:   trade.BuyOrderID,
		SellOrderID:  trade.SellOrderID,
		Quantity:     trade.Quantity.String(),
		Price:        trade.Price.String(),
	}
	if err := getDB(ctx, r.db).WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	trade.CreatedAt = model.CreatedAt
	return nil
}

func (r *tradeRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.OrderTrade, error) {
	var models []*TradeModel
	err := getDB(ctx, r.db).WithContext(ctx).
		Where("buy_order_id = ? OR sell_order_id = ?", orderID, orderID).
		Order("id asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return toTrades(models), nil
}

func (r *tradeRepository) ListRecent(ctx context.Context, instrumentID string, limit int) ([]*domain.OrderTrade, error) {
	var models []*TradeModel
	err := getDB(ctx, r.db).WithContext(ctx).
		Where("instrument_id = ?", instrumentID).
		Order("id desc").Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return toTrades(models), nil
}

func toTrades(models []*TradeModel) []*domain.OrderTrade {
	trades := make([]*domain.OrderTrade, len(models))
	for i, m := range models {
		trades[i] = &domain.OrderTrade{
			ID:           m.TradeID,
			InstrumentID: m.InstrumentID,
			BuyOrderID:   m.BuyOrderID,
			SellOrderID:  m.SellOrderID,
			Quantity:     parseDecimal(m.Quantity),
			Price:        parseDecimal(m.Price),
			CreatedAt:    m.CreatedAt,
		}
	}
	return trades
}

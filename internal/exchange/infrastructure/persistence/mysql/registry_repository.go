package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/exchange/internal/exchange/domain"
)

// currencyRepository 币种仓储实现
type currencyRepository struct {
	db *gorm.DB
}

// NewCurrencyRepository 创建币种仓储
func NewCurrencyRepository(db *gorm.DB) domain.CurrencyRepository {
	return &currencyRepository{db: db}
}

// Save 保存币种，符号冲突时更新属性
func (r *currencyRepository) Save(ctx context.Context, currency *domain.Currency) error {
	model := &CurrencyModel{
		Code:      currency.Code,
		Type:      string(currency.Type),
		Precision: currency.Precision,
	}
	err := getDB(ctx, r.db).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"type", "precision", "updated_at"}),
	}).Create(model).Error
	if err != nil {
		return err
	}
	currency.ID = model.ID
	currency.CreatedAt = model.CreatedAt
	currency.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *currencyRepository) GetByCode(ctx context.Context, code string) (*domain.Currency, error) {
	var model CurrencyModel
	if err := getDB(ctx, r.db).WithContext(ctx).Where("code = ?", code).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toCurrency(&model), nil
}

func (r *currencyRepository) List(ctx context.Context) ([]*domain.Currency, error) {
	var models []*CurrencyModel
	if err := getDB(ctx, r.db).WithContext(ctx).Order("code asc").Find(&models).Error; err != nil {
		return nil, err
	}
	currencies := make([]*domain.Currency, len(models))
	for i, m := range models {
		currencies[i] = toCurrency(m)
	}
	return currencies, nil
}

func toCurrency(model *CurrencyModel) *domain.Currency {
	return &domain.Currency{
		ID:        model.ID,
		Code:      model.Code,
		Type:      domain.CurrencyType(model.Type),
		Precision: model.Precision,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

// instrumentRepository 交易品种仓储实现
type instrumentRepository struct {
	db *gorm.DB
}

// NewInstrumentRepository 创建品种仓储
func NewInstrumentRepository(db *gorm.DB) domain.InstrumentRepository {
	return &instrumentRepository{db: db}
}

// Save 保存品种，已存在时更新步长
func (r *instrumentRepository) Save(ctx context.Context, instrument *domain.Instrument) error {
	model := &InstrumentModel{
		InstrumentID:      instrument.ID,
		BaseCurrency:      instrument.BaseCurrency,
		QuoteCurrency:     instrument.QuoteCurrency,
		QuantityIncrement: instrument.QuantityIncrement.String(),
	}
	err := getDB(ctx, r.db).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "instrument_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity_increment", "updated_at"}),
	}).Create(model).Error
	if err != nil {
		return err
	}
	instrument.CreatedAt = model.CreatedAt
	instrument.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *instrumentRepository) Get(ctx context.Context, instrumentID string) (*domain.Instrument, error) {
	var model InstrumentModel
	if err := getDB(ctx, r.db).WithContext(ctx).Where("instrument_id = ?", instrumentID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toInstrument(&model), nil
}

func (r *instrumentRepository) GetByCurrencies(ctx context.Context, base, quote string) (*domain.Instrument, error) {
	var model InstrumentModel
	if err := getDB(ctx, r.db).WithContext(ctx).Where("base_currency = ? AND quote_currency = ?", base, quote).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toInstrument(&model), nil
}

func (r *instrumentRepository) List(ctx context.Context) ([]*domain.Instrument, error) {
	var models []*InstrumentModel
	if err := getDB(ctx, r.db).WithContext(ctx).Order("instrument_id asc").Find(&models).Error; err != nil {
		return nil, err
	}
	instruments := make([]*domain.Instrument, len(models))
	for i, m := range models {
		instruments[i] = toInstrument(m)
	}
	return instruments, nil
}

func toInstrument(model *InstrumentModel) *domain.Instrument {
	return &domain.Instrument{
		ID:                model.InstrumentID,
		BaseCurrency:      model.BaseCurrency,
		QuoteCurrency:     model.QuoteCurrency,
		QuantityIncrement: parseDecimal(model.QuantityIncrement),
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}
}

// userRepository 用户仓储实现
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓储
func NewUserRepository(db *gorm.DB) domain.UserRepository {
	return &userRepository{db: db}
}

// Save 保存用户
func (r *userRepository) Save(ctx context.Context, user *domain.User) error {
	model := &UserModel{
		UserID:       user.ID,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		BrokerID:     user.BrokerID,
	}
	err := getDB(ctx, r.db).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"password_hash", "broker_id", "updated_at"}),
	}).Create(model).Error
	if err != nil {
		return err
	}
	user.CreatedAt = model.CreatedAt
	user.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *userRepository) Get(ctx context.Context, userID string) (*domain.User, error) {
	var model UserModel
	if err := getDB(ctx, r.db).WithContext(ctx).Where("user_id = ?", userID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toUser(&model), nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var model UserModel
	if err := getDB(ctx, r.db).WithContext(ctx).Where("username = ?", username).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toUser(&model), nil
}

func toUser(model *UserModel) *domain.User {
	return &domain.User{
		ID:           model.UserID,
		Username:     model.Username,
		PasswordHash: model.PasswordHash,
		BrokerID:     model.BrokerID,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

package mysql

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/exchange/internal/exchange/domain"
)

// 列值统一存为 decimal 字符串，空串按零处理。
func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func getDB(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok {
		return tx
	}
	return db
}

// accountRepository 账户仓储实现
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository 创建账户仓储
func NewAccountRepository(db *gorm.DB) domain.AccountRepository {
	return &accountRepository{db: db}
}

// Save 保存账户，已存在时更新余额
func (r *accountRepository) Save(ctx context.Context, account *domain.Account) error {
	model := toAccountModel(account)
	err := getDB(ctx, r.db).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance", "updated_at"}),
	}).Create(model).Error
	if err != nil {
		return err
	}
	account.CreatedAt = model.CreatedAt
	account.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *accountRepository) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	var model AccountModel
	if err := getDB(ctx, r.db).WithContext(ctx).Where("account_id = ?", accountID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toAccount(&model), nil
}

func (r *accountRepository) GetByUserCurrency(ctx context.Context, userID, currency string) (*domain.Account, error) {
	var model AccountModel
	if err := getDB(ctx, r.db).WithContext(ctx).Where("user_id = ? AND currency = ?", userID, currency).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toAccount(&model), nil
}

func (r *accountRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Account, error) {
	var models []*AccountModel
	if err := getDB(ctx, r.db).WithContext(ctx).Where("user_id = ?", userID).Order("currency asc").Find(&models).Error; err != nil {
		return nil, err
	}
	accounts := make([]*domain.Account, len(models))
	for i, m := range models {
		accounts[i] = toAccount(m)
	}
	return accounts, nil
}

func toAccountModel(account *domain.Account) *AccountModel {
	return &AccountModel{
		AccountID: account.ID,
		UserID:    account.UserID,
		Currency:  account.Currency,
		Balance:   account.Balance.String(),
	}
}

func toAccount(model *AccountModel) *domain.Account {
	return &domain.Account{
		ID:        model.AccountID,
		UserID:    model.UserID,
		Currency:  model.Currency,
		Balance:   parseDecimal(model.Balance),
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

// transferRepository 转账流水仓储实现
type transferRepository struct {
	db *gorm.DB
}

// NewTransferRepository 创建转账流水仓储
func NewTransferRepository(db *gorm.DB) domain.TransferRepository {
	return &transferRepository{db: db}
}

// Save 保存转账流水，流水只增不改
func (r *transferRepository) Save(ctx context.Context, transfer *domain.AccountTransfer) error {
	model := &TransferModel{
		TransferID:       transfer.ID,
		SrcAccountID:     transfer.SrcAccountID,
		DstAccountID:     transfer.DstAccountID,
		SrcBalanceBefore: transfer.SrcBalanceBefore.String(),
		DstBalanceBefore: transfer.DstBalanceBefore.String(),
		Amount:           transfer.Amount.String(),
		Description:      transfer.Description,
	}
	if err := getDB(ctx, r.db).WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	transfer.CreatedAt = model.CreatedAt
	return nil
}

func (r *transferRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.AccountTransfer, int64, error) {
	db := getDB(ctx, r.db).WithContext(ctx).Model(&TransferModel{}).
		Where("src_account_id = ? OR dst_account_id = ?", accountID, accountID)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []*TransferModel
	if err := db.Order("id desc").Limit(limit).Offset(offset).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	transfers := make([]*domain.AccountTransfer, len(models))
	for i, m := range models {
		transfers[i] = &domain.AccountTransfer{
			ID:               m.TransferID,
			SrcAccountID:     m.SrcAccountID,
			DstAccountID:     m.DstAccountID,
			SrcBalanceBefore: parseDecimal(m.SrcBalanceBefore),
			DstBalanceBefore: parseDecimal(m.DstBalanceBefore),
			Amount:           parseDecimal(m.Amount),
			Description:      m.Description,
			CreatedAt:        m.CreatedAt,
		}
	}
	return transfers, total, nil
}

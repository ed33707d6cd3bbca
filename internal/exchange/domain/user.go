package domain

import (
	"context"
	"time"
)

// User 用户
// 经纪商也是用户；普通交易用户通过 BrokerID 归属某个经纪商。
// 经纪商自身的 BrokerID 为空。
type User struct {
	ID           string
	Username     string
	PasswordHash string
	BrokerID     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsBroker 是否为经纪商用户
func (u *User) IsBroker() bool {
	return u.BrokerID == ""
}

// UserRepository 用户仓储接口
type UserRepository interface {
	Save(ctx context.Context, user *User) error
	Get(ctx context.Context, userID string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}

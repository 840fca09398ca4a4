package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	OrderID     string          `gorm:"column:order_id;primaryKey;type:varchar(64)" json:"order_id"`
	UserID      int64           `gorm:"column:user_id;not null;index" json:"user_id"`
	AddressID   int64           `gorm:"column:address_id;not null" json:"address_id"`
	TotalCount  int             `gorm:"column:total_count;not null;default:1" json:"total_count"`
	TotalAmount decimal.Decimal `gorm:"column:total_amount;type:decimal(10,2);not null" json:"total_amount"`
	TransCost   decimal.Decimal `gorm:"column:trans_cost;type:decimal(10,2);not null" json:"trans_cost"`
	PayMethod   PayMethod       `gorm:"column:pay_method;type:smallint;not null;default:1" json:"pay_method"`
	Status      OrderStatus     `gorm:"column:status;type:smallint;not null;default:1" json:"status"`
	TradeID     *string         `gorm:"column:trade_id;type:varchar(100);uniqueIndex" json:"trade_id,omitempty"`
	CreatedAt   time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at" json:"updated_at"`
	Lines       []OrderLine     `gorm:"foreignKey:OrderID;references:OrderID" json:"lines,omitempty"`
}

func (Order) TableName() string {
	return "df_order_info"
}

// OrderLine is one SKU of an order. Price is the unit price at commit time.
type OrderLine struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID   string          `gorm:"column:order_id;type:varchar(64);not null;index" json:"order_id"`
	SKUID     int64           `gorm:"column:sku_id;not null;index" json:"sku_id"`
	Count     int             `gorm:"column:count;not null;default:1" json:"count"`
	Price     decimal.Decimal `gorm:"column:price;type:decimal(10,2);not null" json:"price"`
	Comment   string          `gorm:"column:comment;type:varchar(256);default:''" json:"comment"`
	CreatedAt time.Time       `gorm:"column:created_at" json:"created_at"`
	SKU       *SKU            `gorm:"foreignKey:SKUID" json:"-"`
}

func (OrderLine) TableName() string {
	return "df_order_goods"
}

// Amount returns count * snapshot price.
func (l OrderLine) Amount() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Count)))
}

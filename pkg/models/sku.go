package models

import (
	"github.com/shopspring/decimal"
)

// SKU is a purchasable product variant. Stock and Sales only change through
// a conditional update keyed on the stock value last read.
type SKU struct {
	ID    int64           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name  string          `gorm:"column:name;type:varchar(100);not null" json:"name"`
	Unit  string          `gorm:"column:unit;type:varchar(20)" json:"unit"`
	Price decimal.Decimal `gorm:"column:price;type:decimal(10,2);not null" json:"price"`
	Stock int             `gorm:"column:stock;not null;default:0" json:"stock"`
	Sales int             `gorm:"column:sales;not null;default:0" json:"sales"`
}

func (SKU) TableName() string {
	return "df_goods_sku"
}

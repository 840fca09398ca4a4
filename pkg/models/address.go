package models

import "time"

type Address struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID         int64     `gorm:"column:user_id;not null;index" json:"user_id"`
	ReceiverName   string    `gorm:"column:receiver_name;type:varchar(20);not null" json:"receiver_name"`
	ReceiverMobile string    `gorm:"column:receiver_mobile;type:varchar(11);not null" json:"receiver_mobile"`
	DetailAddr     string    `gorm:"column:detail_addr;type:varchar(256);not null" json:"detail_addr"`
	ZipCode        string    `gorm:"column:zip_code;type:varchar(6)" json:"zip_code"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Address) TableName() string {
	return "df_address"
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/freshmart/pkg/config"
	"github.com/example/freshmart/pkg/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type MySQLStore struct {
	db *gorm.DB
}

func OpenMySQL(cfg *config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func NewMySQLStore(db *gorm.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

func (s *MySQLStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&models.SKU{}, &models.Address{}, &models.Order{}, &models.OrderLine{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *MySQLStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&mysqlTx{db: tx})
	}, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

func (s *MySQLStore) GetSKU(ctx context.Context, id int64) (*models.SKU, error) {
	var sku models.SKU
	if err := s.db.WithContext(ctx).First(&sku, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &sku, nil
}

func (s *MySQLStore) CreateSKU(ctx context.Context, sku *models.SKU) error {
	return s.db.WithContext(ctx).Create(sku).Error
}

func (s *MySQLStore) CreateAddress(ctx context.Context, addr *models.Address) error {
	return s.db.WithContext(ctx).Create(addr).Error
}

func (s *MySQLStore) FindAddress(ctx context.Context, userID, addressID int64) (*models.Address, error) {
	var addr models.Address
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", addressID, userID).
		First(&addr).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &addr, nil
}

func (s *MySQLStore) LatestAddress(ctx context.Context, userID int64) (*models.Address, error) {
	var addr models.Address
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&addr).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &addr, nil
}

func (s *MySQLStore) FindOrder(ctx context.Context, userID int64, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.withLines(s.db.WithContext(ctx)).
		Where("order_id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

func (s *MySQLStore) ListOrders(ctx context.Context, userID int64, offset, limit int) ([]models.Order, int64, error) {
	var total int64
	query := s.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []models.Order
	err := s.withLines(s.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("order_id DESC").
		Offset(offset).
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

func (s *MySQLStore) UpdateOrderStatus(ctx context.Context, orderID string, from, to models.OrderStatus, tradeID *string) (bool, error) {
	updates := map[string]interface{}{"status": to}
	if tradeID != nil {
		updates["trade_id"] = *tradeID
	}

	result := s.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_id = ? AND status = ?", orderID, from).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update order status: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (s *MySQLStore) SaveReviews(ctx context.Context, orderID string, reviews map[int64]string, status models.OrderStatus) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for skuID, content := range reviews {
			err := tx.Model(&models.OrderLine{}).
				Where("order_id = ? AND sku_id = ?", orderID, skuID).
				Update("comment", content).Error
			if err != nil {
				return fmt.Errorf("failed to save review: %w", err)
			}
		}
		err := tx.Model(&models.Order{}).
			Where("order_id = ?", orderID).
			Update("status", status).Error
		if err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		return nil
	})
}

func (s *MySQLStore) withLines(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("sku_id") }).
		Preload("Lines.SKU")
}

type mysqlTx struct {
	db *gorm.DB
}

func (t *mysqlTx) SavePoint(name string) error {
	return t.db.SavePoint(name).Error
}

func (t *mysqlTx) RollbackTo(name string) error {
	return t.db.RollbackTo(name).Error
}

func (t *mysqlTx) ReadSKU(ctx context.Context, id int64) (*models.SKU, error) {
	var sku models.SKU
	if err := t.db.WithContext(ctx).First(&sku, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &sku, nil
}

func (t *mysqlTx) ConditionalUpdate(ctx context.Context, id int64, expectedStock, newStock, newSales int) (int64, error) {
	result := t.db.WithContext(ctx).
		Model(&models.SKU{}).
		Where("id = ? AND stock = ?", id, expectedStock).
		Updates(map[string]interface{}{"stock": newStock, "sales": newSales})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to update sku %d: %w", id, result.Error)
	}
	return result.RowsAffected, nil
}

func (t *mysqlTx) CreateOrder(ctx context.Context, order *models.Order) error {
	return t.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error
}

func (t *mysqlTx) CreateLine(ctx context.Context, line *models.OrderLine) error {
	return t.db.WithContext(ctx).Omit(clause.Associations).Create(line).Error
}

func (t *mysqlTx) UpdateOrderTotals(ctx context.Context, orderID string, totalCount int, totalAmount decimal.Decimal) error {
	return t.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_id = ?", orderID).
		Updates(map[string]interface{}{"total_count": totalCount, "total_amount": totalAmount}).Error
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

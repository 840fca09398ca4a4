package main

import (
	"context"
	"fmt"

	"github.com/example/freshmart/pkg/config"
	"github.com/example/freshmart/pkg/models"
	"github.com/example/freshmart/pkg/repository"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type closableStore interface {
	repository.Store
	Close() error
}

type memoryStore struct {
	*repository.MemoryStore
}

func (memoryStore) Close() error { return nil }

// openStore returns the configured order store, migrated and ready.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (closableStore, error) {
	switch cfg.Storage.Driver {
	case "memory":
		store := memoryStore{repository.NewMemoryStore()}
		if err := seed(ctx, store); err != nil {
			return nil, err
		}
		logger.Warn("Using the in-memory store, data is lost on restart")
		return store, nil

	case "", "mysql":
		store, err := openMySQL(cfg)
		if err != nil {
			return nil, err
		}
		if err := store.AutoMigrate(); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func openMySQL(cfg *config.Config) (*repository.MySQLStore, error) {
	db, err := repository.OpenMySQL(&cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}
	return repository.NewMySQLStore(db), nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the MySQL schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openMySQL(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.AutoMigrate(); err != nil {
				return fmt.Errorf("failed to migrate: %w", err)
			}
			logger.Info("Schema migrated", zap.String("database", cfg.MySQL.Database))
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo catalog and a delivery address for user 1",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openMySQL(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.AutoMigrate(); err != nil {
				return fmt.Errorf("failed to migrate: %w", err)
			}
			if err := seed(cmd.Context(), store); err != nil {
				return err
			}
			logger.Info("Demo data loaded", zap.Int("skus", len(demoCatalog)))
			return nil
		},
	}
}

var demoCatalog = []models.SKU{
	{ID: 1, Name: "Strawberry", Unit: "500g", Price: decimal.RequireFromString("12.50"), Stock: 100},
	{ID: 2, Name: "Kiwi", Unit: "1kg", Price: decimal.RequireFromString("9.90"), Stock: 80},
	{ID: 3, Name: "Prawns", Unit: "400g", Price: decimal.RequireFromString("48.00"), Stock: 20},
	{ID: 4, Name: "Pork belly", Unit: "500g", Price: decimal.RequireFromString("26.80"), Stock: 30},
	{ID: 5, Name: "Eggs", Unit: "12 pcs", Price: decimal.RequireFromString("15.00"), Stock: 50},
	{ID: 6, Name: "Shiitake", Unit: "250g", Price: decimal.RequireFromString("7.60"), Stock: 40},
}

func seed(ctx context.Context, store repository.Store) error {
	for _, sku := range demoCatalog {
		sku := sku
		if _, err := store.GetSKU(ctx, sku.ID); err == nil {
			continue
		}
		if err := store.CreateSKU(ctx, &sku); err != nil {
			return fmt.Errorf("failed to seed sku %d: %w", sku.ID, err)
		}
	}

	if _, err := store.LatestAddress(ctx, 1); err == nil {
		return nil
	}
	return store.CreateAddress(ctx, &models.Address{
		UserID:         1,
		ReceiverName:   "Demo User",
		ReceiverMobile: "13800000000",
		DetailAddr:     "1 Market Street",
		ZipCode:        "100000",
	})
}

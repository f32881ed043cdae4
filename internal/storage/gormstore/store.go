package gormstore

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"cardanoScope/internal/ledger"
	"cardanoScope/internal/model"
	"cardanoScope/internal/normalize"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store is a gorm backed native asset registry.
type Store struct {
	db *gorm.DB
}

// Open connects to the registry database using driver ("postgres" or "sqlite").
func Open(driver, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("registry dsn is required")
	}
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported registry driver: %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open %s registry: %w", driver, err)
	}
	return New(db), nil
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&model.NativeAsset{})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InTx runs fn inside a transaction, committing when fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// WithLookup runs fn with an asset lookup bound to a fresh transaction.
func (s *Store) WithLookup(ctx context.Context, fn func(normalize.AssetLookup) error) error {
	return s.InTx(ctx, func(tx *gorm.DB) error {
		return fn(NewTxLookup(tx))
	})
}

// Register inserts registry rows for pairs inside tx. Pairs already present
// are left unchanged. It returns the rows for all pairs.
func Register(ctx context.Context, tx *gorm.DB, pairs []ledger.AssetPair, firstSlot int64) ([]model.NativeAsset, error) {
	pairs = normalize.DistinctPairs(pairs)
	if len(pairs) == 0 {
		return []model.NativeAsset{}, nil
	}
	rows := make([]model.NativeAsset, 0, len(pairs))
	for _, pair := range pairs {
		rows = append(rows, model.NativeAsset{
			PolicyID:         pair.PolicyID.Bytes(),
			AssetName:        assetName(pair),
			CIP14Fingerprint: pair.Fingerprint(),
			FirstSlot:        firstSlot,
		})
	}
	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "policy_id"}, {Name: "asset_name"}},
			DoNothing: true,
		}).
		Create(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("register native assets: %w", err)
	}
	return NewTxLookup(tx).NativeAssetsByPairs(ctx, pairs)
}

func assetName(pair ledger.AssetPair) []byte {
	if pair.Name == nil {
		return []byte{}
	}
	return pair.Name
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cardanoScope/internal/config"
	"cardanoScope/internal/ledger"
	"cardanoScope/internal/model"
	"cardanoScope/internal/normalize"
	"cardanoScope/internal/storage/gormstore"
	"cardanoScope/internal/storage/postgres"
)

type assetsCommand struct {
	cfg    config.AssetsConfig
	pairs  []ledger.AssetPair
	reg    *registry
	logger *zap.Logger
}

func setupAssets(ctx context.Context, cmd *cobra.Command) (*assetsCommand, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadAssets(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if !cfg.Registry.Enabled() {
		return nil, fmt.Errorf("a registry backend is required")
	}
	pairs, err := cfg.Pairs()
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("at least one asset is required")
	}
	reg, err := openRegistry(ctx, cfg.Registry)
	if err != nil {
		return nil, err
	}
	return &assetsCommand{cfg: cfg, pairs: pairs, reg: reg, logger: logger}, nil
}

func (a *assetsCommand) Close() {
	a.reg.Close()
	_ = a.logger.Sync()
}

func runAssetsResolve(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setupAssets(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var rows []model.NativeAsset
	err = a.reg.WithLookup(ctx, func(lookup normalize.AssetLookup) error {
		var err error
		rows, err = normalize.AssetsFromPairs(ctx, lookup, a.pairs)
		return err
	})
	if err != nil {
		return err
	}

	a.logger.Info("assets resolved",
		zap.Int("requested", len(normalize.DistinctPairs(a.pairs))),
		zap.Int("found", len(rows)),
	)
	return printJSONLines(cmd, rows)
}

func runAssetsImport(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setupAssets(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Migrate {
		if err := a.reg.Migrate(ctx); err != nil {
			return err
		}
	}

	var rows []model.NativeAsset
	if a.reg.pg != nil {
		err = a.reg.pg.InTx(ctx, func(tx pgx.Tx) error {
			if err := postgres.InsertNativeAssets(ctx, tx, newNativeAssets(a.pairs, a.cfg.FirstSlot)); err != nil {
				return err
			}
			var err error
			rows, err = normalize.AssetsFromPairs(ctx, postgres.NewTxLookup(tx), a.pairs)
			return err
		})
	} else {
		err = a.reg.gorm.InTx(ctx, func(tx *gorm.DB) error {
			var err error
			rows, err = gormstore.Register(ctx, tx, a.pairs, a.cfg.FirstSlot)
			return err
		})
	}
	if err != nil {
		return fmt.Errorf("import assets: %w", err)
	}

	a.logger.Info("assets imported",
		zap.String("registry", a.cfg.Registry.Backend),
		zap.String("registry_dsn", redactDSN(a.cfg.Registry.DSN)),
		zap.Int("rows", len(rows)),
	)
	return printJSONLines(cmd, rows)
}

func newNativeAssets(pairs []ledger.AssetPair, firstSlot int64) []model.NativeAsset {
	distinct := normalize.DistinctPairs(pairs)
	assets := make([]model.NativeAsset, 0, len(distinct))
	for _, pair := range distinct {
		name := pair.Name
		if name == nil {
			name = []byte{}
		}
		assets = append(assets, model.NativeAsset{
			PolicyID:         pair.PolicyID.Bytes(),
			AssetName:        name,
			CIP14Fingerprint: pair.Fingerprint(),
			FirstSlot:        firstSlot,
		})
	}
	return assets
}

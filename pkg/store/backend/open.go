// Package backend opens the store.Store implementation for a configured engine.
package backend

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/lisanmuaddib/twitanalysis/pkg/db"
	"github.com/lisanmuaddib/twitanalysis/pkg/store"
	"github.com/lisanmuaddib/twitanalysis/pkg/store/gormstore"
	"github.com/lisanmuaddib/twitanalysis/pkg/store/sqlitestore"
)

// Open connects to the engine named by cfg.Engine and applies migrations
func Open(ctx context.Context, logger *logrus.Logger, cfg db.Config) (store.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Engine {
	case db.EnginePostgres:
		gdb, err := db.SetupDatabase(logger, cfg)
		if err != nil {
			return nil, err
		}
		st, err := gormstore.NewTweetStore(logger, gdb)
		if err != nil {
			return nil, err
		}
		return st, nil
	case db.EngineSQLite:
		st, err := sqlitestore.Open(ctx, logger, cfg.Name)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported storage engine %q", cfg.Engine)
	}
}

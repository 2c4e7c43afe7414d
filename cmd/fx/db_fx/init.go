package db_fx

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"cicerone/internal/infra"
)

var Module = fx.Provide(
	provideDB)

func provideDB(lc fx.Lifecycle) (*gorm.DB, error) {
	db, err := infra.InitPostgresql()
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return infra.ClosePostgresql(db)
		},
	})
	return db, nil
}

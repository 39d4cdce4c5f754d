package mssql

import (
	"context"

	"github.com/ekaya-inc/ekaya-querycache/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-querycache/pkg/config"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        config.DatasourceMSSQL,
			DisplayName: "Microsoft SQL Server",
		},
		Factory: func(ctx context.Context, settings *config.DatasourceConfig) (datasource.QueryExecutor, error) {
			cfg, err := FromSettings(settings)
			if err != nil {
				return nil, err
			}
			return NewQueryExecutor(ctx, cfg)
		},
	})
}

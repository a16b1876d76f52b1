package data

import (
	"fmt"

	"github.com/jhilmilyatra/content-vault-sub004/internal/conf"
	"github.com/jhilmilyatra/content-vault-sub004/internal/pkg/database"
	"github.com/jhilmilyatra/content-vault-sub004/internal/pkg/logger"
	pkgredis "github.com/jhilmilyatra/content-vault-sub004/internal/pkg/redis"
	"github.com/jhilmilyatra/content-vault-sub004/internal/pkg/storagenode"
	uploaddata "github.com/jhilmilyatra/content-vault-sub004/internal/upload/data"
)

// Data 数据层资源集合
type Data struct {
	DB          *database.DB
	TxManager   *database.TransactionManager
	RedisClient *pkgredis.Client
	NodeClient  *storagenode.Client
	Logger      *logger.Logger
}

// NewData 初始化数据层资源，返回清理函数
func NewData(config *conf.Config, log *logger.Logger) (*Data, func(), error) {
	db, err := database.New(&config.Database, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := db.AutoMigrate(
		&uploaddata.UploadSessionPO{},
		&uploaddata.ChunkRecordPO{},
		&uploaddata.FileRecordPO{},
	); err != nil {
		return nil, nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	redisClient, err := pkgredis.New(&config.Redis, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	nodeClient, err := storagenode.New(&config.StorageNode, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init storage node client: %w", err)
	}

	d := &Data{
		DB:          db,
		TxManager:   database.NewTransactionManager(db),
		RedisClient: redisClient,
		NodeClient:  nodeClient,
		Logger:      log,
	}

	cleanup := func() {
		log.Info("cleaning up data resources")

		if err := db.Close(); err != nil {
			log.Error("failed to close database")
		}
		if err := redisClient.Close(); err != nil {
			log.Error("failed to close redis client")
		}
	}

	return d, cleanup, nil
}

// Command unidb serves the SQL, key-value and object backends over HTTP.
//
//	unidb -config unidb.yaml
//
// Backends that cannot be reached at startup stay disconnected; their routes
// answer with empty results and /healthz reports them as down.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/koustreak/unidb/internal/config"
	"github.com/koustreak/unidb/internal/database"
	"github.com/koustreak/unidb/internal/database/mysql"
	"github.com/koustreak/unidb/internal/database/postgres"
	"github.com/koustreak/unidb/internal/filestore"
	"github.com/koustreak/unidb/internal/filestore/minio"
	"github.com/koustreak/unidb/internal/gateway"
	"github.com/koustreak/unidb/internal/kv"
	"github.com/koustreak/unidb/internal/logger"
)

func main() {
	path := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := loadConfig(*path)
	if err != nil {
		logger.Fatal("config: " + err.Error())
	}

	log := logger.New(&cfg.Log)
	logger.SetGlobal(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqlClient := database.NewClient(&cfg.SQL, sqlConn(cfg.SQL.Driver), log)
	if err := sqlClient.Connect(ctx); err != nil {
		log.Log("sql backend unavailable: "+err.Error(), logger.LevelWarn, logger.TagSQL, false)
	}
	defer sqlClient.Disconnect()

	kvClient := kv.New(&cfg.KV, kv.WithLogger(log))
	if err := kvClient.Connect(ctx); err != nil {
		log.Log("kv backend unavailable: "+err.Error(), logger.LevelWarn, logger.TagKV, false)
	}
	defer kvClient.Disconnect()

	objects := openObjects(ctx, &cfg.Object, log)
	defer objects.Close()

	srv := gateway.New(sqlClient, kvClient, objects, log)
	if err := srv.Run(ctx, cfg.HTTP); err != nil {
		log.Log("server stopped: "+err.Error(), logger.LevelCritical, logger.TagHTTP, true)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Parse(nil)
	}
	return config.Load(path)
}

func sqlConn(driver database.Driver) database.Conn {
	if driver == database.DriverPostgres {
		return postgres.New()
	}
	return mysql.New()
}

// openObjects returns a client over MinIO, or a closed client when the
// endpoint cannot be reached.
func openObjects(ctx context.Context, cfg *filestore.Config, log *logger.Logger) *filestore.Client {
	store, err := minio.New(ctx, cfg)
	if err != nil {
		log.Log("object backend unavailable: "+err.Error(), logger.LevelWarn, logger.TagObject, false)
		return filestore.NewClient(nil, cfg.Bucket, log)
	}
	return filestore.NewClient(store, cfg.Bucket, log)
}

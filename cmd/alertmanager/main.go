package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"omnis-alertmanager/internal/archive"
	"omnis-alertmanager/internal/cache"
	"omnis-alertmanager/internal/config"
	"omnis-alertmanager/internal/logging"
	"omnis-alertmanager/internal/provider"
	"omnis-alertmanager/internal/repository"
	"omnis-alertmanager/internal/service"
	"omnis-alertmanager/internal/web"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./configs/config.yaml", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config error: %v", err)
	}
	logging.Init(cfg.Logging.Level)

	// 元数据与记录仓储：配置了 MySQL 用 MySQL，否则内置种子 + 内存仓储
	var (
		metaCache *cache.Engine
		repo      repository.RecordRepository
	)
	if cfg.MySQL.DSN != "" {
		mysqlRepo, err := repository.NewMySQL(cfg.MySQL.DSN)
		if err != nil {
			log.Fatalf("init mysql error: %v", err)
		}
		repo = mysqlRepo
		items, rules, forbids, err := mysqlRepo.LoadMetadata()
		if err != nil {
			logging.Errorf("load metadata from mysql failed, falling back to seed data: %v", err)
			metaCache = cache.FromSeed()
		} else {
			metaCache = cache.New(items, rules, forbids)
		}
	} else {
		logging.Warnf("mysql dsn not configured, using seed metadata and in-memory records")
		metaCache = cache.FromSeed()
		repo = repository.NewMemory()
	}

	var archiver service.Archiver
	if len(cfg.Archive.Addresses) > 0 {
		client, err := archive.NewClient(cfg.Archive)
		if err != nil {
			log.Fatalf("init archive client error: %v", err)
		}
		archiver = client
		logging.Infof("record archive enabled, provider=%s index=%s", cfg.Archive.Provider, cfg.Archive.Index)
	}

	svc := service.New(service.Options{
		Project:               cfg.Server.Project,
		Cache:                 metaCache,
		Repo:                  repo,
		Providers:             provider.Default(cfg.Provider.GetRequestTimeout()),
		Archiver:              archiver,
		SlaveTargets:          cfg.Slave.Targets,
		SendTimeout:           cfg.Provider.GetRequestTimeout(),
		SlaveTimeout:          cfg.Slave.GetTimeout(),
		ResendInterval:        cfg.Scheduler.GetResendInterval(),
		RepeatConfirmInterval: cfg.Scheduler.GetRepeatConfirmInterval(),
		SyncInterval:          cfg.Scheduler.GetSyncInterval(),
	})
	if err := svc.Start(); err != nil {
		log.Fatalf("start schedulers error: %v", err)
	}

	server := web.NewServer(cfg.Server.Listen, cfg.Server.Project, svc)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("web server error: %v", err)
		}
	}()
	logging.Infof("omnis-alertmanager is running, project=%s", cfg.Server.Project)

	// graceful shutdown
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals

	svc.Stop()
	logging.Infof("omnis-alertmanager stopped")
}

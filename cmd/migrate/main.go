// Package main 提供数据库迁移命令行工具
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/MorseWayne/retail_admin/internal/config"
	"github.com/MorseWayne/retail_admin/internal/database"
	"github.com/MorseWayne/retail_admin/internal/logger"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s -action=[up|down|version|force] [options]\n\n", os.Args[0])
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr, `
Examples:
  migrate -action=up
  migrate -action=down -steps=1
  migrate -action=version -target=1
  migrate -action=force -target=0`)
}

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, version, force")
		steps  = flag.Int("steps", 1, "Number of steps for down migration")
		target = flag.Uint("target", 0, "Target version for version or force migration")
		dir    = flag.String("dir", "", "Migrations directory (defaults to MIGRATIONS_DIR)")
	)
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, "migrate", cfg.App.Version)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	migrationsDir := cfg.Migrations.Dir
	if *dir != "" {
		migrationsDir = *dir
	}

	db, err := database.New(cfg, lg)
	if err != nil {
		lg.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	switch *action {
	case "up":
		err = db.RunMigrations(migrationsDir)
	case "down":
		err = db.MigrateDown(migrationsDir, *steps)
	case "version":
		if *target == 0 {
			lg.Fatal("target version must be specified for version migration")
		}
		err = db.MigrateToVersion(migrationsDir, *target)
	case "force":
		// 版本 0 表示回到未迁移状态
		err = db.ForceMigrationVersion(migrationsDir, *target)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		lg.Fatal("migration failed", zap.String("action", *action), zap.Error(err))
	}
	lg.Info("migration finished", zap.String("action", *action), zap.String("dir", migrationsDir))
}

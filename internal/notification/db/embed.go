package db

import "embed"

// Migrations は通知テーブルのマイグレーションSQL。
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir はMigrations内のマイグレーションディレクトリ名。
const MigrationsDir = "migrations"

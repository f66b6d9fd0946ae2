// Package migrations 内嵌数据库迁移脚本
package migrations

import "embed"

// FS 迁移脚本，按 goose 版本号顺序执行
//
//go:embed *.sql
var FS embed.FS

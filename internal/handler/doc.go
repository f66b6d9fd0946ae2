// Package handler 按业务划分子包的 HTTP 处理器
//
// 本文件承载 swag 的全局文档注解，生成命令：
// swag init --dir ./internal/handler --generalInfo doc.go
//
// @title 推广员计划 API
// @version 1.0
// @description 推广员申请审核、推广归因、佣金与提现接口
// @BasePath /
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
package handler

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	flag "github.com/spf13/pflag"

	"github.com/z-wentao/lingoflow/pkg/app"
	"github.com/z-wentao/lingoflow/pkg/config"
	"github.com/z-wentao/lingoflow/pkg/logger"
)

func main() {
	configPath := flag.StringP("config", "c", "config/config.yaml", "配置文件路径")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)
	log.Info("配置加载成功", "path", *configPath)

	// 2. 初始化组件
	a, err := app.New(cfg, log)
	if err != nil {
		log.Error("初始化失败", "err", err)
		os.Exit(1)
	}
	if err := a.Start(); err != nil {
		log.Error("启动后台任务失败", "err", err)
		os.Exit(1)
	}

	// 3. 启动 HTTP 服务器
	gin.SetMode(gin.ReleaseMode)
	server := &Server{
		querier:  a.Dictionary,
		words:    a.LLM,
		records:  a.Records,
		jobs:     a.Jobs,
		queue:    a.Queue,
		audioDir: cfg.TTS.AudioDir,
		maimemo:  a.Maimemo,
		logger:   log.With("component", "api"),
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.setupRouter(),
	}

	go func() {
		log.Info("LingoFlow 服务器启动", "addr", fmt.Sprintf("http://localhost:%d", cfg.Server.Port),
			"storage", cfg.Storage.Type, "queue", cfg.Queue.Type, "workers", cfg.Worker.PoolSize)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("服务器启动失败", "err", err)
			os.Exit(1)
		}
	}()

	// 4. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务器...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("HTTP 服务器关闭超时", "err", err)
	}
	if err := a.Close(); err != nil {
		log.Warn("关闭组件失败", "err", err)
	}
	log.Info("服务器已关闭")
}

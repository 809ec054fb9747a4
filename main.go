package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relayarena/server"
)

// RelayArena 入口：加载配置，启动 Hub 工作协程与 HTTP + WebSocket 服务
func main() {
	cfg, err := server.LoadConfig()
	if err != nil {
		panic(err)
	}
	flag.IntVar(&cfg.Port, "port", cfg.Port, "listen port (overrides PORT)")
	flag.StringVar(&cfg.StaticDir, "static", cfg.StaticDir, "client assets directory")
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	if err := server.InitLogger(cfg.Log); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := server.SetupTracing(ctx, cfg.OTelEndpoint, "relayarena")
	if err != nil {
		server.Log.Warnf("tracing disabled: %v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	app := server.NewApp(cfg)
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		app.Hub().Run(ctx)
	}()

	// 生产模式：不自行监听，由外部宿主挂载 app.Handler()
	if cfg.Production() {
		server.Log.Info("production mode: listener disabled")
		<-ctx.Done()
		<-hubDone
		return
	}

	srv := server.NewHTTPServer(cfg, app.Handler())
	go func() {
		server.Log.Infof("RelayArena listening on %s; open http://localhost%s/", srv.Addr, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	<-ctx.Done()
	server.Log.Info("Shutting down...")
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		server.Log.Warnf("http shutdown: %v", err)
	}
	<-hubDone
}

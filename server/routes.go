package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// App 把 Hub 与 HTTP 接口组装在一起；生产模式下由外部宿主挂载 Handler()
type App struct {
	cfg      Config
	hub      *Hub
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

func NewApp(cfg Config) *App {
	return newApp(cfg, NewHub(cfg))
}

func newApp(cfg Config, hub *Hub) *App {
	a := &App{
		cfg:      cfg,
		hub:      hub,
		upgrader: newUpgrader(cfg),
	}
	a.mux = a.routes()
	return a
}

func (a *App) Hub() *Hub { return a.hub }

func (a *App) Handler() http.Handler { return a.mux }

func (a *App) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(a.cfg.WSPath, a.HandleWS)
	if !strings.HasSuffix(a.cfg.WSPath, "/") {
		mux.HandleFunc(a.cfg.WSPath+"/", a.HandleWS)
	}
	// 浏览器自动请求的图标：空响应
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", a.HandleMetrics)
	mux.HandleFunc("/admin/config", a.HandleAdminConfig)
	// 客户端静态资源；"/" 由 FileServer 返回 index.html
	mux.Handle("/", staticHandler(a.cfg.StaticDir))
	return mux
}

func staticHandler(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".js") {
			w.Header().Set("Content-Type", "application/javascript")
		}
		fs.ServeHTTP(w, r)
	})
}

// NewHTTPServer 带超时设置的 HTTP 服务
func NewHTTPServer(cfg Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/multierr"

	lanpeer "github.com/dep2p/go-lanpeer"
	"github.com/dep2p/go-lanpeer/internal/core/metrics"
	"github.com/dep2p/go-lanpeer/internal/util/logger"
)

var log = logger.Logger("api")

// maxBroadcastBody POST /api/broadcast 请求体上限
const maxBroadcastBody = 1 << 20

// Service 服务器依赖的节点服务
type Service interface {
	Peers() []lanpeer.PeerInfo
	Broadcast(ctx context.Context, payload any) lanpeer.BroadcastResult
}

// Server 本地 HTTP 服务器
type Server struct {
	addr    string
	svc     Service
	hub     *Hub
	metrics *metrics.Metrics

	router   *mux.Router
	upgrader websocket.Upgrader

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

// NewServer 创建服务器，hub 和 m 可以为 nil
func NewServer(addr string, svc Service, hub *Hub, m *metrics.Metrics) (*Server, error) {
	if svc == nil {
		return nil, ErrNilService
	}

	s := &Server{
		addr:    addr,
		svc:     svc,
		hub:     hub,
		metrics: m,
		router:  mux.NewRouter(),
	}
	s.upgrader.ReadBufferSize = 1024
	s.upgrader.WriteBufferSize = 4096
	// 浏览器页面可能来自其他端口
	s.upgrader.CheckOrigin = func(*http.Request) bool { return true }

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.HandleFunc("/api/peers", s.handlePeers).Methods(http.MethodGet)
	s.router.HandleFunc("/api/broadcast", s.handleBroadcast).Methods(http.MethodPost)
	s.router.HandleFunc("/api/events", s.handleEvents).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
}

// Handler 返回路由，用于测试或嵌入其他服务器
func (s *Server) Handler() http.Handler { return s.router }

// ============================================================================
//                              生命周期
// ============================================================================

// Start 绑定地址并在后台提供服务，地址为空时不做任何事
func (s *Server) Start(_ context.Context) error {
	if s.addr == "" {
		log.Info("未配置 HTTP 地址，跳过 HTTP 服务")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return ErrAlreadyStarted
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.srv, s.ln = srv, ln

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP 服务退出", "err", err)
		}
	}()
	log.Info("HTTP 服务已启动", "addr", ln.Addr().String())
	return nil
}

// Stop 关闭服务器和事件中心
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()

	var errs error
	if s.hub != nil {
		errs = multierr.Append(errs, s.hub.Close())
	}
	if srv != nil {
		errs = multierr.Append(errs, srv.Shutdown(ctx))
	}
	return errs
}

// Addr 返回实际监听地址，未启动时为空
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// ============================================================================
//                              处理函数
// ============================================================================

func (s *Server) handlePeers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Peers())
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBroadcastBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return
		}
		log.Debug("读取请求体失败", "remote", r.RemoteAddr, "err", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
		return
	}
	if !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	res := s.svc.Broadcast(r.Context(), json.RawMessage(body))
	log.Debug("HTTP 广播", "peers", res.Peers, "delivered", res.Delivered, "failed", res.Failed)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "events disabled", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("WebSocket 升级失败", "remote", r.RemoteAddr, "err", err)
		return
	}

	c := &client{hub: s.hub, conn: conn, send: make(chan []byte, clientQueueSize)}
	if err := s.hub.register(c); err != nil {
		_ = conn.Close()
		return
	}
	log.Debug("WebSocket 客户端已连接", "remote", r.RemoteAddr)

	go c.writePump()
	go c.readPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("写响应失败", "err", err)
	}
}

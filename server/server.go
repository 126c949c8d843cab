// Package server 是标签生成的 HTTP 外壳：接收序列号上传，返回 base64 预览图与 PDF。
package server

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ByLCY/dmsheet/labels"
)

// DefaultMaxUpload 是上传请求体的默认上限。
const DefaultMaxUpload int64 = 4 << 20

// Options configures a Server.
type Options struct {
	MaxUpload int64 // bytes; <= 0 uses DefaultMaxUpload
	Logger    *zap.Logger
}

// Server routes upload requests to a labels.Generator.
type Server struct {
	gen       *labels.Generator
	maxUpload int64
	logger    *zap.Logger
	mux       *http.ServeMux
}

// New wires the routes. gen must not be nil.
func New(gen *labels.Generator, opts Options) *Server {
	s := &Server{
		gen:       gen,
		maxUpload: opts.MaxUpload,
		logger:    opts.Logger,
		mux:       http.NewServeMux(),
	}
	if s.maxUpload <= 0 {
		s.maxUpload = DefaultMaxUpload
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.mux.HandleFunc("POST /api/upload", s.handleUpload)
	s.mux.HandleFunc("POST /api/document", s.handleDocument)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	return s
}

// Handler returns the root handler with panic recovery and request logging.
func (s *Server) Handler() http.Handler {
	return s.recoverWrapper(s.logRequests(s.mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// Package webui serves the code generator form and a small JSON API on a
// local HTTP port.
package webui

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/sarchlab/doccode/catalog"
	"github.com/sarchlab/doccode/codes"
	"github.com/sarchlab/doccode/webui/web"
)

const (
	shutdownTimeout = 5 * time.Second
	recentCount     = 10
)

// Server turns an allocator into a local web application.
type Server struct {
	allocator *codes.Allocator
	catalog   catalog.Catalog
	logger    *zap.Logger

	host       string
	portNumber int
	sessionID  string

	assets http.FileSystem
	index  *template.Template
}

// NewServer creates a server for the given allocator and options.
func NewServer(allocator *codes.Allocator, cat catalog.Catalog) *Server {
	s := &Server{
		allocator: allocator,
		catalog:   cat,
		logger:    zap.NewNop(),
		host:      "127.0.0.1",
		sessionID: xid.New().String(),
		assets:    web.Assets(),
	}

	s.index = s.mustParseIndex()

	return s
}

// WithLogger sets the logger of the server.
func (s *Server) WithLogger(logger *zap.Logger) *Server {
	if logger != nil {
		s.logger = logger
	}

	return s
}

// WithAddress sets the host and port to listen on. Port 0 picks a free port.
func (s *Server) WithAddress(host string, portNumber int) *Server {
	if portNumber < 0 || portNumber > 65535 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is not valid. Using a random port instead.\n",
			portNumber)
		portNumber = 0
	}

	s.host = host
	s.portNumber = portNumber

	return s
}

func (s *Server) mustParseIndex() *template.Template {
	f, err := s.assets.Open("index.html")
	dieOnErr(err)
	defer f.Close()

	content, err := io.ReadAll(f)
	dieOnErr(err)

	return template.Must(template.New("index").Parse(string(content)))
}

// Router returns the HTTP handler with all routes registered.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.withRequestID)

	r.HandleFunc("/", s.showForm).Methods(http.MethodGet)
	r.HandleFunc("/generate_code/", s.generateCode).Methods(http.MethodPost)

	r.HandleFunc("/api/codes", s.listCodes).Methods(http.MethodGet)
	r.HandleFunc("/api/counters", s.listCounters).Methods(http.MethodGet)
	r.HandleFunc("/api/allocate", s.allocate).Methods(http.MethodPost)
	r.HandleFunc("/api/catalog", s.showCatalog).Methods(http.MethodGet)
	r.HandleFunc("/api/state", s.dumpState).Methods(http.MethodGet)
	r.HandleFunc("/api/resource", s.listResources).Methods(http.MethodGet)
	r.HandleFunc("/api/profile", s.collectProfile).Methods(http.MethodGet)

	r.PathPrefix("/static/").Handler(
		http.StripPrefix("/static/", http.FileServer(s.assets)))

	return r
}

// Listen binds the configured address and prints the URL of the server.
func (s *Server) Listen() (net.Listener, error) {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.portNumber))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	fmt.Fprintf(os.Stderr, "Generating codes with %s\n", URL(listener))

	return listener, nil
}

// URL returns the address a browser should open for the listener.
func URL(listener net.Listener) string {
	addr := listener.Addr().(*net.TCPAddr)

	host := addr.IP.String()
	if addr.IP.IsUnspecified() {
		host = "127.0.0.1"
	}

	return "http://" + net.JoinHostPort(host, strconv.Itoa(addr.Port))
}

// Serve handles requests on the listener until ctx is done, then shuts the
// server down gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(listener)
	}()

	s.logger.Info("Server started",
		zap.String("session", s.sessionID),
		zap.String("address", listener.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), shutdownTimeout)
	defer cancel()

	err := httpServer.Shutdown(shutdownCtx)
	<-errCh

	s.logger.Info("Server stopped", zap.String("session", s.sessionID))

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

type requestIDKey struct{}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := xid.New().String()
		w.Header().Set("X-Request-Id", id)

		s.logger.Debug("Request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))

		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}

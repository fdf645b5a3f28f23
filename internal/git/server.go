package git

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cgi"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapio"
)

// Server serves one repository over the Git smart HTTP protocol.
type Server struct {
	server   *http.Server
	listener net.Listener
	port     int
	path     string
}

// NewServer starts a Git HTTP server for the repository at path. It listens
// on a random localhost port and hands every request to git-http-backend,
// with pushes enabled. It fails if path is not a non-bare repository or git
// is not in PATH.
func NewServer(path string, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var err error
	path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for %q: %w", path, err)
	}

	if _, err := os.Stat(filepath.Join(path, ".git")); err != nil {
		return nil, fmt.Errorf("not a git repository: %q", path)
	}

	git, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git binary not found in PATH: %w", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to create TCP listener on localhost: %w", err)
	}

	logger = logger.With(zap.String("repository", path))
	stderr := &zapio.Writer{Log: logger, Level: zap.DebugLevel}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		h := &cgi.Handler{
			Path: git,
			Args: []string{"-c", "http.receivepack", "http-backend"},
			Dir:  path,
			Env: []string{
				"GIT_PROJECT_ROOT=" + path,
				"PATH_INFO=" + r.URL.Path,
				"QUERY_STRING=" + r.URL.RawQuery,
				"REQUEST_METHOD=" + r.Method,
				"GIT_HTTP_EXPORT_ALL=true",
				"GIT_HTTP_ALLOW_PUSH=true",
			},
			Logger: zap.NewStdLog(logger),
			Stderr: stderr,
		}

		h.ServeHTTP(w, r)
	})

	server := &http.Server{Handler: mux}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("git server stopped", zap.Error(err))
		}
	}()

	_, portString, err := net.SplitHostPort(listener.Addr().String())
	if err != nil {
		server.Close()
		return nil, fmt.Errorf("failed to split listener host/port: %w", err)
	}

	port, err := strconv.Atoi(portString)
	if err != nil {
		server.Close()
		return nil, fmt.Errorf("failed to parse listener port: %w", err)
	}

	logger.Debug("git server listening", zap.Int("port", port))

	return &Server{
		server:   server,
		listener: listener,
		port:     port,
		path:     path,
	}, nil
}

// Port returns the TCP port number that the Git server is listening on.
func (s *Server) Port() int {
	return s.port
}

// URL returns the clone URL of the served repository.
func (s *Server) URL() string {
	return fmt.Sprintf("http://127.0.0.1:%d/.git", s.port)
}

// Path returns the absolute path of the served repository.
func (s *Server) Path() string {
	return s.path
}

// Close stops the server. Closing twice is harmless.
func (s *Server) Close() error {
	err := s.server.Close()
	if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return err
}

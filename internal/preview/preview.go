// Package preview serves the build output locally and rebuilds on content changes.
package preview

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/blogbuilder/internal/build"
	"git.home.luguber.info/inful/blogbuilder/internal/config"
	"git.home.luguber.info/inful/blogbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/blogbuilder/internal/logfields"
	"git.home.luguber.info/inful/blogbuilder/internal/metrics"
)

// DefaultDebounce is the quiet window between the last change and a rebuild.
const DefaultDebounce = 300 * time.Millisecond

// buildStatus tracks the last build result for error display.
type buildStatus struct {
	mu           sync.RWMutex
	lastError    error
	hasGoodBuild bool
}

func (bs *buildStatus) setError(err error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.lastError = err
}

func (bs *buildStatus) setSuccess() {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.lastError = nil
	bs.hasGoodBuild = true
}

func (bs *buildStatus) get() (lastErr error, hasGoodBuild bool) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return bs.lastError, bs.hasGoodBuild
}

// Server rebuilds the site on change and serves the output directory.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prom.Registry
	debounce time.Duration
	builder  *build.Builder
	errs     *errors.HTTPErrorAdapter

	buildMu sync.Mutex
	status  buildStatus
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRegistry records build metrics into reg and exposes them on /metrics.
func WithRegistry(reg *prom.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

func WithDebounce(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// New returns a preview server for cfg.
func New(cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   slog.Default(),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(s)
	}
	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if s.registry != nil {
		recorder = metrics.NewPrometheusRecorder(s.registry)
	}
	s.builder = build.NewBuilder(cfg, build.WithLogger(s.logger), build.WithRecorder(recorder))
	s.errs = errors.NewHTTPErrorAdapter(s.logger)
	return s
}

// Rebuild runs one build. Concurrent calls are serialized.
func (s *Server) Rebuild(ctx context.Context) error {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	if _, err := s.builder.Run(ctx); err != nil {
		s.status.setError(err)
		return err
	}
	s.status.setSuccess()
	return nil
}

// Handler serves the output directory, plus /metrics when a registry is set.
// Until one build succeeds, every page request reports the last build error.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.registry != nil {
		mux.Handle("/metrics", metrics.HTTPHandler(s.registry))
	}
	files := http.FileServer(http.Dir(s.cfg.Output.Directory))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if lastErr, good := s.status.get(); !good && lastErr != nil {
			s.errs.WriteErrorResponse(w, r, lastErr)
			return
		}
		if !s.exists(r.URL.Path) {
			s.errs.WriteErrorResponse(w, r, errors.NotFoundError("page not found").
				WithContext("path", r.URL.Path).
				Build())
			return
		}
		files.ServeHTTP(w, r)
	})
	return mux
}

// exists reports whether urlPath maps to a file or directory in the output.
func (s *Server) exists(urlPath string) bool {
	p := filepath.Join(s.cfg.Output.Directory, filepath.FromSlash(path.Clean("/"+urlPath)))
	_, err := os.Stat(p)
	return err == nil
}

// Run builds once, serves on addr, and rebuilds on content changes until ctx
// is canceled. A failing initial build does not stop the server.
func (s *Server) Run(ctx context.Context, addr string) error {
	if err := s.Rebuild(ctx); err != nil {
		s.logger.Error("Initial build failed", logfields.Error(err))
	}

	watcher, err := s.watch()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WrapError(err, errors.CategoryRuntime, "listen").
			Fatal().
			WithContext("addr", addr).
			Build()
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	s.logger.Info("Preview server listening", logfields.URL(fmt.Sprintf("http://%s", ln.Addr())))

	rebuildReq, trigger := newDebouncer(s.debounce)
	workerDone := s.startRebuildWorker(ctx, rebuildReq)

	loopErr := s.loop(ctx, watcher, trigger, serveErr)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP server shutdown error", logfields.Error(err))
	}
	<-workerDone
	return loopErr
}

// resolveContentRoot returns the absolute content root, which must be an
// existing directory.
func resolveContentRoot(cfg *config.Config) (string, error) {
	if cfg.Content.Root == "" {
		return "", errors.ConfigError("content.root is required").Build()
	}
	root, err := filepath.Abs(cfg.Content.Root)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryConfig, "resolve content root").Build()
	}
	if st, statErr := os.Stat(root); statErr != nil || !st.IsDir() {
		return "", errors.ConfigError("content root not found or not a directory").
			WithContext("path", root).
			Build()
	}
	return root, nil
}

func (s *Server) watch() (*fsnotify.Watcher, error) {
	root, err := resolveContentRoot(s.cfg)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryRuntime, "create watcher").Build()
	}
	s.addDirsRecursive(watcher, root)
	return watcher, nil
}

func (s *Server) loop(ctx context.Context, watcher *fsnotify.Watcher, trigger func(), serveErr <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Shutting down preview server")
			return nil
		case err, ok := <-serveErr:
			if ok && err != nil {
				return errors.WrapError(err, errors.CategoryRuntime, "preview server stopped").Build()
			}
			serveErr = nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.handleEvent(watcher, ev, trigger)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func (s *Server) handleEvent(watcher *fsnotify.Watcher, ev fsnotify.Event, trigger func()) {
	if shouldIgnoreEvent(ev.Name) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			s.addDirsRecursive(watcher, ev.Name)
		}
	}
	s.logger.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	trigger()
}

// startRebuildWorker consumes rebuild requests until ctx is done. The returned
// channel closes when the worker exits.
func (s *Server) startRebuildWorker(ctx context.Context, rebuildReq <-chan struct{}) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-rebuildReq:
				s.logger.Info("Change detected; rebuilding site")
				if err := s.Rebuild(ctx); err != nil {
					s.logger.Warn("Rebuild failed", logfields.Error(err))
				}
			}
		}
	}()
	return done
}

// newDebouncer returns a request channel and a trigger that fires it once
// per quiet window. At most one request is ever pending.
func newDebouncer(window time.Duration) (<-chan struct{}, func()) {
	var mu sync.Mutex
	var timer *time.Timer
	req := make(chan struct{}, 1)

	trigger := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(window, func() {
			select {
			case req <- struct{}{}:
			default:
			}
		})
	}
	return req, trigger
}

func (s *Server) addDirsRecursive(w *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.Add(p); err != nil {
				s.logger.Warn("Watch add failed", logfields.Path(p), logfields.Error(err))
			}
		}
		return nil
	})
}

// shouldIgnoreEvent filters hidden, editor swap and OS metadata files.
func shouldIgnoreEvent(p string) bool {
	base := filepath.Base(p)
	switch {
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(base, "~"), strings.HasSuffix(base, ".swp"), strings.HasSuffix(base, ".swx"):
		return true
	case strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	case base == "Thumbs.db":
		return true
	}
	return false
}

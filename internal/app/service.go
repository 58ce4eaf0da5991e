// Package app wires configuration into the download pipeline. It is shared
// by the HTTP server and the one-shot CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/audit"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/config"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/db"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/layout"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/lock"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/pipeline"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/portal"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/source"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/storage"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/types"
)

// ErrNoCredentials is returned when neither a request token nor configured
// portal credentials are available.
var ErrNoCredentials = errors.New("no SER credentials: send token_ser or configure SER_AUTH_COOKIE or SER_USERNAME/SER_PASSWORD")

// Service runs download requests against the configured backends.
type Service struct {
	cfg    *config.Config
	logger *zap.Logger
	layout *layout.Layout
	locker lock.Locker
	db     *db.DB
	redis  *lock.Redis

	// openPortal and dialSink are replaced in tests.
	openPortal func(ctx context.Context, auth portal.Authenticator) (pipeline.Session, error)
	dialSink   func(ctx context.Context, databaseURL string) (audit.Sink, error)
}

// NewService connects the optional Postgres database and the run lock.
func NewService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Service, error) {
	s := &Service{
		cfg:    cfg,
		logger: logger,
		layout: layout.New(cfg.Download.Path),
		locker: lock.NewMemory(),
	}
	s.openPortal = s.openSession
	s.dialSink = func(ctx context.Context, databaseURL string) (audit.Sink, error) {
		return db.ConnectWorker(ctx, databaseURL)
	}

	if cfg.Database.URL != "" {
		database, err := db.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = database
	}

	if cfg.Lock.RedisURL != "" {
		r, err := lock.NewRedisFromURL(ctx, cfg.Lock.RedisURL)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.redis = r
		s.locker = r
	}
	return s, nil
}

// Close releases the database pool and the lock client.
func (s *Service) Close() {
	if s.db != nil {
		s.db.Close()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
}

// DB returns the Postgres database, or nil when none is configured.
func (s *Service) DB() *db.DB {
	return s.db
}

// Layout returns the local download tree.
func (s *Service) Layout() *layout.Layout {
	return s.layout
}

// Run resolves the request's case files and downloads them.
func (s *Service) Run(ctx context.Context, req *types.FuresRequest, onProgress pipeline.ProgressCallback) (*pipeline.Summary, error) {
	src, err := s.sourceFor(ctx, req)
	if err != nil {
		return nil, err
	}
	files, err := src.CaseFiles(ctx, source.Filter{IDFrom: req.NitFrom, IDTo: req.NitTo})
	if err != nil {
		return nil, err
	}

	auth, err := s.authenticator(req.TokenSER)
	if err != nil {
		return nil, err
	}

	opts := s.pipelineOptions(req)
	opts.OnProgress = onProgress
	orch := pipeline.New(s.layout, s.factories(auth), s.locker, opts, s.logger)
	if s.db != nil {
		orch.WithRunLog(s.db)
	}
	return orch.Run(ctx, files)
}

// Upload publishes an existing tree under root without running the portal.
func (s *Service) Upload(ctx context.Context, root string) ([]string, []string, error) {
	store, err := s.newStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	l := layout.New(root)
	return storage.NewFanout(store, l, s.fanoutOptions(), s.logger).PublishTree(ctx, root)
}

func (s *Service) sourceFor(ctx context.Context, req *types.FuresRequest) (source.Source, error) {
	if !req.FromDatabase {
		return source.NewStatic(req.CaseFiles()), nil
	}
	switch s.cfg.Source.Driver {
	case config.DriverPostgres:
		if s.db == nil {
			return nil, errors.New("source driver postgres needs DATABASE_URL")
		}
		return s.db, nil
	case config.DriverBigQuery:
		return source.NewBigQuery(ctx, source.BigQueryConfig{
			Project:  s.cfg.Google.Project,
			Dataset:  s.cfg.Google.Dataset,
			Table:    s.cfg.Source.Table,
			Location: s.cfg.Source.Location,
		}, s.cfg.Google.CredentialsFile)
	default:
		return nil, fmt.Errorf("source driver %q cannot serve desde_bd requests", s.cfg.Source.Driver)
	}
}

// authenticator prefers the request token, then the configured cookie, then
// username and password.
func (s *Service) authenticator(token string) (portal.Authenticator, error) {
	switch {
	case token != "":
		return portal.TokenAuthenticator{Token: token}, nil
	case s.cfg.Portal.AuthCookie != "":
		return portal.TokenAuthenticator{Token: s.cfg.Portal.AuthCookie}, nil
	case s.cfg.Portal.Username != "" && s.cfg.Portal.Password != "":
		return portal.PasswordAuthenticator{Username: s.cfg.Portal.Username, Password: s.cfg.Portal.Password}, nil
	default:
		return nil, ErrNoCredentials
	}
}

func (s *Service) factories(auth portal.Authenticator) pipeline.Factories {
	return pipeline.Factories{
		OpenSession: func(ctx context.Context) (pipeline.Session, error) {
			return s.openPortal(ctx, auth)
		},
		NewStore: s.newStore,
		NewSink:  s.newSink,
	}
}

func (s *Service) openSession(ctx context.Context, auth portal.Authenticator) (pipeline.Session, error) {
	session, err := portal.Open(ctx, s.PortalConfig(), s.logger)
	if err != nil {
		return nil, err
	}
	if err := auth.Authenticate(ctx, session); err != nil {
		session.Close()
		return nil, err
	}
	return session, nil
}

func (s *Service) newStore(ctx context.Context) (storage.BlobStore, error) {
	sc := s.cfg.Storage
	switch sc.Driver {
	case config.DriverMinio:
		return storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  sc.Minio.Endpoint,
			AccessKey: sc.Minio.AccessKey,
			SecretKey: sc.Minio.SecretKey,
			Bucket:    sc.Bucket,
			UseSSL:    sc.Minio.UseSSL,
			PublicURL: sc.Minio.PublicURL,
		})
	case config.DriverGCS, "":
		return storage.NewGCSStore(ctx, sc.Bucket, s.cfg.Google.CredentialsFile)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", sc.Driver)
	}
}

func (s *Service) newSink(ctx context.Context) (audit.Sink, error) {
	switch s.cfg.Audit.Driver {
	case config.DriverPostgres:
		// Each worker owns its client; the pipeline closes it at teardown.
		if s.cfg.Database.URL == "" {
			return nil, errors.New("audit driver postgres needs DATABASE_URL")
		}
		return s.dialSink(ctx, s.cfg.Database.URL)
	case config.DriverBigQuery, "":
		return audit.NewBigQuerySink(ctx, audit.BigQueryTable{
			Project: s.cfg.Google.Project,
			Dataset: s.cfg.Google.Dataset,
			Table:   s.cfg.Audit.Table,
		}, s.cfg.Google.CredentialsFile)
	default:
		return nil, fmt.Errorf("unknown audit driver %q", s.cfg.Audit.Driver)
	}
}

// PortalConfig maps the portal section onto a session configuration.
func (s *Service) PortalConfig() portal.Config {
	pc := s.cfg.Portal
	out := portal.DefaultConfig()
	out.BaseURL = pc.BaseURL
	out.QueryURL = pc.QueryURL
	out.LoginURL = pc.LoginURL
	out.Headless = pc.Headless
	if pc.Variant != "" {
		out.Variant = portal.Variant(pc.Variant)
	}
	if pc.AuthTimeout > 0 {
		out.AuthTimeout = pc.AuthTimeout
	}
	if pc.NavigationTimeout > 0 {
		out.NavigationTimeout = pc.NavigationTimeout
	}
	if pc.Settle > 0 {
		out.Settle = pc.Settle
	}
	if pc.DownloadTimeout > 0 {
		out.DownloadTimeout = pc.DownloadTimeout
	}
	return out
}

func (s *Service) fanoutOptions() storage.FanoutOptions {
	opts := storage.DefaultFanoutOptions()
	if s.cfg.Storage.Workers > 0 {
		opts.Workers = s.cfg.Storage.Workers
	}
	if s.cfg.Storage.RatePerSecond >= 0 {
		opts.RatePerSecond = s.cfg.Storage.RatePerSecond
	}
	if s.cfg.Storage.Timeout > 0 {
		opts.Timeout = s.cfg.Storage.Timeout
	}
	return opts
}

func (s *Service) pipelineOptions(req *types.FuresRequest) pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.Section = req.Section
	if opts.Section == "" {
		opts.Section = s.cfg.Download.Section
	}
	if req.Year != nil {
		opts.Year = *req.Year
	}
	opts.Workers = s.cfg.Download.Workers
	opts.CaseTimeout = s.cfg.Download.CaseTimeout
	opts.ResetRoot = s.cfg.Download.ResetRoot
	opts.LockTTL = s.cfg.Lock.TTL
	opts.Fanout = s.fanoutOptions()
	return opts
}

// CLAUDE:SUMMARY Entitlements service: wires the snapshot store and the sheet fetcher, exposes replace/read/fetch operations shared by HTTP and MCP.
// Package entitlements is the EntitleMate relay: it accepts entitlement
// records by webhook or upload, keeps them as one snapshot, and serves them
// back, either from the snapshot or fresh from the published sheet.
package entitlements

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/entitlemate/idgen"
	"github.com/hazyhaar/entitlemate/sheet"
	"github.com/hazyhaar/entitlemate/snapshot"
	"github.com/hazyhaar/entitlemate/snapstore"
)

// Service holds the store and the sheet fetcher for one variant.
type Service struct {
	cfg    *Config
	store  snapstore.Store
	sheet  *sheet.Fetcher
	logger *slog.Logger

	httpClient *http.Client
	newRev     func() string
}

// Option configures a Service.
type Option func(*Service)

// WithStore uses s instead of opening the configured backend. The service
// takes ownership and closes it.
func WithStore(s snapstore.Store) Option { return func(svc *Service) { svc.store = s } }

// WithHTTPClient sets the client used to fetch the sheet.
func WithHTTPClient(c *http.Client) Option { return func(svc *Service) { svc.httpClient = c } }

// New prepares cfg, opens the store and builds the sheet fetcher.
func New(ctx context.Context, cfg *Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	if err := cfg.Prepare(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	svc := &Service{cfg: cfg, logger: logger, newRev: idgen.New}
	for _, o := range opts {
		o(svc)
	}

	fopts := []sheet.Option{sheet.WithLogger(logger)}
	if svc.httpClient != nil {
		fopts = append(fopts, sheet.WithHTTPClient(svc.httpClient))
	}
	f, err := sheet.New(cfg.Sheet, fopts...)
	if err != nil {
		return nil, err
	}
	svc.sheet = f

	if svc.store == nil {
		st, err := snapstore.Open(ctx, cfg.Store, logger)
		if err != nil {
			return nil, fmt.Errorf("entitlements: open store: %w", err)
		}
		svc.store = st
	}

	logger.Info("entitlements: ready",
		"variant", cfg.Variant,
		"store", cfg.Store.Backend,
		"sheet_url", f.URL(),
	)
	return svc, nil
}

// Config returns the prepared configuration.
func (s *Service) Config() *Config { return s.cfg }

// Backend names the store backend in use.
func (s *Service) Backend() string { return s.cfg.Store.Backend }

// Replace swaps the stored snapshot for snap and returns its record count.
func (s *Service) Replace(ctx context.Context, snap snapshot.Snapshot) (int, error) {
	if snap == nil {
		snap = snapshot.Snapshot{}
	}
	if err := s.store.Save(ctx, snap); err != nil {
		return 0, err
	}
	s.logger.Info("entitlements: snapshot replaced",
		"revision", s.newRev(),
		"records", len(snap),
	)
	return len(snap), nil
}

// Snapshot returns the stored snapshot, empty when nothing was saved.
func (s *Service) Snapshot(ctx context.Context) (snapshot.Snapshot, error) {
	return s.store.Load(ctx)
}

// Raw returns the stored bytes verbatim, or snapstore.ErrNotFound.
func (s *Service) Raw(ctx context.Context) ([]byte, error) {
	return s.store.Raw(ctx)
}

// FetchSheet reads the published sheet. It never touches the store.
func (s *Service) FetchSheet(ctx context.Context) (snapshot.Snapshot, error) {
	return s.sheet.Fetch(ctx)
}

// Close releases the store.
func (s *Service) Close() error {
	return s.store.Close()
}

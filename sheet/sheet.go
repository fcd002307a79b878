// CLAUDE:SUMMARY Fetches a published spreadsheet CSV export over HTTP and decodes it into entitlement records keyed by the header row.
// Package sheet reads entitlement records from a spreadsheet published as CSV.
//
// Every Fetch is a fresh GET of the export URL: nothing is cached and nothing
// is retried. A non-2xx answer is an error, never an empty result.
package sheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/entitlemate/horosafe"
	"github.com/hazyhaar/entitlemate/snapshot"
)

// DefaultURL is the published EntitleMate sheet.
const DefaultURL = "https://docs.google.com/spreadsheets/d/e/2PACX-1vQ9CvPr-8TlRsbmDhyye1QWjLCPEq5fy9LK95FLWIAb-Fp-ExtNU9zZpPIcT3M4hkFlKody3HV-CE1-/pub?output=csv"

// ErrUpstream is returned when the sheet host answers with a non-2xx status.
var ErrUpstream = errors.New("sheet: upstream error")

// Config holds the fetch settings.
type Config struct {
	URL         string           `yaml:"url" env:"SHEET_URL"`
	Timeout     time.Duration    `yaml:"timeout" env:"SHEET_TIMEOUT"`
	MaxBytes    int64            `yaml:"max_bytes" env:"SHEET_MAX_BYTES"`
	ShortRows   ShortRowPolicy   `yaml:"short_rows" env:"SHEET_SHORT_ROWS"`
	ExtraFields ExtraFieldPolicy `yaml:"extra_fields" env:"SHEET_EXTRA_FIELDS"`
}

// Defaults fills unset fields.
func (c *Config) Defaults() {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = horosafe.MaxResponseBody
	}
	if c.ShortRows == "" {
		c.ShortRows = ShortRowsNull
	}
	if c.ExtraFields == "" {
		c.ExtraFields = ExtraDrop
	}
}

// Validate checks the URL and the row policies.
func (c *Config) Validate() error {
	if err := horosafe.ValidateHTTPURL(c.URL); err != nil {
		return fmt.Errorf("sheet: url: %w", err)
	}
	return c.Policy().Validate()
}

// Policy returns the CSV row policy part of the config.
func (c *Config) Policy() Policy {
	return Policy{ShortRows: c.ShortRows, ExtraFields: c.ExtraFields}
}

// Fetcher downloads and decodes the sheet.
type Fetcher struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default client. Its Timeout is left alone.
func WithHTTPClient(c *http.Client) Option { return func(f *Fetcher) { f.client = c } }

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(f *Fetcher) { f.logger = l } }

// New returns a Fetcher for cfg after applying defaults and validating.
func New(cfg Config, opts ...Option) (*Fetcher, error) {
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := &Fetcher{cfg: cfg, logger: slog.Default()}
	for _, o := range opts {
		o(f)
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: cfg.Timeout}
	}
	return f, nil
}

// URL returns the export URL being fetched.
func (f *Fetcher) URL() string { return f.cfg.URL }

// Fetch GETs the export and decodes it.
func (f *Fetcher) Fetch(ctx context.Context) (snapshot.Snapshot, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("sheet: new request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sheet: http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: http %d", ErrUpstream, resp.StatusCode)
	}

	body, err := horosafe.LimitedReadAll(resp.Body, f.cfg.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("sheet: read body: %w", err)
	}

	records, err := DecodeBytes(body, f.cfg.Policy())
	if err != nil {
		return nil, err
	}

	f.logger.Debug("sheet: fetched",
		"records", len(records),
		"bytes", len(body),
		"duration", time.Since(start),
	)
	return records, nil
}

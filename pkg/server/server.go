package server

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cuemby/warden/pkg/access"
	"github.com/cuemby/warden/pkg/cid"
	"github.com/cuemby/warden/pkg/events"
	"github.com/cuemby/warden/pkg/keys"
	"github.com/cuemby/warden/pkg/log"
	"github.com/cuemby/warden/pkg/metrics"
	"github.com/cuemby/warden/pkg/schema"
	"github.com/cuemby/warden/pkg/security"
	"github.com/cuemby/warden/pkg/storage"
)

// Server is one directory replica: the entry backend plus the process-wide
// read-mostly caches the write path keeps fresh. At most one write
// transaction is live at a time; read transactions run concurrently.
type Server struct {
	cfg    *Config
	be     storage.Backend
	schema *schema.Registry
	access *access.Registry
	keys   *keys.Store
	sealer *security.Sealer
	broker *events.Broker
	gen    *cid.Generator
	logger zerolog.Logger

	// writeMu serialises write transactions.
	writeMu sync.Mutex
}

// New opens a server over the configured data directory, bootstrapping the
// builtin entries on first start and warming the caches from storage.
func New(cfg *Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	be, err := storage.NewBoltBackend(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open backend: %w", err)
	}

	broker := events.NewBroker()
	broker.Start()

	sealer, err := security.NewSealer(security.DeriveKeyFromDomain(cfg.Domain))
	if err != nil {
		be.Close()
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		be:     be,
		schema: schema.NewRegistry(),
		access: access.NewRegistry(),
		keys:   keys.NewStore(sealer),
		sealer: sealer,
		broker: broker,
		gen:    cid.NewGenerator(cfg.ServerID),
		logger: *log.WithComponent("server"),
	}

	if err := s.bootstrap(); err != nil {
		be.Close()
		return nil, fmt.Errorf("bootstrap failed: %w", err)
	}

	if err := s.warmCaches(); err != nil {
		be.Close()
		return nil, fmt.Errorf("cache warmup failed: %w", err)
	}

	s.logger.Info().
		Str("server_id", cfg.ServerID.String()).
		Str("domain", cfg.Domain).
		Msg("server ready")
	return s, nil
}

// Close shuts the server down.
func (s *Server) Close() error {
	s.broker.Stop()
	return s.be.Close()
}

// Broker exposes the change notification broker.
func (s *Server) Broker() *events.Broker {
	return s.broker
}

// DomainName returns the authority domain.
func (s *Server) DomainName() string {
	return s.cfg.Domain
}

// ServerID returns this replica's uuid.
func (s *Server) ServerID() string {
	return s.cfg.ServerID.String()
}

// Write opens a write transaction. It blocks until any live writer
// finishes; the caller must end it with exactly one of Commit or Abort.
func (s *Server) Write() (*WriteTxn, error) {
	s.writeMu.Lock()

	be, err := s.be.Begin(true)
	if err != nil {
		s.writeMu.Unlock()
		return nil, err
	}

	c := s.gen.Next()
	return &WriteTxn{
		srv:    s,
		be:     be,
		cid:    c,
		schema: s.schema.Snapshot(),
		logger: *log.WithTxnCID(c.String()),
	}, nil
}

// Read opens a read transaction over a stable snapshot of the store.
func (s *Server) Read() (*ReadTxn, error) {
	be, err := s.be.Begin(false)
	if err != nil {
		return nil, err
	}
	return &ReadTxn{srv: s, be: be}, nil
}

// warmCaches rebuilds every process-wide cache from storage, in the same
// order commits reload them.
func (s *Server) warmCaches() error {
	rt, err := s.Read()
	if err != nil {
		return err
	}
	defer rt.End()

	all, err := rt.be.Search(nil, nil)
	if err != nil {
		return err
	}

	live := 0
	for _, e := range all {
		if !e.MaskedRecycledTs() {
			live++
		}
	}
	metrics.EntriesTotal.Set(float64(live))

	if err := s.schema.Reload(all); err != nil {
		return err
	}
	if err := s.access.Reload(all); err != nil {
		return err
	}
	return s.keys.Reload(all)
}

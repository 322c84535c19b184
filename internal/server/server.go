// Package server runs the TCP accept loop that ties the admission
// controller, the sharded store, and per-connection sessions together.
package server

import (
	"errors"
	"net"

	"github.com/rs/zerolog"

	"github.com/joaodiaslobo/sd-kvserver/internal/admission"
	"github.com/joaodiaslobo/sd-kvserver/internal/demux"
	"github.com/joaodiaslobo/sd-kvserver/internal/metrics"
	"github.com/joaodiaslobo/sd-kvserver/internal/session"
	"github.com/joaodiaslobo/sd-kvserver/internal/store"
)

// Server owns the listener and dispatches accepted connections to sessions.
type Server struct {
	listenAddr string
	admission  *admission.Controller
	store      *store.ShardedStore
	metrics    *metrics.Registry
	logger     zerolog.Logger
}

// New creates a Server bound to listenAddr (e.g. ":12345").
func New(listenAddr string, adm *admission.Controller, st *store.ShardedStore, reg *metrics.Registry, logger zerolog.Logger) *Server {
	return &Server{
		listenAddr: listenAddr,
		admission:  adm,
		store:      st,
		metrics:    reg,
		logger:     logger,
	}
}

// Serve listens on the configured address and runs the accept loop until
// the listener errors or is closed from another goroutine.
//
// Admission.Acquire() is called before Accept, not after: a slot is
// reserved first, so a connection that would exceed max_clients is never
// even accepted until one frees — every accepted socket is guaranteed a
// session. This satisfies the spec's admission behavior (a blocked would-be
// client never progresses into its session loop while at capacity) without
// ever holding the admission lock across blocking socket I/O.
func (s *Server) Serve() error {
	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return err
	}
	defer ln.Close()

	s.logger.Info().Str("addr", s.listenAddr).Msg("server: listening")

	for {
		s.admission.Acquire()

		conn, err := ln.Accept()
		if err != nil {
			s.admission.Release()
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error().Err(err).Msg("server: accept failed")
			return err
		}

		if s.metrics != nil {
			s.metrics.ActiveSessions.Inc()
		}

		sess := session.New(demux.New(conn), s.store, s.metrics, s.logger)
		go s.run(sess)
	}
}

func (s *Server) run(sess *session.Session) {
	defer s.admission.Release()
	sess.Run()
}

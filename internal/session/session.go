// Package session runs the per-connection request loop: receive frame,
// decode, dispatch to the store, reply with the same tag and type. One
// Session owns exactly one connection's demultiplexer and is the ReplySink
// deferred get-when waiters bound to it call back into.
package session

import (
	"errors"
	"io"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/joaodiaslobo/sd-kvserver/internal/demux"
	"github.com/joaodiaslobo/sd-kvserver/internal/metrics"
	"github.com/joaodiaslobo/sd-kvserver/internal/store"
	"github.com/joaodiaslobo/sd-kvserver/internal/wire"
)

// Session is one client's demux-receive/decode/execute/demux-send loop. It
// implements store.ReplySink so the store can deliver deferred get-when
// replies directly back over this session's connection.
type Session struct {
	id      uint64
	conn    *demux.Demux
	store   *store.ShardedStore
	metrics *metrics.Registry
	logger  zerolog.Logger

	cancelled atomic.Bool
}

var sessionSeq uint64

// New creates a session bound to conn. store and metrics may be shared
// across every session the server runs.
func New(conn *demux.Demux, st *store.ShardedStore, reg *metrics.Registry, logger zerolog.Logger) *Session {
	id := atomic.AddUint64(&sessionSeq, 1)
	return &Session{
		id:      id,
		conn:    conn,
		store:   st,
		metrics: reg,
		logger:  logger.With().Uint64("session", id).Logger(),
	}
}

// Run executes the receive/decode/execute/send loop until disconnect, EOF,
// or a fatal protocol error. It always returns after the connection is
// closed and the session has been marked cancelled, so any get-when waiters
// still bound to it can observe that and abandon themselves.
func (s *Session) Run() {
	defer s.teardown()

	for {
		frame, err := s.conn.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, demux.ErrClosed) {
				return
			}
			s.logger.Error().Err(err).Msg("session: fatal protocol error, closing connection")
			if s.metrics != nil {
				s.metrics.ErrorsTotal.WithLabelValues("protocol").Inc()
			}
			return
		}

		if !s.dispatch(frame) {
			return
		}
	}
}

// dispatch executes a single request and sends its synchronous reply, if
// any. It returns false when the session loop must stop (Disconnect, a
// malformed request payload, fatal I/O error writing a reply).
func (s *Session) dispatch(frame wire.Frame) bool {
	typeName, ok := requestTypeName(frame.Type)
	if !ok {
		s.logger.Error().Int16("type", frame.Type).Msg("session: unknown request type, ignoring")
		return true
	}
	if s.metrics != nil {
		s.metrics.RequestsTotal.WithLabelValues(typeName).Inc()
	}

	switch frame.Type {
	case wire.TypeAuth:
		return s.handleAuth(frame)
	case wire.TypeRegister:
		return s.handleRegister(frame)
	case wire.TypePut:
		return s.handlePut(frame)
	case wire.TypeGet:
		return s.handleGet(frame)
	case wire.TypeMultiPut:
		return s.handleMultiPut(frame)
	case wire.TypeMultiGet:
		return s.handleMultiGet(frame)
	case wire.TypeGetWhen:
		return s.handleGetWhen(frame)
	case wire.TypeDisconnect:
		return s.handleDisconnect(frame)
	default:
		return true
	}
}

func (s *Session) handleAuth(frame wire.Frame) bool {
	req, err := wire.DecodeAuthRequest(frame.Payload)
	if err != nil {
		s.logger.Error().Err(err).Msg("session: malformed auth payload")
		return false
	}
	ok := s.store.Auth(req.User, req.Password)
	return s.reply(frame.Tag, frame.Type, wire.EncodeBoolReply(ok, true))
}

func (s *Session) handleRegister(frame wire.Frame) bool {
	req, err := wire.DecodeAuthRequest(frame.Payload)
	if err != nil {
		s.logger.Error().Err(err).Msg("session: malformed register payload")
		return false
	}
	ok := s.store.Register(req.User, req.Password)
	return s.reply(frame.Tag, frame.Type, wire.EncodeBoolReply(ok, false))
}

func (s *Session) handlePut(frame wire.Frame) bool {
	req, err := wire.DecodePutRequest(frame.Payload)
	if err != nil {
		s.logger.Error().Err(err).Msg("session: malformed put payload")
		return false
	}
	s.store.Put(req.Key, req.Value)
	return s.reply(frame.Tag, frame.Type, nil)
}

func (s *Session) handleGet(frame wire.Frame) bool {
	key, err := wire.DecodeGetRequest(frame.Payload)
	if err != nil {
		s.logger.Error().Err(err).Msg("session: malformed get payload")
		return false
	}
	value, found := s.store.Get(key)
	return s.reply(frame.Tag, frame.Type, wire.EncodeGetReply(value, found))
}

func (s *Session) handleMultiPut(frame wire.Frame) bool {
	pairs, err := wire.DecodeMultiPutRequest(frame.Payload)
	if err != nil {
		s.logger.Error().Err(err).Msg("session: malformed multi_put payload")
		return false
	}
	storePairs := make([]store.KV, len(pairs))
	for i, kv := range pairs {
		storePairs[i] = store.KV{Key: kv.Key, Value: kv.Value}
	}
	s.store.MultiPut(storePairs)
	return s.reply(frame.Tag, frame.Type, nil)
}

func (s *Session) handleMultiGet(frame wire.Frame) bool {
	keys, err := wire.DecodeMultiGetRequest(frame.Payload)
	if err != nil {
		s.logger.Error().Err(err).Msg("session: malformed multi_get payload")
		return false
	}
	values, found := s.store.MultiGet(keys)
	results := make([]wire.KV, len(keys))
	for i, k := range keys {
		results[i] = wire.KV{Key: k, Value: values[k], Found: found[k]}
	}
	return s.reply(frame.Tag, frame.Type, wire.EncodeMultiGetReply(results))
}

// handleGetWhen registers the wait and, when the predicate already holds,
// sends the synchronous reply itself. Deferred resolution arrives later via
// ReplyGetWhen, from this session's own goroutine or another session's
// waiter goroutine — both paths funnel through s.reply, which is safe for
// concurrent callers since demux.Send is independently guarded.
func (s *Session) handleGetWhen(frame wire.Frame) bool {
	req, err := wire.DecodeGetWhenRequest(frame.Payload)
	if err != nil {
		s.logger.Error().Err(err).Msg("session: malformed get_when payload")
		return false
	}
	if s.metrics != nil {
		s.metrics.GetWhenWaiters.Inc()
	}
	immediate, value, found := s.store.GetWhen(frame.Tag, req.KeyTarget, req.KeyCond, req.ValueCond, s)
	if !immediate {
		return true
	}
	if s.metrics != nil {
		s.metrics.GetWhenWaiters.Dec()
	}
	return s.reply(frame.Tag, wire.TypeGetWhen, wire.EncodeGetReply(value, found))
}

func (s *Session) handleDisconnect(frame wire.Frame) bool {
	s.reply(frame.Tag, frame.Type, nil)
	return false
}

func (s *Session) reply(tag int32, typ int16, payload []byte) bool {
	if err := s.conn.Send(tag, typ, payload); err != nil {
		s.logger.Error().Err(err).Msg("session: fatal error writing reply, closing connection")
		if s.metrics != nil {
			s.metrics.ErrorsTotal.WithLabelValues("write").Inc()
		}
		return false
	}
	return true
}

// ReplyGetWhen implements store.ReplySink for a deferred get-when
// resolution. It is called from a background waiter goroutine, possibly one
// bound to a different session than the one that triggered the resolving
// put — see store.GetWhen's FIFO-head doc comment.
func (s *Session) ReplyGetWhen(tag int32, value []byte, found bool) {
	if s.metrics != nil {
		s.metrics.GetWhenWaiters.Dec()
	}
	if err := s.conn.Send(tag, wire.TypeGetWhen, wire.EncodeGetReply(value, found)); err != nil {
		s.logger.Error().Err(err).Msg("session: failed to deliver deferred get_when reply")
	}
}

// Cancelled implements store.ReplySink: once true, background waiters bound
// to this session abandon themselves instead of trying to send.
func (s *Session) Cancelled() bool {
	return s.cancelled.Load()
}

// teardown marks the session cancelled and closes its connection. It is
// safe to call once, from Run's deferred exit; it does not itself wake
// pending condition variables — the store broadcasts on every put/multi_put,
// so an orphaned waiter observes Cancelled() on its next wakeup at the
// latest.
func (s *Session) teardown() {
	s.cancelled.Store(true)
	_ = s.conn.Close()
	if s.metrics != nil {
		s.metrics.ActiveSessions.Dec()
	}
}

var requestTypeNames = map[int16]string{
	wire.TypeAuth:       "auth",
	wire.TypeRegister:   "register",
	wire.TypePut:        "put",
	wire.TypeGet:        "get",
	wire.TypeMultiPut:   "multi_put",
	wire.TypeMultiGet:   "multi_get",
	wire.TypeGetWhen:    "get_when",
	wire.TypeDisconnect: "disconnect",
}

func requestTypeName(t int16) (string, bool) {
	name, ok := requestTypeNames[t]
	return name, ok
}

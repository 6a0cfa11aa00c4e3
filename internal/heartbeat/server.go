// Package heartbeat implements the Heartbeat Server (spec §4.D): a TCP
// listener accepting persistent connections from cones, ingesting
// newline-delimited JSON heartbeat frames, updating the Registry, and
// replying with an acknowledgement that converges device LED/audio/action
// state.
package heartbeat

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	xgclock "github.com/fieldcone/controller/internal/clock"
	"github.com/fieldcone/controller/internal/registry"
)

// TouchHandler is the single-method capability interface the Session
// Engine implements to receive touch reports. Modeling it this way (per
// REDESIGN FLAGS) replaces the original's hasattr-style optional-method
// probing with an explicit, always-present seam.
type TouchHandler interface {
	HandleTouch(ctx context.Context, deviceID string, at time.Time)
}

// Config holds Heartbeat Server tuning (spec §4.D, §6.1.2).
type Config struct {
	ListenAddr      string
	ReadDeadline    time.Duration // ~45s, reset on each frame
	KeepAliveIdle   time.Duration // 30s
	KeepAlivePeriod time.Duration // 5s
	MeshNetwork     string
	ServerVersion   string
	WorkerPoolSize  int // touch-dispatch worker pool size
	QueueSize       int // bounded touch queue; full queue drops oldest
	SkewThresholdMS float64
}

// DefaultConfig returns the spec's named constants (§4.D, §9).
func DefaultConfig(listenAddr string) Config {
	return Config{
		ListenAddr:      listenAddr,
		ReadDeadline:    45 * time.Second,
		KeepAliveIdle:   30 * time.Second,
		KeepAlivePeriod: 5 * time.Second,
		MeshNetwork:     "FieldCones",
		ServerVersion:   "dev",
		WorkerPoolSize:  8,
		QueueSize:       256,
		SkewThresholdMS: 250,
	}
}

// Server is the TCP heartbeat listener.
type Server struct {
	cfg      Config
	registry *registry.Registry
	touch    TouchHandler
	clock    xgclock.Clock
	log      zerolog.Logger

	listener net.Listener
	wg       sync.WaitGroup

	touchQueue chan touchEvent
}

type touchEvent struct {
	deviceID string
	at       time.Time
}

// New creates a Server.
func New(cfg Config, reg *registry.Registry, touch TouchHandler, c xgclock.Clock, logger zerolog.Logger) *Server {
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 8
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	return &Server{
		cfg:        cfg,
		registry:   reg,
		touch:      touch,
		clock:      c,
		log:        logger.With().Str("component", "heartbeat").Logger(),
		touchQueue: make(chan touchEvent, cfg.QueueSize),
	}
}

// Run listens and serves until ctx is cancelled, then stops accepting and
// closes every connection, returning once the connection handlers and
// touch workers have finished. The wait has no time limit of its own.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("heartbeat: listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.listener = ln
	s.log.Info().Str("event", "heartbeat.listening").Str("addr", s.cfg.ListenAddr).Msg("heartbeat server listening")

	for i := 0; i < s.cfg.WorkerPoolSize; i++ {
		s.wg.Add(1)
		go s.touchWorker(ctx)
	}

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
				return fmt.Errorf("heartbeat: accept: %w", err)
			}
		}
		s.wg.Add(1)
		go s.handleConn(ctx, conn)
	}
}

// Stop closes the listener only. Unless Run's ctx is also cancelled, Run
// then returns the accept error at once without waiting for handlers, and
// connections that are already open stay open.
func (s *Server) Stop() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// connWriter adapts a net.Conn into a registry.FrameWriter, serializing
// writes with a mutex since both the read-loop's acknowledgement and the
// Command Emitter's asynchronous commands write to the same socket.
type connWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (w *connWriter) WriteFrame(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(v)
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetKeepAliveConfig(net.KeepAliveConfig{
			Enable:   true,
			Idle:     s.cfg.KeepAliveIdle,
			Interval: s.cfg.KeepAlivePeriod,
			Count:    3,
		})
	}

	nodeID := conn.RemoteAddr().String()
	writer := &connWriter{enc: json.NewEncoder(conn)}
	reader := bufio.NewScanner(conn)
	reader.Buffer(make([]byte, 0, 64*1024), 1<<20)

	logger := s.log.With().Str("node_id", nodeID).Logger()

	defer func() {
		s.registry.MarkOffline(nodeID)
		logger.Info().Str("event", "heartbeat.disconnected").Msg("cone disconnected")
	}()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_ = conn.SetReadDeadline(s.clock.Now().Add(s.cfg.ReadDeadline))
		if !reader.Scan() {
			return
		}
		line := reader.Bytes()
		if len(line) == 0 {
			continue
		}

		var frame InboundFrame
		if err := json.Unmarshal(line, &frame); err != nil {
			logger.Warn().Str("event", "heartbeat.malformed_frame").Err(err).Msg("malformed JSON frame")
			_ = writer.WriteFrame(ErrorFrame{Error: "malformed json"})
			continue
		}
		if frame.NodeID != "" {
			nodeID = frame.NodeID
			logger = s.log.With().Str("node_id", nodeID).Logger()
		}

		s.registry.SetWriter(nodeID, writer)
		s.ingest(ctx, nodeID, frame, logger)
	}
}

// ingest applies one inbound heartbeat frame: updates the Registry
// (excluding led_pattern/audio_clip), dispatches a touch report to the
// worker pool without blocking the read loop, optionally triggers a
// resync intent, and writes the acknowledgement (spec §4.D steps 1-6).
func (s *Server) ingest(ctx context.Context, nodeID string, frame InboundFrame, logger zerolog.Logger) {
	courseStatus, selectedCourse := s.registry.CourseState()
	assignment := s.registry.Assignment(nodeID)
	status := registry.DisplayStatusFor(courseStatus, assignment != "")

	var skew float64
	if frame.ClockSkewMS != nil {
		skew = *frame.ClockSkewMS
	}

	s.registry.UpsertNode(registry.UpsertParams{
		NodeID:       nodeID,
		Addr:         nodeID,
		Status:       status,
		Sensors:      frame.Sensors,
		BatteryLevel: frame.BatteryLevel,
		SkewMS:       skew,
		Seen:         s.clock.Now(),
	})

	if frame.TouchDetected {
		at := s.clock.Now()
		if frame.TouchTimestamp > 0 {
			at = time.UnixMilli(int64(frame.TouchTimestamp * 1000))
		}
		s.enqueueTouch(nodeID, at, logger)
	}

	needsResync := frame.FirstConnect || (frame.ClockSkewMS != nil && abs(skew) > s.cfg.SkewThresholdMS)
	if needsResync {
		logger.Info().Str("event", "heartbeat.resync_requested").Float64("skew_ms", skew).Msg("clock resync triggered")
	}

	led, audio := s.registry.CommandedState(nodeID)
	var actionPtr *string
	if assignment != "" {
		actionPtr = &assignment
	}
	now := s.clock.Now()
	ack := AckFrame{
		Ack:           true,
		Action:        actionPtr,
		CourseStatus:  string(courseStatus),
		Timestamp:     now.UTC().Format(time.RFC3339Nano),
		MasterTime:    now.UnixMilli(),
		MeshNetwork:   s.cfg.MeshNetwork,
		ServerVersion: s.cfg.ServerVersion,
		LEDPattern:    led,
		AudioClip:     audio,
	}
	_ = selectedCourse // informational only; not part of the ack frame per §6.1.2

	w := s.registry.Writer(nodeID)
	if w != nil {
		if err := w.WriteFrame(ack); err != nil {
			logger.Warn().Str("event", "heartbeat.ack_write_failed").Err(err).Msg("failed to write acknowledgement")
			s.registry.MarkOffline(nodeID)
		}
	}
}

// enqueueTouch fans touch dispatch out to the worker pool so the read
// loop is never blocked (spec §4.D step 4, §9 bounded-queue redesign).
// When the queue is full, the oldest queued touch is dropped and logged:
// touches are idempotent per segment, so loss is preferable to stalling
// the ingest path.
func (s *Server) enqueueTouch(deviceID string, at time.Time, logger zerolog.Logger) {
	ev := touchEvent{deviceID: deviceID, at: at}
	select {
	case s.touchQueue <- ev:
		return
	default:
	}
	select {
	case <-s.touchQueue:
		logger.Warn().Str("event", "touch.queue_full_dropped_oldest").Msg("touch queue full, dropped oldest")
	default:
	}
	select {
	case s.touchQueue <- ev:
	default:
		logger.Warn().Str("event", "touch.dropped").Str("device_id", deviceID).Msg("touch dropped, queue still full")
	}
}

func (s *Server) touchWorker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.touchQueue:
			s.touch.HandleTouch(ctx, ev.deviceID, ev.at)
		}
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// Package service ties the buffer, cooldown, dispatcher and store together.
//
// Record appends to the buffer and asks the cooldown for a flush. When the cooldown
// expires, one flush cycle sends a snapshot of the buffer. A delivered snapshot is
// dropped from the buffer; anything else is persisted and retried on the next cycle.
// Host lifecycle hooks persist the buffer synchronously.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/GabrielNunesIT/go-libs/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/GabrielNunesIT/event-buffer/internal/buffer"
	"github.com/GabrielNunesIT/event-buffer/internal/config"
	"github.com/GabrielNunesIT/event-buffer/internal/dispatcher"
	"github.com/GabrielNunesIT/event-buffer/internal/model"
	"github.com/GabrielNunesIT/event-buffer/internal/scheduler"
	"github.com/GabrielNunesIT/event-buffer/internal/store"
)

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("service already started")

var errSnapshotPending = errors.New("persisted snapshot could not be read yet")

// Service is the event-lifecycle engine.
type Service struct {
	buf        *buffer.Buffer
	store      store.Store
	dispatcher *dispatcher.Dispatcher
	cooldown   *scheduler.Cooldown

	// cycle is held for the whole of a flush cycle, which keeps cycles single flight
	// and ordered. It is a channel so waiting for it can honour a context.
	cycle chan struct{}

	// storeMu orders snapshot writes so an older snapshot never overwrites a newer one.
	storeMu sync.Mutex

	started    atomic.Bool
	restored   atomic.Bool
	terminated atomic.Bool

	recorded      atomic.Uint64
	delivered     atomic.Uint64
	failed        atomic.Uint64
	persistErrors atomic.Uint64

	onError func(error)
	tracer  trace.Tracer
	logger  logger.ILogger

	// set by options, consumed by New
	clock       scheduler.Clock
	transport   dispatcher.Transport
	customStore store.Store
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the real clock of the cooldown.
func WithClock(c scheduler.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithTransport replaces the HTTP transport used by the dispatcher.
func WithTransport(t dispatcher.Transport) Option {
	return func(s *Service) {
		s.transport = t
	}
}

// WithStore replaces the store built from configuration.
func WithStore(st store.Store) Option {
	return func(s *Service) {
		s.customStore = st
	}
}

// WithErrorHandler registers a hook that receives every recovered failure:
// persistence reads and writes, transport failures and rejections.
// The hook runs synchronously on the goroutine that hit the failure.
func WithErrorHandler(f func(error)) Option {
	return func(s *Service) {
		s.onError = f
	}
}

// New builds a service from configuration.
func New(cfg *config.Config, log logger.ILogger, opts ...Option) (*Service, error) {
	s := &Service{
		cycle:  make(chan struct{}, 1),
		tracer: otel.Tracer("github.com/GabrielNunesIT/event-buffer/internal/service"),
		logger: log.SubLogger("EventService"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.store = s.customStore
	if s.store == nil {
		st, err := store.New(cfg.Storage, log)
		if err != nil {
			return nil, fmt.Errorf("creating store: %w", err)
		}
		s.store = st
	}

	var dOpts []dispatcher.Option
	if s.transport != nil {
		dOpts = append(dOpts, dispatcher.WithTransport(s.transport))
	}
	s.dispatcher = dispatcher.New(cfg.Collector, log, dOpts...)

	s.buf = buffer.New(buffer.WithMaxEvents(cfg.MaxEvents))

	var sOpts []scheduler.Option
	if s.clock != nil {
		sOpts = append(sOpts, scheduler.WithClock(s.clock))
	}
	s.cooldown = scheduler.NewCooldown(cfg.Cooldown, s.onCooldownExpired, log, sOpts...)

	return s, nil
}

// Record buffers one event and makes sure a flush is scheduled.
// It never blocks on I/O and never fails.
func (s *Service) Record(eventType, data string) {
	s.buf.Append(model.NewEvent(eventType, data))
	s.recorded.Add(1)

	// Before Start the snapshot has not been merged yet; Start schedules the first flush.
	if !s.started.Load() || s.terminated.Load() {
		return
	}
	s.cooldown.RequestFlush()
}

// Start restores the persisted snapshot ahead of anything already recorded and, if
// the buffer is then non-empty, schedules an immediate flush so restored events are
// not stranded until the next Record.
func (s *Service) Start(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	if s.started.Load() {
		s.release()
		return ErrAlreadyStarted
	}
	s.restoreLocked(ctx)
	s.started.Store(true)
	s.release()

	n := s.buf.Len()
	s.logger.Infof("event service started: store=%s, buffered=%d, cooldown=%v",
		s.store.Name(), n, s.cooldown.Window())

	if n > 0 {
		s.cooldown.RequestImmediate()
	}
	return nil
}

// OnSuspend persists the buffer before the host suspends. The buffer is unchanged.
// A flush in flight is not waited for.
func (s *Service) OnSuspend(ctx context.Context) error {
	if err := s.ensureRestored(ctx); err != nil {
		return err
	}
	s.logger.Debug("suspend: persisting buffer")
	return s.syncStore(ctx)
}

// OnTerminate persists the buffer before the host exits. It first waits, bounded by
// ctx, for an in-flight flush so its outcome is reflected in what gets saved.
// Flushes scheduled after this call are skipped.
func (s *Service) OnTerminate(ctx context.Context) error {
	s.terminated.Store(true)

	if err := s.acquire(ctx); err != nil {
		s.logger.Warningf("terminate: in-flight flush still running, saving anyway: %v", err)
		return s.syncStore(context.WithoutCancel(ctx))
	}
	s.restoreLocked(ctx)
	s.release()

	s.logger.Debugf("terminate: persisting buffer: buffered=%d", s.buf.Len())
	return s.syncStore(ctx)
}

// Flush runs one flush cycle now. Cycles never overlap: a call made while another
// cycle is in flight waits for it and then sends whatever is still buffered.
func (s *Service) Flush(ctx context.Context) dispatcher.Result {
	if err := s.acquire(ctx); err != nil {
		return dispatcher.Result{
			Outcome: dispatcher.TransportFailure,
			Err:     model.NewError("service.Flush", model.ErrTransport, err),
		}
	}
	defer s.release()

	s.restoreLocked(ctx)

	events, cursor := s.buf.SnapshotCursor()
	if len(events) == 0 {
		return dispatcher.Result{Outcome: dispatcher.Delivered}
	}

	ctx, span := s.tracer.Start(ctx, "service.Flush", trace.WithAttributes(
		attribute.Int("events.count", len(events)),
	))
	defer span.End()

	res := s.dispatcher.SendBatch(ctx, events)

	switch res.Outcome {
	case dispatcher.Delivered:
		s.delivered.Add(uint64(len(events)))
		left := s.buf.DropThrough(cursor)
		s.logger.Infof("batch delivered: events=%d, batch=%s, remaining=%d", len(events), res.BatchID, left)

		// Empty buffer: the snapshot is obsolete and gets deleted.
		// Otherwise it is rewritten with what arrived during the send.
		_ = s.syncStore(ctx)
		if left > 0 && s.started.Load() && !s.terminated.Load() {
			s.cooldown.RequestFlush()
		}

	default:
		s.failed.Add(1)
		s.logger.Warningf("batch not delivered, keeping %d events: outcome=%s, error=%v",
			len(events), res.Outcome, res.Err)
		s.report(res.Err)

		// Persist the live buffer, which may have grown during the attempt.
		_ = s.syncStore(ctx)
	}

	return res
}

// Reconfigure applies a new debounce window to future cooldowns.
func (s *Service) Reconfigure(cfg *config.Config) {
	if cfg.Cooldown > 0 && cfg.Cooldown != s.cooldown.Window() {
		s.cooldown.SetWindow(cfg.Cooldown)
		s.logger.Infof("cooldown changed: %v", cfg.Cooldown)
	}
}

// Buffered returns a copy of the events not yet confirmed delivered.
func (s *Service) Buffered() []model.Event {
	return s.buf.Snapshot()
}

// Stats is a point-in-time view of the service counters.
type Stats struct {
	Recorded      uint64
	Delivered     uint64 // events acknowledged by the collector
	FailedSends   uint64 // send attempts that did not deliver
	PersistErrors uint64
	Evicted       uint64 // events dropped by the buffer bound
	Buffered      int
	Cooldown      scheduler.State
}

// Stats returns the current counters.
func (s *Service) Stats() Stats {
	return Stats{
		Recorded:      s.recorded.Load(),
		Delivered:     s.delivered.Load(),
		FailedSends:   s.failed.Load(),
		PersistErrors: s.persistErrors.Load(),
		Evicted:       s.buf.Evicted(),
		Buffered:      s.buf.Len(),
		Cooldown:      s.cooldown.State(),
	}
}

// Close releases the connections held by the store, if any.
func (s *Service) Close() error {
	if c, ok := s.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *Service) onCooldownExpired() {
	if s.terminated.Load() {
		s.logger.Debug("cooldown expired after terminate, skipping flush")
		return
	}
	s.Flush(context.Background())
}

func (s *Service) acquire(ctx context.Context) error {
	select {
	case s.cycle <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) release() {
	<-s.cycle
}

func (s *Service) ensureRestored(ctx context.Context) error {
	if s.restored.Load() {
		return nil
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	s.restoreLocked(ctx)
	s.release()
	return nil
}

// restoreLocked merges the persisted snapshot into the buffer once (caller must hold cycle).
// A corrupt snapshot is reported and treated as absent. Any other read failure is
// reported and leaves the snapshot unmerged, so the next cycle tries again.
func (s *Service) restoreLocked(ctx context.Context) {
	if s.restored.Load() {
		return
	}

	events, err := s.store.Load(ctx)
	if err != nil {
		s.report(err)
		if !errors.Is(err, model.ErrSnapshotCorrupt) {
			s.logger.Warningf("could not read snapshot, will retry on the next cycle: %v", err)
			return
		}
		s.logger.Errorf("snapshot is corrupt, starting without it: %v", err)
		s.restored.Store(true)
		return
	}
	s.restored.Store(true)

	if len(events) > 0 {
		s.buf.Prepend(events)
		s.logger.Infof("restored %d events from %s store", len(events), s.store.Name())
	}
}

// syncStore makes the store match the live buffer: saved when non-empty, deleted when empty.
// Until the snapshot has been merged the store is left untouched, since writing would
// destroy events that were never sent.
func (s *Service) syncStore(ctx context.Context) error {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	if !s.restored.Load() {
		err := model.NewError("service.syncStore", model.ErrPersistenceWrite, errSnapshotPending)
		s.persistErrors.Add(1)
		s.logger.Warningf("snapshot not restored yet, leaving it in place: buffered=%d", s.buf.Len())
		s.report(err)
		return err
	}

	events := s.buf.Snapshot()

	var err error
	if len(events) == 0 {
		err = s.store.Delete(ctx)
	} else {
		err = s.store.Save(ctx, events)
	}
	if err != nil {
		s.persistErrors.Add(1)
		s.logger.Errorf("persisting buffer failed, keeping it in memory: %v", err)
		s.report(err)
	}
	return err
}

func (s *Service) report(err error) {
	if err != nil && s.onError != nil {
		s.onError(err)
	}
}

package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/GabrielNunesIT/event-buffer/internal/config"
	"github.com/GabrielNunesIT/event-buffer/internal/model"
)

// DefaultTimeout bounds a send attempt when the collector config sets no positive timeout.
var DefaultTimeout = 10 * time.Second

// BatchIDHeader carries a per-attempt identifier so a collector can spot a resent batch.
const BatchIDHeader = "X-Batch-Id"

// Outcome classifies one send attempt. Every outcome is terminal for that attempt.
type Outcome int

const (
	// Delivered means the collector acknowledged the batch with a 2xx.
	Delivered Outcome = iota
	// TransportFailure means the collector could not be reached or the attempt timed out.
	TransportFailure
	// ServerRejected means the collector answered with a non-2xx status.
	ServerRejected
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case TransportFailure:
		return "transport_failure"
	case ServerRejected:
		return "server_rejected"
	default:
		return "unknown"
	}
}

// Result describes one send attempt.
type Result struct {
	Outcome    Outcome
	Sent       int    // number of events in the batch
	BatchID    string // empty when nothing was sent
	StatusCode int    // zero on transport failure
	Err        error  // nil when delivered
}

// Dispatcher serializes batches and performs one send attempt per call.
type Dispatcher struct {
	url       string
	headers   map[string]string
	transport Transport
	timeout   time.Duration
	newID     func() string
	tracer    trace.Tracer
	logger    logger.ILogger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTransport replaces the HTTP transport.
func WithTransport(t Transport) Option {
	return func(d *Dispatcher) {
		d.transport = t
	}
}

// WithBatchIDFunc replaces the batch id generator.
func WithBatchIDFunc(f func() string) Option {
	return func(d *Dispatcher) {
		d.newID = f
	}
}

// New creates a dispatcher for the configured collector.
func New(cfg config.CollectorConfig, log logger.ILogger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		url:     cfg.URL,
		headers: cfg.Headers,
		timeout: cfg.Timeout,
		newID:   uuid.NewString,
		tracer:  otel.Tracer("github.com/GabrielNunesIT/event-buffer/internal/dispatcher"),
		logger:  log.SubLogger("Dispatcher"),
	}
	if d.timeout <= 0 {
		d.timeout = DefaultTimeout
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.transport == nil {
		d.transport = NewHTTPTransport(d.timeout)
	}
	return d
}

// SendBatch posts events as {"events":[...]} and classifies the outcome.
// An empty batch is not sent and counts as delivered.
func (d *Dispatcher) SendBatch(ctx context.Context, events []model.Event) Result {
	if len(events) == 0 {
		return Result{Outcome: Delivered}
	}

	batchID := d.newID()
	ctx, span := d.tracer.Start(ctx, "dispatcher.SendBatch", trace.WithAttributes(
		attribute.Int("events.count", len(events)),
		attribute.String("batch.id", batchID),
	))
	defer span.End()

	res := d.send(ctx, batchID, events)

	span.SetAttributes(attribute.String("batch.outcome", res.Outcome.String()))
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Outcome.String())
	}
	return res
}

func (d *Dispatcher) send(ctx context.Context, batchID string, events []model.Event) Result {
	res := Result{Sent: len(events), BatchID: batchID}

	body, err := json.Marshal(model.NewBatch(events))
	if err != nil {
		res.Outcome = TransportFailure
		res.Err = model.NewError("dispatcher.SendBatch", model.ErrTransport, err)
		return res
	}

	headers := make(map[string]string, len(d.headers)+2)
	for k, v := range d.headers {
		headers[k] = v
	}
	headers["Content-Type"] = "application/json"
	headers[BatchIDHeader] = batchID

	// Applies to injected transports too, which may not bound the attempt themselves.
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	resp, err := d.transport.Send(ctx, Request{
		URL:     d.url,
		Method:  http.MethodPost,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		d.logger.Debugf("push failed: batch=%s, error=%v", batchID, err)
		res.Outcome = TransportFailure
		res.Err = model.NewError("dispatcher.SendBatch", model.ErrTransport, err)
		return res
	}

	res.StatusCode = resp.StatusCode
	if !resp.Success() {
		d.logger.Debugf("push rejected: batch=%s, status=%d", batchID, resp.StatusCode)
		res.Outcome = ServerRejected
		res.Err = model.NewError("dispatcher.SendBatch", model.ErrServerRejected,
			fmt.Errorf("collector returned status %d", resp.StatusCode))
		return res
	}

	d.logger.Debugf("pushed %d events: batch=%s", len(events), batchID)
	res.Outcome = Delivered
	return res
}

package ingress

import (
	"context"
	"sync/atomic"
	"time"

	motionusecases "github.com/resona-io/resona/internal/application/motion/usecases"
	sensorusecases "github.com/resona-io/resona/internal/application/sensor/usecases"
	"github.com/resona-io/resona/internal/shared/goroutine"
	"github.com/resona-io/resona/internal/shared/logger"
)

// Stats counts router outcomes. Exposed on the health endpoint so dropped
// traffic is visible without log spelunking.
type Stats struct {
	Dispatched int64 `json:"dispatched"`
	Dropped    int64 `json:"dropped"`
}

// Router is the broker-facing entry point: it validates every uplink message
// and dispatches it to the owning usecase on its own goroutine. A bad message
// is dropped with a warn log; the router itself never fails.
type Router struct {
	handleMotion *motionusecases.HandleMotionUseCase
	announce     *sensorusecases.AnnounceRegistrationUseCase
	recordStatus *sensorusecases.RecordStatusUseCase
	logger       logger.Interface

	handlerTimeout time.Duration

	dispatched atomic.Int64
	dropped    atomic.Int64
}

func NewRouter(
	handleMotion *motionusecases.HandleMotionUseCase,
	announce *sensorusecases.AnnounceRegistrationUseCase,
	recordStatus *sensorusecases.RecordStatusUseCase,
	handlerTimeout time.Duration,
	log logger.Interface,
) *Router {
	if handlerTimeout <= 0 {
		handlerTimeout = 30 * time.Second
	}
	return &Router{
		handleMotion:   handleMotion,
		announce:       announce,
		recordStatus:   recordStatus,
		logger:         log,
		handlerTimeout: handlerTimeout,
	}
}

// Route is wired as the broker message handler. It must not block the
// client's receive loop, so the actual work runs on a fresh goroutine with
// the handler deadline attached.
func (r *Router) Route(topic string, payload []byte) {
	sensorID, kind, err := parseTopic(topic)
	if err != nil {
		r.drop("topic", topic, err)
		return
	}

	goroutine.SafeGo(r.logger, "ingress-"+kind, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.handlerTimeout)
		defer cancel()
		r.dispatch(ctx, sensorID, kind, topic, payload)
	})
}

func (r *Router) dispatch(ctx context.Context, sensorID, kind, topic string, payload []byte) {
	switch kind {
	case KindMotion:
		r.routeMotion(ctx, sensorID, topic, payload)
	case KindRegister:
		r.routeRegister(ctx, sensorID, topic, payload)
	case KindStatus:
		r.routeStatus(ctx, sensorID, topic, payload)
	}
}

func (r *Router) routeMotion(ctx context.Context, sensorID, topic string, payload []byte) {
	var p motionPayload
	if err := decodeAndValidate(payload, &p); err != nil {
		r.drop("motion", topic, err)
		return
	}
	if err := checkSensorIDMatch(sensorID, p.SensorID); err != nil {
		r.drop("motion", topic, err)
		return
	}

	_, err := r.handleMotion.Execute(ctx, motionusecases.HandleMotionCommand{
		SensorID:   sensorID,
		OccurredAt: parseTimestamp(p.Timestamp),
		Metadata:   p.Metadata.toDomain(),
	})
	if err != nil {
		// NotFound here means a device with valid credentials but no sensor
		// record, which is worth more than a debug line.
		r.logger.Warnw("motion handling failed", "error", err, "sensor_id", sensorID)
		r.dropped.Add(1)
		return
	}
	r.dispatched.Add(1)
}

func (r *Router) routeRegister(ctx context.Context, sensorID, topic string, payload []byte) {
	var p registerPayload
	if err := decodeAndValidate(payload, &p); err != nil {
		r.drop("register", topic, err)
		return
	}
	if err := checkSensorIDMatch(sensorID, p.SensorID); err != nil {
		r.drop("register", topic, err)
		return
	}

	err := r.announce.Execute(ctx, sensorusecases.AnnounceRegistrationCommand{
		SensorID:        sensorID,
		OccurredAt:      parseTimestamp(p.Timestamp),
		FirmwareVersion: p.FirmwareVersion,
	})
	if err != nil {
		r.logger.Warnw("registration announcement failed", "error", err, "sensor_id", sensorID)
		r.dropped.Add(1)
		return
	}
	r.dispatched.Add(1)
}

func (r *Router) routeStatus(ctx context.Context, sensorID, topic string, payload []byte) {
	var p statusPayload
	if err := decodeAndValidate(payload, &p); err != nil {
		r.drop("status", topic, err)
		return
	}

	md := p.Metadata
	if md.BatteryLevel == nil {
		md.BatteryLevel = p.BatteryLevel
	}
	if md.Uptime == nil {
		md.Uptime = p.Uptime
	}

	err := r.recordStatus.Execute(ctx, sensorusecases.RecordStatusCommand{
		SensorID:   sensorID,
		OccurredAt: parseTimestamp(p.Timestamp),
		Metadata:   md.toDomain(),
	})
	if err != nil {
		r.logger.Warnw("status report failed", "error", err, "sensor_id", sensorID)
		r.dropped.Add(1)
		return
	}
	r.dispatched.Add(1)
}

func (r *Router) drop(kind, topic string, err error) {
	r.dropped.Add(1)
	r.logger.Warnw("dropped uplink message", "kind", kind, "topic", topic, "error", err)
}

// Stats returns a snapshot of the router counters.
func (r *Router) Stats() Stats {
	return Stats{
		Dispatched: r.dispatched.Load(),
		Dropped:    r.dropped.Load(),
	}
}

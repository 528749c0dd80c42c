package events

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/dbi/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// BaseSubject overrides commsutil.SubjectLifecycle (e.g. from DBI_LIFECYCLE_SUBJECT).
	BaseSubject string
}

// CommsPublisher publishes lifecycle events to COMMS subjects.
type CommsPublisher struct {
	nc          *comms.Conn
	baseSubject string
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	base := commsutil.SubjectLifecycle
	if opts != nil && opts.BaseSubject != "" {
		base = opts.BaseSubject
	}
	return &CommsPublisher{nc: nc, baseSubject: base}
}

// PublishLifecycle publishes event to the per-handler subject and to the
// per-stage subject.
func (p *CommsPublisher) PublishLifecycle(_ context.Context, event *LifecycleEvent) error {
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}

	handlerSubject := commsutil.BuildHandlerSubject(p.baseSubject, event.Stage, event.Name)
	if err := p.nc.Publish(handlerSubject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, handlerSubject, err))
		return err
	}

	stageSubject := commsutil.BuildStageSubject(p.baseSubject, event.Stage)
	if err := p.nc.Publish(stageSubject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, stageSubject, err))
		return err
	}

	slog.Debug(fmt.Sprintf("%s - Published %s for %s", commsPublisherLogPrefix, event.Stage, event.Name))
	return nil
}

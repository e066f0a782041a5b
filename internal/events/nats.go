package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"ingestor/internal/services"
)

// NATSSink publishes every event as JSON on "<prefix>.<job id>".
type NATSSink struct {
	nc     *nats.Conn
	prefix string
}

// ConnectNATS dials url and returns a sink publishing under prefix.
func ConnectNATS(url, prefix string) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("ingestor"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "events", "nats connect", "connect to "+url, err)
	}
	return &NATSSink{nc: nc, prefix: strings.Trim(prefix, ".")}, nil
}

// Subject returns the subject events for jobID are published on. An empty
// jobID yields the wildcard covering every job.
func Subject(prefix, jobID string) string {
	prefix = strings.Trim(prefix, ".")
	if jobID == "" {
		return prefix + ".>"
	}
	return prefix + "." + jobID
}

// Publish implements Sink.
func (s *NATSSink) Publish(_ context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return s.nc.Publish(Subject(s.prefix, evt.JobID), payload)
}

// Subscribe delivers decoded events for jobID (every job when empty) to
// handler until the returned subscription is drained.
func (s *NATSSink) Subscribe(jobID string, handler func(Event)) (*nats.Subscription, error) {
	return s.nc.Subscribe(Subject(s.prefix, jobID), func(msg *nats.Msg) {
		var evt Event
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			return
		}
		handler(evt)
	})
}

// Close drains the connection.
func (s *NATSSink) Close() {
	if s != nil && s.nc != nil {
		_ = s.nc.Drain()
	}
}

package events_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ingestor/internal/events"
	"ingestor/internal/services"
)

func TestSubject(t *testing.T) {
	require.Equal(t, "ingestor.jobs.abc", events.Subject("ingestor.jobs", "abc"))
	require.Equal(t, "ingestor.jobs.abc", events.Subject("ingestor.jobs.", "abc"))
	require.Equal(t, "ingestor.jobs.abc", events.Subject(".ingestor.jobs.", "abc"))
	require.Equal(t, "ingestor.jobs.>", events.Subject("ingestor.jobs", ""))
}

func TestConnectNATSUnreachable(t *testing.T) {
	_, err := events.ConnectNATS("nats://127.0.0.1:1", "ingestor.jobs")
	require.Error(t, err)
	require.ErrorIs(t, err, services.ErrConfiguration)
}

func TestNilNATSSinkCloseIsSafe(t *testing.T) {
	var sink *events.NATSSink
	require.NotPanics(t, sink.Close)
}

package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"ingestor/internal/config"
	"ingestor/internal/events"
	"ingestor/internal/gate"
	"ingestor/internal/jobs"
	"ingestor/internal/notifications"
	"ingestor/internal/registry"
	"ingestor/internal/testsupport"
	"ingestor/internal/workflow"
)

type harness struct {
	cfg       *config.Config
	manager   *workflow.Manager
	gate      *gate.Gate
	registry  *registry.Registry
	recorder  *testsupport.Recorder
	notifier  *recordingNotifier
	extractor *testsupport.Extractor
	storer    *testsupport.Storer
	registrar *testsupport.Registrar
	crawler   *testsupport.Crawler

	opsMu sync.Mutex
	ops   map[string][]registry.Op
}

func newHarness(t *testing.T, cfgOpts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, cfgOpts...)
	h := &harness{
		cfg:       cfg,
		recorder:  &testsupport.Recorder{},
		notifier:  &recordingNotifier{},
		extractor: &testsupport.Extractor{},
		storer:    &testsupport.Storer{},
		registrar: &testsupport.Registrar{},
		crawler:   &testsupport.Crawler{},
		ops:       make(map[string][]registry.Op),
	}
	h.gate = gate.New(cfg.Engine.MaxConcurrent)
	h.registry = registry.New(
		registry.WithGrace(cfg.CancelGrace()),
		registry.WithObserver(func(op registry.Op, id string) {
			h.opsMu.Lock()
			h.ops[id] = append(h.ops[id], op)
			h.opsMu.Unlock()
		}),
	)
	h.manager = workflow.NewManager(cfg, h.gate, h.registry, h.recorder, workflow.Collaborators{
		Extractor: h.extractor,
		Storer:    h.storer,
		Registrar: h.registrar,
		Crawler:   h.crawler,
	}, nil, workflow.WithNotifier(h.notifier))

	if err := h.manager.Start(context.Background()); err != nil {
		t.Fatalf("start manager: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.manager.Stop(ctx)
	})
	return h
}

func (h *harness) submit(t *testing.T, spec jobs.Spec) workflow.Accepted {
	t.Helper()
	accepted, err := h.manager.Submit(context.Background(), spec)
	if err != nil {
		t.Fatalf("submit %s: %v", spec.Kind, err)
	}
	return accepted
}

func (h *harness) waitTerminal(t *testing.T, id string) jobs.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := h.manager.Status(id)
		if err != nil {
			t.Fatalf("status %s: %v", id, err)
		}
		if job.IsTerminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state", id)
	return jobs.Job{}
}

// waitSettled waits until the job has left the registry, which happens after
// its terminal event and permit release.
func (h *harness) waitSettled(t *testing.T, id string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := h.registry.Lookup(id); !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s still registered", id)
}

func (h *harness) registryOps(id string) []registry.Op {
	h.opsMu.Lock()
	defer h.opsMu.Unlock()
	return append([]registry.Op(nil), h.ops[id]...)
}

func assertMonotone(t *testing.T, evts []events.Event) {
	t.Helper()
	last := 0
	for _, evt := range evts {
		if evt.Percentage == jobs.CancelledPercentage {
			continue
		}
		if evt.Percentage < last {
			t.Fatalf("percentage regressed from %d to %d at %q", last, evt.Percentage, evt.Log)
		}
		last = evt.Percentage
	}
}

func countType(evts []events.Event, typ events.Type) int {
	n := 0
	for _, evt := range evts {
		if evt.Type == typ {
			n++
		}
	}
	return n
}

func terminalCount(evts []events.Event) int {
	n := 0
	for _, evt := range evts {
		if evt.Type.IsTerminal() {
			n++
		}
	}
	return n
}

type notification struct {
	event   notifications.Event
	payload notifications.Payload
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	r.sent = append(r.sent, notification{event: event, payload: payload})
	r.mu.Unlock()
	return nil
}

func (r *recordingNotifier) events() []notifications.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notifications.Event, len(r.sent))
	for i, n := range r.sent {
		out[i] = n.event
	}
	return out
}

func documentSpec(name string) jobs.Spec {
	return jobs.Spec{
		Kind:     jobs.KindDocument,
		Document: testsupport.Files(name)[0],
	}
}

func folderSpec(folder string, names ...string) jobs.Spec {
	return jobs.Spec{
		Kind:       jobs.KindFolder,
		FolderName: folder,
		Files:      testsupport.Files(names...),
	}
}

func crawlSpec(url string) jobs.Spec {
	return jobs.Spec{Kind: jobs.KindCrawl, URL: url}
}

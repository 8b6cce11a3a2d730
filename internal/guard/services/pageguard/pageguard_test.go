package pageguard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/tubeguard/internal/guard/common/log"
	"github.com/haukened/tubeguard/internal/guard/domain"
	"github.com/haukened/tubeguard/internal/guard/services/classifier"
)

const safeURL = "https://www.youtube.com/"

// fakeDocument is a goroutine-safe in-memory page.
type fakeDocument struct {
	mu          sync.Mutex
	location    string
	title       string
	heading     string
	nodes       map[string]string
	hooks       Hooks
	observed    bool
	disconnects int
	stops       int
	replaces    []string
	appendErr   error
	observeErr  error
}

func newFakeDocument(location string) *fakeDocument {
	return &fakeDocument{location: location, nodes: make(map[string]string)}
}

func (d *fakeDocument) Location(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.location, nil
}

func (d *fakeDocument) Title(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.title, nil
}

func (d *fakeDocument) HeadingText(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.heading, nil
}

func (d *fakeDocument) AppendHiddenNode(_ context.Context, id, attr, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.appendErr != nil {
		return d.appendErr
	}
	d.nodes[id] = attr + "=" + value
	return nil
}

func (d *fakeDocument) Observe(_ context.Context, hooks Hooks) (Observation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.observeErr != nil {
		return nil, d.observeErr
	}
	d.hooks = hooks
	d.observed = true
	return observation{d}, nil
}

func (d *fakeDocument) Stop(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
	return nil
}

func (d *fakeDocument) Replace(_ context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.replaces = append(d.replaces, url)
	return nil
}

func (d *fakeDocument) set(fn func(d *fakeDocument)) {
	d.mu.Lock()
	fn(d)
	d.mu.Unlock()
}

func (d *fakeDocument) replaceCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.replaces)
}

func (d *fakeDocument) isObserved() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.observed
}

func (d *fakeDocument) currentHooks() Hooks {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hooks
}

type observation struct{ d *fakeDocument }

func (o observation) Disconnect() {
	o.d.mu.Lock()
	o.d.disconnects++
	o.d.mu.Unlock()
}

type fakeInjector struct {
	mu    sync.Mutex
	nodes []string
}

func (i *fakeInjector) Inject(_ context.Context, nodeID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.nodes = append(i.nodes, nodeID)
	return nil
}

func (i *fakeInjector) injected() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.nodes...)
}

type tableBlocklist struct{ t *domain.Tables }

func (b tableBlocklist) Decide(url string) domain.Decision { return classifier.Classify(b.t, url) }
func (b tableBlocklist) Tables() *domain.Tables            { return b.t }

type fakeRecorder struct {
	mu     sync.Mutex
	layers []domain.Layer
}

func (r *fakeRecorder) Record(layer domain.Layer, _ bool) {
	r.mu.Lock()
	r.layers = append(r.layers, layer)
	r.mu.Unlock()
}

func testBlocklist() Blocklist {
	return tableBlocklist{domain.NewTables(domain.TableSource{
		VideoKeys:  []string{"BLOCKED_ID", "Sprunki"},
		ChannelIDs: []string{"UCblocked"},
	})}
}

func startGuard(t *testing.T, doc *fakeDocument, inj Injector, rec Recorder) *Guard {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	g := NewGuard(GuardOptions{
		Blocklist: testBlocklist(),
		Document:  doc,
		Injector:  inj,
		SafeURL:   safeURL,
		NavPoll:   10 * time.Millisecond,
		Logger:    log.NewNoopLogger(),
		Recorder:  rec,
		NodeID:    func() string { return "tubeguard-test" },
	})
	g.Start(ctx)
	return g
}

func TestGuard_ImmediateBlockSkipsOtherLayers(t *testing.T) {
	doc := newFakeDocument("https://www.youtube.com/watch?v=BLOCKED_ID")
	inj := &fakeInjector{}
	rec := &fakeRecorder{}
	startGuard(t, doc, inj, rec)

	require.Eventually(t, func() bool { return doc.replaceCount() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	doc.mu.Lock()
	defer doc.mu.Unlock()
	assert.Equal(t, []string{safeURL}, doc.replaces)
	assert.Equal(t, 1, doc.stops)
	assert.False(t, doc.observed)
	assert.Empty(t, doc.nodes)
	assert.Empty(t, inj.injected())
	rec.mu.Lock()
	assert.Equal(t, []domain.Layer{domain.LayerURL}, rec.layers)
	rec.mu.Unlock()
}

func TestGuard_BridgesTablesAndInjects(t *testing.T) {
	doc := newFakeDocument("https://www.youtube.com/watch?v=CLEAN")
	inj := &fakeInjector{}
	startGuard(t, doc, inj, nil)

	require.Eventually(t, func() bool { return len(inj.injected()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"tubeguard-test"}, inj.injected())

	doc.mu.Lock()
	node := doc.nodes["tubeguard-test"]
	doc.mu.Unlock()
	require.NotEmpty(t, node)

	raw := node[len(domain.BridgeAttribute)+1:]
	p, err := domain.DecodeBridgePayload(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"BLOCKED_ID", "Sprunki"}, p.VideoTitle)
	assert.Equal(t, []string{"UCblocked"}, p.ChannelIDs)
}

func TestGuard_BridgeFailureKeepsScanning(t *testing.T) {
	doc := newFakeDocument("https://www.youtube.com/watch?v=CLEAN")
	doc.appendErr = errors.New("no body")
	inj := &fakeInjector{}
	startGuard(t, doc, inj, nil)

	require.Eventually(t, doc.isObserved, time.Second, 5*time.Millisecond)
	assert.Empty(t, inj.injected())
}

func TestGuard_DOMScannerMatchesHeadingWithinOneBatch(t *testing.T) {
	doc := newFakeDocument("https://www.youtube.com/watch?v=CLEAN")
	rec := &fakeRecorder{}
	startGuard(t, doc, nil, rec)
	require.Eventually(t, doc.isObserved, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, doc.replaceCount())

	doc.set(func(d *fakeDocument) { d.heading = "SPRUNKI phase 5 remix" })
	doc.currentHooks().Mutations()

	require.Eventually(t, func() bool { return doc.replaceCount() == 1 }, time.Second, 5*time.Millisecond)
	doc.mu.Lock()
	assert.Equal(t, 1, doc.disconnects)
	doc.mu.Unlock()
	rec.mu.Lock()
	assert.Equal(t, []domain.Layer{domain.LayerDOM}, rec.layers)
	rec.mu.Unlock()
}

func TestGuard_DOMScannerMatchesTitle(t *testing.T) {
	doc := newFakeDocument("https://www.youtube.com/watch?v=CLEAN")
	doc.title = "sprunki - YouTube"
	startGuard(t, doc, nil, nil)

	require.Eventually(t, func() bool { return doc.replaceCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestGuard_DOMScannerIgnoresCleanHeading(t *testing.T) {
	doc := newFakeDocument("https://www.youtube.com/watch?v=CLEAN")
	startGuard(t, doc, nil, nil)
	require.Eventually(t, doc.isObserved, time.Second, 5*time.Millisecond)

	doc.set(func(d *fakeDocument) { d.heading = "Learning the alphabet" })
	for i := 0; i < 5; i++ {
		doc.currentHooks().Mutations()
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, doc.replaceCount())
}

func TestGuard_ClientNavigationRechecksURL(t *testing.T) {
	tests := []struct {
		name    string
		trigger func(doc *fakeDocument)
	}{
		{"navigate finish signal", func(doc *fakeDocument) { doc.currentHooks().NavigateFinish() }},
		{"poller", func(*fakeDocument) {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := newFakeDocument("https://www.youtube.com/")
			startGuard(t, doc, nil, nil)
			require.Eventually(t, doc.isObserved, time.Second, 5*time.Millisecond)

			doc.set(func(d *fakeDocument) { d.location = "https://www.youtube.com/channel/UCblocked" })
			tt.trigger(doc)

			require.Eventually(t, func() bool { return doc.replaceCount() == 1 }, time.Second, 5*time.Millisecond)
		})
	}
}

func TestGuard_ActsOnce(t *testing.T) {
	doc := newFakeDocument("https://www.youtube.com/watch?v=CLEAN")
	startGuard(t, doc, nil, nil)
	require.Eventually(t, doc.isObserved, time.Second, 5*time.Millisecond)

	// Two detectors fire back to back: the DOM scanner, then a navigation
	// to a blocked URL.
	doc.set(func(d *fakeDocument) {
		d.heading = "sprunki"
		d.location = "https://www.youtube.com/watch?v=BLOCKED_ID"
	})
	hooks := doc.currentHooks()
	hooks.Mutations()
	hooks.NavigateFinish()
	hooks.Mutations()

	require.Eventually(t, func() bool { return doc.replaceCount() >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	doc.mu.Lock()
	defer doc.mu.Unlock()
	assert.Equal(t, 1, doc.stops)
	assert.Equal(t, []string{safeURL}, doc.replaces)
}

func TestGuard_ObserveFailureStillPolls(t *testing.T) {
	doc := newFakeDocument("https://www.youtube.com/")
	doc.observeErr = errors.New("detached")
	g := startGuard(t, doc, nil, nil)

	time.Sleep(20 * time.Millisecond)
	doc.set(func(d *fakeDocument) { d.location = "https://youtu.be/BLOCKED_ID" })
	require.Eventually(t, func() bool { return doc.replaceCount() == 1 }, time.Second, 5*time.Millisecond)

	select {
	case <-g.Done():
		t.Fatal("guard loop exited early")
	default:
	}
}

func TestNewGuard_Defaults(t *testing.T) {
	g := NewGuard(GuardOptions{Blocklist: testBlocklist(), Document: newFakeDocument("")})
	assert.Equal(t, DefaultNavPoll, g.navPoll)
	assert.NotNil(t, g.logger)
	id := g.nodeID()
	assert.Contains(t, id, domain.BridgeNodePrefix)
	assert.NotEqual(t, id, g.nodeID())
}

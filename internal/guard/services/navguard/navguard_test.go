package navguard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/haukened/tubeguard/internal/guard/common/log"
	"github.com/haukened/tubeguard/internal/guard/domain"
	"github.com/haukened/tubeguard/internal/guard/services/classifier"
)

const safeURL = "https://www.youtube.com/"

type MockRedirector struct {
	mock.Mock
}

func (m *MockRedirector) Redirect(ctx context.Context, ev domain.NavigationEvent, target string) error {
	args := m.Called(ctx, ev, target)
	return args.Error(0)
}

// tableClassifier decides directly against tables, without caching.
type tableClassifier struct{ t *domain.Tables }

func (c tableClassifier) Decide(url string) domain.Decision { return classifier.Classify(c.t, url) }

type countingRecorder struct {
	calls map[domain.Layer][]bool
}

func (r *countingRecorder) Record(layer domain.Layer, blocked bool) {
	if r.calls == nil {
		r.calls = make(map[domain.Layer][]bool)
	}
	r.calls[layer] = append(r.calls[layer], blocked)
}

func newTestGuard(redir Redirector, rec Recorder) *Guard {
	tb := domain.NewTables(domain.TableSource{VideoKeys: []string{"BLOCKED_ID"}})
	return NewGuard(GuardOptions{
		Classifier: tableClassifier{tb},
		Redirector: redir,
		SafeURL:    safeURL,
		Logger:     log.NewNoopLogger(),
		Recorder:   rec,
	})
}

func TestHandleNavigation_BlockedTopLevelRedirectsOnce(t *testing.T) {
	redir := &MockRedirector{}
	ev := domain.NavigationEvent{ID: "req-1", URL: "https://www.youtube.com/watch?v=BLOCKED_ID", TopLevel: true}
	redir.On("Redirect", mock.Anything, ev, safeURL).Return(nil).Once()

	g := newTestGuard(redir, nil)
	assert.True(t, g.HandleNavigation(context.Background(), ev))
	redir.AssertNumberOfCalls(t, "Redirect", 1)
	redir.AssertExpectations(t)
}

func TestHandleNavigation_FrameNeverRedirects(t *testing.T) {
	redir := &MockRedirector{}
	rec := &countingRecorder{}
	g := newTestGuard(redir, rec)

	ev := domain.NavigationEvent{ID: "req-2", URL: "https://www.youtube.com/watch?v=BLOCKED_ID", TopLevel: false}
	assert.False(t, g.HandleNavigation(context.Background(), ev))
	redir.AssertNotCalled(t, "Redirect", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, rec.calls)
}

func TestHandleNavigation_Allowed(t *testing.T) {
	tests := []string{
		"https://www.youtube.com/watch?v=CLEAN",
		"https://example.com/watch?v=BLOCKED_ID",
		"not a url at all %%%",
	}
	for _, url := range tests {
		t.Run(url, func(t *testing.T) {
			redir := &MockRedirector{}
			rec := &countingRecorder{}
			g := newTestGuard(redir, rec)

			assert.False(t, g.HandleNavigation(context.Background(), domain.NavigationEvent{URL: url, TopLevel: true}))
			redir.AssertNotCalled(t, "Redirect", mock.Anything, mock.Anything, mock.Anything)
			assert.Equal(t, []bool{false}, rec.calls[domain.LayerPreNavigation])
		})
	}
}

func TestHandleNavigation_RedirectFailureIsNotRetried(t *testing.T) {
	redir := &MockRedirector{}
	redir.On("Redirect", mock.Anything, mock.Anything, safeURL).Return(errors.New("target closed")).Once()
	rec := &countingRecorder{}
	g := newTestGuard(redir, rec)

	ev := domain.NavigationEvent{ID: "req-3", URL: "https://youtu.be/BLOCKED_ID", TopLevel: true}
	assert.False(t, g.HandleNavigation(context.Background(), ev))
	redir.AssertNumberOfCalls(t, "Redirect", 1)
	assert.Equal(t, []bool{true}, rec.calls[domain.LayerPreNavigation])
}

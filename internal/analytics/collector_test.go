package analytics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/luanmachadops/smartclass-telemetry/internal/domain"
)

// MockSink is a mock implementation of sink.Sink
type MockSink struct {
	mock.Mock
}

func (m *MockSink) WriteEvents(ctx context.Context, events []*domain.AnalyticsEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func (m *MockSink) WriteSession(ctx context.Context, session *domain.UserSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

// MockBuffer is a mock implementation of store.EventBuffer
type MockBuffer struct {
	mock.Mock
}

func (m *MockBuffer) SaveEvents(ctx context.Context, events []*domain.AnalyticsEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func (m *MockBuffer) LoadEvents(ctx context.Context) ([]*domain.AnalyticsEvent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.AnalyticsEvent), args.Error(1)
}

func (m *MockBuffer) ClearEvents(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// sessionStub is a minimal SessionContext for collector tests
type sessionStub struct {
	mu        sync.Mutex
	active    bool
	sessionID string
	userID    string
	schoolID  string
	page      domain.PageContext
	events    int
	pageViews int
}

func (s *sessionStub) Active() bool      { return s.active }
func (s *sessionStub) SessionID() string { return s.sessionID }
func (s *sessionStub) UserID() string    { return s.userID }
func (s *sessionStub) SchoolID() string  { return s.schoolID }
func (s *sessionStub) Page() domain.PageContext {
	return s.page
}
func (s *sessionStub) Identify(_ context.Context, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
}
func (s *sessionStub) SetSchool(_ context.Context, schoolID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schoolID = schoolID
}
func (s *sessionStub) NotePageView(page domain.PageContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageViews++
	s.page = page
}
func (s *sessionStub) NoteEvent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events++
}

func activeSession() *sessionStub {
	return &sessionStub{
		active:    true,
		sessionID: "sess-1",
		userID:    "user-1",
		schoolID:  "school-1",
		page: domain.PageContext{
			URL:       "https://app.example.com/dashboard",
			Path:      "/dashboard",
			UserAgent: "test-agent",
		},
	}
}

func testConfig() Config {
	return Config{
		Enabled:         true,
		SampleRate:      1.0,
		BatchSize:       50,
		FlushInterval:   10 * time.Second,
		DefaultCurrency: "BRL",
		DetachedTimeout: time.Second,
	}
}

func TestCollector_BatchSizeThresholdTriggersFlush(t *testing.T) {
	mockSink := new(MockSink)
	mockBuffer := new(MockBuffer)
	log := zap.NewNop()

	cfg := testConfig()
	cfg.BatchSize = 3

	mockBuffer.On("LoadEvents", mock.Anything).Return(nil, nil)
	mockSink.On("WriteEvents", mock.Anything, mock.MatchedBy(func(events []*domain.AnalyticsEvent) bool {
		return len(events) == 3
	})).Return(nil)

	collector := NewCollector(cfg, activeSession(), mockSink, mockBuffer, log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	collector.Start(ctx)

	collector.TrackEvent("first", domain.CategoryUserAction, nil, nil)
	collector.TrackEvent("second", domain.CategoryUserAction, nil, nil)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, collector.QueuedEvents())
	mockSink.AssertNotCalled(t, "WriteEvents", mock.Anything, mock.Anything)

	collector.TrackEvent("third", domain.CategoryUserAction, nil, nil)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, collector.QueuedEvents())
	mockSink.AssertNumberOfCalls(t, "WriteEvents", 1)
	mockSink.AssertExpectations(t)
}

func TestCollector_EventsKeepCallOrderWithinBatch(t *testing.T) {
	mockSink := new(MockSink)
	mockBuffer := new(MockBuffer)
	log := zap.NewNop()

	var delivered []string
	mockBuffer.On("LoadEvents", mock.Anything).Return(nil, nil)
	mockSink.On("WriteEvents", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		for _, event := range args.Get(1).([]*domain.AnalyticsEvent) {
			delivered = append(delivered, event.Name)
		}
	}).Return(nil)

	collector := NewCollector(testConfig(), activeSession(), mockSink, mockBuffer, log)

	collector.TrackEvent("a", domain.CategoryUserAction, nil, nil)
	collector.TrackEvent("b", domain.CategoryUserAction, nil, nil)
	collector.TrackEvent("c", domain.CategoryUserAction, nil, nil)

	err := collector.ForceFlush(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, delivered)
}

func TestCollector_TrackErrorFlushesImmediately(t *testing.T) {
	mockSink := new(MockSink)
	mockBuffer := new(MockBuffer)
	log := zap.NewNop()

	mockBuffer.On("LoadEvents", mock.Anything).Return(nil, nil)
	mockSink.On("WriteEvents", mock.Anything, mock.MatchedBy(func(events []*domain.AnalyticsEvent) bool {
		return len(events) == 1 && events[0].Category == domain.CategoryError
	})).Return(nil)

	collector := NewCollector(testConfig(), activeSession(), mockSink, mockBuffer, log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	collector.Start(ctx)

	collector.TrackError(assert.AnError, map[string]interface{}{"component": "scheduler"})

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, collector.QueuedEvents())
	mockSink.AssertExpectations(t)
}

func TestCollector_RealtimeModeFlushesEveryEvent(t *testing.T) {
	mockSink := new(MockSink)
	mockBuffer := new(MockBuffer)
	log := zap.NewNop()

	cfg := testConfig()
	cfg.RealtimeMode = true

	mockBuffer.On("LoadEvents", mock.Anything).Return(nil, nil)
	mockSink.On("WriteEvents", mock.Anything, mock.Anything).Return(nil)

	collector := NewCollector(cfg, activeSession(), mockSink, mockBuffer, log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	collector.Start(ctx)

	collector.TrackEvent("click", domain.CategoryUserAction, nil, nil)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, collector.QueuedEvents())
	mockSink.AssertCalled(t, "WriteEvents", mock.Anything, mock.Anything)
}

func TestCollector_NoActiveSessionDropsEvent(t *testing.T) {
	mockSink := new(MockSink)
	mockBuffer := new(MockBuffer)
	log := zap.NewNop()

	session := activeSession()
	session.active = false

	collector := NewCollector(testConfig(), session, mockSink, mockBuffer, log)

	collector.TrackEvent("orphan", domain.CategoryUserAction, nil, nil)

	assert.Equal(t, 0, collector.QueuedEvents())
	assert.Equal(t, 0, session.events)
}

func TestCollector_SampledOutIsSilentNoOp(t *testing.T) {
	mockSink := new(MockSink)
	mockBuffer := new(MockBuffer)
	log := zap.NewNop()

	cfg := testConfig()
	cfg.SampleRate = 0

	collector := NewCollector(cfg, activeSession(), mockSink, mockBuffer, log)

	collector.TrackEvent("sampled_out", domain.CategoryUserAction, nil, nil)
	collector.TrackPageView(domain.PageContext{URL: "https://app.example.com/"}, "Home")

	assert.Equal(t, 0, collector.QueuedEvents())
}

func TestCollector_UnserializablePropertiesDropped(t *testing.T) {
	mockSink := new(MockSink)
	mockBuffer := new(MockBuffer)
	log := zap.NewNop()

	collector := NewCollector(testConfig(), activeSession(), mockSink, mockBuffer, log)

	collector.TrackEvent("bad_props", domain.CategoryUserAction, map[string]interface{}{
		"channel": make(chan int),
	}, nil)

	assert.Equal(t, 0, collector.QueuedEvents())
}

func TestCollector_EnrichmentFromSessionContext(t *testing.T) {
	mockSink := new(MockSink)
	mockBuffer := new(MockBuffer)
	log := zap.NewNop()

	var captured *domain.AnalyticsEvent
	mockBuffer.On("LoadEvents", mock.Anything).Return(nil, nil)
	mockSink.On("WriteEvents", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).([]*domain.AnalyticsEvent)[0]
	}).Return(nil)

	collector := NewCollector(testConfig(), activeSession(), mockSink, mockBuffer, log)

	collector.TrackEvent("lesson_saved", domain.CategoryUserAction, nil, nil)
	assert.NoError(t, collector.ForceFlush(context.Background()))

	assert.NotNil(t, captured)
	assert.NotEmpty(t, captured.EventID)
	assert.Equal(t, "sess-1", captured.SessionID)
	assert.Equal(t, "user-1", captured.UserID)
	assert.Equal(t, "school-1", captured.SchoolID)
	assert.Equal(t, "/dashboard", captured.Path)
	assert.Equal(t, "test-agent", captured.UserAgent)
	assert.NotZero(t, captured.Timestamp)
}

func TestCollector_ConversionDefaultsCurrency(t *testing.T) {
	mockSink := new(MockSink)
	mockBuffer := new(MockBuffer)
	log := zap.NewNop()

	var captured *domain.AnalyticsEvent
	mockBuffer.On("LoadEvents", mock.Anything).Return(nil, nil)
	mockSink.On("WriteEvents", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).([]*domain.AnalyticsEvent)[0]
	}).Return(nil)

	collector := NewCollector(testConfig(), activeSession(), mockSink, mockBuffer, log)

	collector.TrackConversion("enrollment_paid", 249.90, "", nil)
	assert.NoError(t, collector.ForceFlush(context.Background()))

	assert.NotNil(t, captured)
	assert.Equal(t, domain.CategoryConversion, captured.Category)
	assert.Equal(t, 249.90, captured.Value)
	assert.Equal(t, "BRL", captured.Properties["currency"])
}

func TestCollector_PageViewBumpsCounterAndBaseline(t *testing.T) {
	mockSink := new(MockSink)
	mockBuffer := new(MockBuffer)
	log := zap.NewNop()

	session := activeSession()
	collector := NewCollector(testConfig(), session, mockSink, mockBuffer, log)

	collector.TrackPageView(domain.PageContext{URL: "https://app.example.com/students", Path: "/students"}, "Students")

	assert.Equal(t, 1, session.pageViews)
	assert.Equal(t, 1, session.events)
	assert.Equal(t, "/students", session.page.Path)
	assert.Equal(t, 1, collector.QueuedEvents())
}

func TestCollector_UpdateConfigPartial(t *testing.T) {
	mockSink := new(MockSink)
	mockBuffer := new(MockBuffer)
	log := zap.NewNop()

	collector := NewCollector(testConfig(), activeSession(), mockSink, mockBuffer, log)

	newBatch := 10
	newInterval := 5 * time.Second
	collector.UpdateConfig(ConfigUpdate{
		BatchSize:     &newBatch,
		FlushInterval: &newInterval,
	})

	cfg := collector.GetConfig()
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.FlushInterval)
	assert.True(t, cfg.Enabled)

	disabled := false
	collector.UpdateConfig(ConfigUpdate{Enabled: &disabled})

	collector.TrackEvent("after_disable", domain.CategoryUserAction, nil, nil)
	assert.Equal(t, 0, collector.QueuedEvents())
}

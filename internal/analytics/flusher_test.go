package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/luanmachadops/smartclass-telemetry/internal/domain"
)

func TestFlush_FailureRequeuesAndPersistsOffline(t *testing.T) {
	mockSink := new(MockSink)
	mockBuffer := new(MockBuffer)
	log := zap.NewNop()

	sinkErr := errors.New("endpoint unreachable")
	mockSink.On("WriteEvents", mock.Anything, mock.Anything).Return(sinkErr)
	mockBuffer.On("SaveEvents", mock.Anything, mock.MatchedBy(func(events []*domain.AnalyticsEvent) bool {
		return len(events) == 2
	})).Return(nil)

	collector := NewCollector(testConfig(), activeSession(), mockSink, mockBuffer, log)

	collector.TrackEvent("a", domain.CategoryUserAction, nil, nil)
	collector.TrackEvent("b", domain.CategoryUserAction, nil, nil)

	err := collector.ForceFlush(context.Background())
	assert.Error(t, err)
	assert.ErrorIs(t, err, sinkErr)

	// Failed batch is back at the front of the live queue
	assert.Equal(t, 2, collector.QueuedEvents())
	mockBuffer.AssertCalled(t, "SaveEvents", mock.Anything, mock.Anything)
}

func TestFlush_RequeuedBatchRetriesBeforeNewerEvents(t *testing.T) {
	mockSink := new(MockSink)
	mockBuffer := new(MockBuffer)
	log := zap.NewNop()

	var delivered []string
	mockSink.On("WriteEvents", mock.Anything, mock.Anything).Return(errors.New("down")).Once()
	mockSink.On("WriteEvents", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		for _, event := range args.Get(1).([]*domain.AnalyticsEvent) {
			delivered = append(delivered, event.Name)
		}
	}).Return(nil)
	mockBuffer.On("SaveEvents", mock.Anything, mock.Anything).Return(nil)
	mockBuffer.On("LoadEvents", mock.Anything).Return(nil, nil)

	collector := NewCollector(testConfig(), activeSession(), mockSink, mockBuffer, log)

	collector.TrackEvent("old", domain.CategoryUserAction, nil, nil)
	assert.Error(t, collector.ForceFlush(context.Background()))

	collector.TrackEvent("new", domain.CategoryUserAction, nil, nil)
	assert.NoError(t, collector.ForceFlush(context.Background()))

	assert.Equal(t, []string{"old", "new"}, delivered)
	assert.Equal(t, 0, collector.QueuedEvents())
}

func TestFlush_SuccessDrainsOfflineBuffer(t *testing.T) {
	mockSink := new(MockSink)
	mockBuffer := new(MockBuffer)
	log := zap.NewNop()

	buffered := []*domain.AnalyticsEvent{
		{EventID: "buffered-1", Name: "stale", Category: domain.CategoryUserAction},
	}

	mockSink.On("WriteEvents", mock.Anything, mock.Anything).Return(nil)
	mockBuffer.On("LoadEvents", mock.Anything).Return(buffered, nil)
	mockBuffer.On("ClearEvents", mock.Anything).Return(nil)

	collector := NewCollector(testConfig(), activeSession(), mockSink, mockBuffer, log)

	collector.TrackEvent("fresh", domain.CategoryUserAction, nil, nil)
	assert.NoError(t, collector.ForceFlush(context.Background()))

	// Live batch plus buffered batch, then the buffer is cleared
	mockSink.AssertNumberOfCalls(t, "WriteEvents", 2)
	mockBuffer.AssertCalled(t, "ClearEvents", mock.Anything)
}

func TestFlush_OfflineBufferKeptWhenRedeliveryFails(t *testing.T) {
	mockSink := new(MockSink)
	mockBuffer := new(MockBuffer)
	log := zap.NewNop()

	buffered := []*domain.AnalyticsEvent{
		{EventID: "buffered-1", Name: "stale", Category: domain.CategoryUserAction},
	}

	mockSink.On("WriteEvents", mock.Anything, mock.MatchedBy(func(events []*domain.AnalyticsEvent) bool {
		return events[0].Name == "fresh"
	})).Return(nil)
	mockSink.On("WriteEvents", mock.Anything, mock.MatchedBy(func(events []*domain.AnalyticsEvent) bool {
		return events[0].Name == "stale"
	})).Return(errors.New("still down"))
	mockBuffer.On("LoadEvents", mock.Anything).Return(buffered, nil)

	collector := NewCollector(testConfig(), activeSession(), mockSink, mockBuffer, log)

	collector.TrackEvent("fresh", domain.CategoryUserAction, nil, nil)
	assert.NoError(t, collector.ForceFlush(context.Background()))

	mockBuffer.AssertNotCalled(t, "ClearEvents", mock.Anything)
}

func TestFlush_EmptyQueueIsNoOp(t *testing.T) {
	mockSink := new(MockSink)
	mockBuffer := new(MockBuffer)
	log := zap.NewNop()

	collector := NewCollector(testConfig(), activeSession(), mockSink, mockBuffer, log)

	assert.NoError(t, collector.ForceFlush(context.Background()))
	mockSink.AssertNotCalled(t, "WriteEvents", mock.Anything, mock.Anything)
}

func TestFlush_PeriodicTimerDeliversQueue(t *testing.T) {
	mockSink := new(MockSink)
	mockBuffer := new(MockBuffer)
	log := zap.NewNop()

	cfg := testConfig()
	cfg.FlushInterval = 50 * time.Millisecond

	mockBuffer.On("LoadEvents", mock.Anything).Return(nil, nil)
	mockSink.On("WriteEvents", mock.Anything, mock.Anything).Return(nil)

	collector := NewCollector(cfg, activeSession(), mockSink, mockBuffer, log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	collector.Start(ctx)

	collector.TrackEvent("slow_burn", domain.CategoryUserAction, nil, nil)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 0, collector.QueuedEvents())
	mockSink.AssertCalled(t, "WriteEvents", mock.Anything, mock.Anything)
}

func TestFlush_StartupDrainsOfflineBuffer(t *testing.T) {
	mockSink := new(MockSink)
	mockBuffer := new(MockBuffer)
	log := zap.NewNop()

	buffered := []*domain.AnalyticsEvent{
		{EventID: "crash-1", Name: "from_last_run", Category: domain.CategoryUserAction},
	}

	mockBuffer.On("LoadEvents", mock.Anything).Return(buffered, nil)
	mockBuffer.On("ClearEvents", mock.Anything).Return(nil)
	mockSink.On("WriteEvents", mock.Anything, mock.Anything).Return(nil)

	collector := NewCollector(testConfig(), activeSession(), mockSink, mockBuffer, log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	collector.Start(ctx)

	time.Sleep(100 * time.Millisecond)
	mockSink.AssertCalled(t, "WriteEvents", mock.Anything, mock.Anything)
	mockBuffer.AssertCalled(t, "ClearEvents", mock.Anything)
}

func TestDestroy_FiresDetachedFinalFlush(t *testing.T) {
	mockSink := new(MockSink)
	mockBuffer := new(MockBuffer)
	log := zap.NewNop()

	flushed := make(chan []*domain.AnalyticsEvent, 1)
	mockSink.On("WriteEvents", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		flushed <- args.Get(1).([]*domain.AnalyticsEvent)
	}).Return(nil)

	collector := NewCollector(testConfig(), activeSession(), mockSink, mockBuffer, log)

	collector.TrackEvent("last_words", domain.CategoryUserAction, nil, nil)
	collector.Destroy()

	select {
	case batch := <-flushed:
		assert.Len(t, batch, 1)
		assert.Equal(t, "last_words", batch[0].Name)
	case <-time.After(time.Second):
		t.Fatal("detached flush never fired")
	}

	// Destroy is idempotent
	collector.Destroy()
	mockSink.AssertNumberOfCalls(t, "WriteEvents", 1)
}

func TestDestroy_StopsFlushLoop(t *testing.T) {
	mockSink := new(MockSink)
	mockBuffer := new(MockBuffer)
	log := zap.NewNop()

	mockBuffer.On("LoadEvents", mock.Anything).Return(nil, nil)

	collector := NewCollector(testConfig(), activeSession(), mockSink, mockBuffer, log)
	collector.Start(context.Background())

	time.Sleep(50 * time.Millisecond)
	collector.Destroy()

	// done channel is closed once the loop exits
	select {
	case <-collector.done:
	case <-time.After(time.Second):
		t.Fatal("flush loop did not stop")
	}
}

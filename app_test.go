package main

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traysites/config"
	"traysites/internal/site"
)

type recordedEvent struct {
	id   string
	name string
	data any
}

type fakeEmitter struct {
	mu     sync.Mutex
	open   bool
	events []recordedEvent
}

func (e *fakeEmitter) Emit(id, name string, data any) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return false
	}
	e.events = append(e.events, recordedEvent{id: id, name: name, data: data})
	return true
}

func TestPanelNotifierTargetsControlPanel(t *testing.T) {
	emitter := &fakeEmitter{open: true}
	n := &panelNotifier{emitter: emitter, logger: slog.Default()}

	n.SiteAdded(site.View{ID: "a1", URL: "https://example.com", State: site.StatusUninitialized})
	n.StatusChanged(site.View{ID: "a1", Status: 1, State: site.StatusReadyShown})
	n.SitesLoaded([]string{"https://example.com"})

	require.Len(t, emitter.events, 3)
	for _, ev := range emitter.events {
		assert.Equal(t, site.MainID, ev.id)
	}

	assert.Equal(t, EventSiteNew, emitter.events[0].name)
	assert.Equal(t, SiteNewEvent{ID: "a1", URL: "https://example.com", State: site.StatusUninitialized}, emitter.events[0].data)

	assert.Equal(t, EventSiteStatus, emitter.events[1].name)
	assert.Equal(t, SiteStatusEvent{ID: "a1", Status: 1, State: site.StatusReadyShown}, emitter.events[1].data)

	assert.Equal(t, EventSiteList, emitter.events[2].name)
	assert.Equal(t, SiteListEvent{List: []string{"https://example.com"}}, emitter.events[2].data)
}

func TestPanelNotifierPanelClosed(t *testing.T) {
	emitter := &fakeEmitter{}
	n := &panelNotifier{emitter: emitter, logger: slog.Default()}

	assert.NotPanics(t, func() {
		n.SiteAdded(site.View{ID: "a1"})
	})
	assert.Empty(t, emitter.events)

	var nilEmitter panelNotifier
	assert.NotPanics(t, func() {
		nilEmitter.StatusChanged(site.View{ID: "a1"})
	})
}

func TestCountSites(t *testing.T) {
	views := []site.View{
		{ID: site.MainID, Main: true, State: site.StatusReadyShown},
		{ID: "a", State: site.StatusReadyShown},
		{ID: "b", State: site.StatusReadyHidden},
		{ID: "c", State: site.StatusUninitialized},
	}

	total, shown := countSites(views)
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, shown)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m5s"},
		{2*time.Hour + 1*time.Minute + 400*time.Millisecond, "2h1m0s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.in))
	}
}

func TestSetupLoggerLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "warn"
	cfg.Logging.FileEnabled = false

	var out bytes.Buffer
	logs := setupLogger(cfg, &out)
	t.Cleanup(func() { _ = logs.simple.Close() })

	logs.logger.Info("hidden message")
	logs.logger.Warn("visible message")
	assert.NotContains(t, out.String(), "hidden message")
	assert.Contains(t, out.String(), "visible message")

	logs.level.Set(slog.LevelInfo)
	logs.logger.Info("now visible")
	assert.Contains(t, out.String(), "now visible")

	recent := logs.broadcast.GetRecentLogs(10)
	var messages []string
	for _, e := range recent {
		messages = append(messages, e.Message)
	}
	assert.Contains(t, strings.Join(messages, "\n"), "visible message")
}

func TestPlacementOptionsFromConfig(t *testing.T) {
	opts := placementOptions(config.WindowConfig{Margin: 10, WidthDivisor: 4, HeightDivisor: 2})
	assert.Equal(t, 10, opts.Margin)
	assert.Equal(t, 4.0, opts.WidthDivisor)
	assert.Equal(t, 2.0, opts.HeightDivisor)
}

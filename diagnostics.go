package room

import (
	"context"
	"log/slog"
	"time"
)

// LifecycleLogger mirrors runtime activity onto a slog.Logger: lifecycle
// transitions, per-event traffic, focus and cursor changes, and errors.
// Key, mouse, paste, tick and raw records are individually toggleable since
// ticks and mouse motion drown everything else at trace volume; resize
// records are always logged.
type LifecycleLogger struct {
	logger *slog.Logger
	level  slog.Level

	logKeys   bool
	logMouse  bool
	logPaste  bool
	logTicks  bool
	logRaw    bool
	logResize bool
}

// NewLifecycleLogger creates a logger plugin at Debug level with keys,
// paste, and resize logging on.
func NewLifecycleLogger(logger *slog.Logger) *LifecycleLogger {
	return &LifecycleLogger{
		logger:    logger,
		level:     slog.LevelDebug,
		logKeys:   true,
		logPaste:  true,
		logResize: true,
	}
}

// WithLevel sets the log level.
func (l *LifecycleLogger) WithLevel(level slog.Level) *LifecycleLogger {
	l.level = level
	return l
}

// LogKeys toggles key event records.
func (l *LifecycleLogger) LogKeys(on bool) *LifecycleLogger { l.logKeys = on; return l }

// LogMouse toggles mouse event records.
func (l *LifecycleLogger) LogMouse(on bool) *LifecycleLogger { l.logMouse = on; return l }

// LogPaste toggles paste event records.
func (l *LifecycleLogger) LogPaste(on bool) *LifecycleLogger { l.logPaste = on; return l }

// LogTicks toggles tick event records.
func (l *LifecycleLogger) LogTicks(on bool) *LifecycleLogger { l.logTicks = on; return l }

// LogRaw toggles raw passthrough records.
func (l *LifecycleLogger) LogRaw(on bool) *LifecycleLogger { l.logRaw = on; return l }

func (l *LifecycleLogger) Name() string { return "room:diagnostics.lifecycle" }

func (l *LifecycleLogger) log(message string, attrs ...any) {
	l.logger.Log(context.Background(), l.level, message, attrs...)
}

func (l *LifecycleLogger) Init(*RuntimeContext) error {
	l.log("lifecycle", "stage", "init")
	return nil
}

func (l *LifecycleLogger) OnBoot(*RuntimeContext) error {
	l.log("lifecycle", "stage", "boot")
	return nil
}

func (l *LifecycleLogger) OnUserReady(*RuntimeContext) error {
	l.log("lifecycle", "stage", "user_ready")
	return nil
}

func (l *LifecycleLogger) OnUserEnd(*RuntimeContext) error {
	l.log("lifecycle", "stage", "user_end")
	return nil
}

func (l *LifecycleLogger) OnCleanup(*RuntimeContext) error {
	l.log("lifecycle", "stage", "cleanup")
	return nil
}

func (l *LifecycleLogger) OnEvent(_ *RuntimeContext, event Event) (EventFlow, error) {
	switch ev := event.(type) {
	case KeyEvent:
		if l.logKeys {
			l.log("event", "kind", "key", "code", int(ev.Code), "rune", string(ev.Rune))
		}
	case MouseEvent:
		if l.logMouse {
			l.log("event", "kind", "mouse", "x", ev.X, "y", ev.Y)
		}
	case PasteEvent:
		if l.logPaste {
			l.log("event", "kind", "paste", "bytes", len(ev.Text))
		}
	case TickEvent:
		if l.logTicks {
			l.log("event", "kind", "tick", "elapsed", ev.Elapsed)
		}
	case ResizeEvent:
		if l.logResize {
			l.log("event", "kind", "resize", "width", ev.Size.Width, "height", ev.Size.Height)
		}
	case RawEvent:
		if l.logRaw {
			l.log("event", "kind", "raw", "bytes", len(ev.Bytes))
		}
	}
	return FlowContinue, nil
}

func (l *LifecycleLogger) OnFocusChange(_ *RuntimeContext, change FocusChange) error {
	attrs := []any{}
	if change.From != nil {
		attrs = append(attrs, "from", change.From.Zone)
	}
	if change.To != nil {
		attrs = append(attrs, "to", change.To.Zone)
	}
	l.log("focus_changed", attrs...)
	return nil
}

func (l *LifecycleLogger) OnCursorChange(_ *RuntimeContext, event CursorEvent) error {
	l.log("cursor",
		"row", event.Cursor.Row,
		"col", event.Cursor.Col,
		"visible", event.Cursor.Visible)
	return nil
}

func (l *LifecycleLogger) OnError(_ *RuntimeContext, err *RuntimeError) error {
	l.logger.Error("runtime_error",
		"category", string(err.Category),
		"source", err.Source,
		"message", err.Message,
		"recoverable", err.Recoverable)
	return nil
}

// MetricsSnapshotPlugin emits periodic metrics snapshots from tick traffic.
type MetricsSnapshotPlugin struct {
	logger   *slog.Logger
	metrics  *RuntimeMetrics
	interval time.Duration
	started  time.Time
	lastEmit time.Time
}

// NewMetricsSnapshotPlugin creates a snapshot plugin with a 5s interval.
func NewMetricsSnapshotPlugin(logger *slog.Logger, metrics *RuntimeMetrics) *MetricsSnapshotPlugin {
	return &MetricsSnapshotPlugin{logger: logger, metrics: metrics, interval: 5 * time.Second}
}

// WithInterval sets the snapshot cadence.
func (p *MetricsSnapshotPlugin) WithInterval(interval time.Duration) *MetricsSnapshotPlugin {
	p.interval = interval
	return p
}

func (p *MetricsSnapshotPlugin) Name() string { return "room:diagnostics.metrics" }

func (p *MetricsSnapshotPlugin) Init(*RuntimeContext) error {
	now := time.Now()
	p.started = now
	p.lastEmit = now
	return nil
}

func (p *MetricsSnapshotPlugin) OnTick(_ *RuntimeContext, _ TickEvent) error {
	if p.interval <= 0 {
		return nil
	}
	now := time.Now()
	if now.Sub(p.lastEmit) < p.interval {
		return nil
	}
	p.lastEmit = now
	snapshot := p.metrics.Snapshot(now.Sub(p.started))
	p.logger.Info("metrics_snapshot", "metrics", snapshot)
	return nil
}

package room

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// AuditStage names a runtime state transition or per-event bookend. Stages
// from a single runtime form a total order.
type AuditStage int

const (
	StageRuntimeConstructed AuditStage = iota
	StageOpen
	StageBootstrapStarted
	StageBoot
	StageSetup
	StageUserReady
	StageLoopIn
	StageLoopOut
	StageUserEnd
	StageCleanup
	StageEnd
	StageClose
	StageError
	StageRecoverOrFatal
	StageFatal
	StageFatalCleanup
	StageFatalClose
	StageCursorMoved
	StageCursorShown
	StageCursorHidden
	StageFocusChanged
	StagePluginRegistered
	StagePluginInitialized
	StageEventDispatched
	StageTickDispatched
	StageRenderCommitted
	StageRenderSkipped
	StageLoopGuardTriggered
	StageLoopAborted
	StageLoopSimulated
	StageLoopSimulatedComplete
	StageLoopSimulatedAborted
	StageRuntimeStopped
)

var auditStageNames = [...]string{
	StageRuntimeConstructed:    "runtime_constructed",
	StageOpen:                  "open",
	StageBootstrapStarted:      "bootstrap_started",
	StageBoot:                  "boot",
	StageSetup:                 "setup",
	StageUserReady:             "user_ready",
	StageLoopIn:                "loop_in",
	StageLoopOut:               "loop_out",
	StageUserEnd:               "user_end",
	StageCleanup:               "cleanup",
	StageEnd:                   "end",
	StageClose:                 "close",
	StageError:                 "error",
	StageRecoverOrFatal:        "recover_or_fatal",
	StageFatal:                 "fatal",
	StageFatalCleanup:          "fatal_cleanup",
	StageFatalClose:            "fatal_close",
	StageCursorMoved:           "cursor_moved",
	StageCursorShown:           "cursor_shown",
	StageCursorHidden:          "cursor_hidden",
	StageFocusChanged:          "focus_changed",
	StagePluginRegistered:      "plugin_registered",
	StagePluginInitialized:     "plugin_initialized",
	StageEventDispatched:       "event_dispatched",
	StageTickDispatched:        "tick_dispatched",
	StageRenderCommitted:       "render_committed",
	StageRenderSkipped:         "render_skipped",
	StageLoopGuardTriggered:    "loop_guard_triggered",
	StageLoopAborted:           "loop_aborted",
	StageLoopSimulated:         "loop_simulated",
	StageLoopSimulatedComplete: "loop_simulated_complete",
	StageLoopSimulatedAborted:  "loop_simulated_aborted",
	StageRuntimeStopped:        "runtime_stopped",
}

func (s AuditStage) String() string {
	if s < 0 || int(s) >= len(auditStageNames) {
		return "unknown"
	}
	return auditStageNames[s]
}

// Field is one key/value pair of an audit record.
type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Fields is an order-preserving map of string keys to JSON-shaped values.
// Marshaling keeps insertion order, unlike a Go map.
type Fields []Field

// MarshalJSON emits a JSON object in field order.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(field.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the first value stored under key.
func (f Fields) Get(key string) (any, bool) {
	for _, field := range f {
		if field.Key == key {
			return field.Value, true
		}
	}
	return nil, false
}

// AuditEvent is one structured audit record.
type AuditEvent struct {
	Time   time.Time
	Stage  AuditStage
	Fields Fields
}

// AuditSink receives ordered audit records. Records are emitted
// synchronously from the coordinator goroutine; sinks must tolerate
// repeated receipt of cursor/focus stages without side effects on the
// runtime.
type AuditSink interface {
	Record(AuditEvent)
}

// NullAudit discards every record. Used when auditing is disabled.
type NullAudit struct{}

func (NullAudit) Record(AuditEvent) {}

// SlogAudit bridges the audit bus onto a slog.Logger, one record per stage.
type SlogAudit struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogAudit creates a bridge logging at Debug level.
func NewSlogAudit(logger *slog.Logger) *SlogAudit {
	return &SlogAudit{logger: logger, level: slog.LevelDebug}
}

// WithLevel sets the level records are logged at.
func (a *SlogAudit) WithLevel(level slog.Level) *SlogAudit {
	a.level = level
	return a
}

func (a *SlogAudit) Record(event AuditEvent) {
	attrs := make([]slog.Attr, 0, len(event.Fields)+1)
	attrs = append(attrs, slog.String("stage", event.Stage.String()))
	for _, field := range event.Fields {
		attrs = append(attrs, slog.Any(field.Key, field.Value))
	}
	a.logger.LogAttrs(context.Background(), a.level, "audit", attrs...)
}

// BootstrapAudit buffers records until the runtime reaches a release stage,
// then flushes the buffer in order and passes records straight through.
// The default release stage is UserReady, so observers see a coherent first
// frame before the stream starts. If the runtime stops before the release
// stage fires, the buffer is flushed on RuntimeStopped so no records are
// lost.
type BootstrapAudit struct {
	inner   AuditSink
	release AuditStage

	mu        sync.Mutex
	buffering bool
	buffer    []AuditEvent
}

// NewBootstrapAudit wraps inner, releasing once UserReady fires.
func NewBootstrapAudit(inner AuditSink) *BootstrapAudit {
	return NewBootstrapAuditAt(inner, StageUserReady)
}

// NewBootstrapAuditAt wraps inner, releasing once the given stage fires.
func NewBootstrapAuditAt(inner AuditSink, release AuditStage) *BootstrapAudit {
	return &BootstrapAudit{inner: inner, release: release, buffering: true}
}

// Release flushes buffered records even if the release stage never fired.
func (b *BootstrapAudit) Release() {
	b.mu.Lock()
	if !b.buffering {
		b.mu.Unlock()
		return
	}
	b.buffering = false
	buffered := b.buffer
	b.buffer = nil
	b.mu.Unlock()

	for _, event := range buffered {
		b.inner.Record(event)
	}
}

func (b *BootstrapAudit) Record(event AuditEvent) {
	b.mu.Lock()
	if b.buffering {
		b.buffer = append(b.buffer, event)
		if event.Stage == b.release || event.Stage == StageRuntimeStopped {
			b.buffering = false
			buffered := b.buffer
			b.buffer = nil
			b.mu.Unlock()
			for _, held := range buffered {
				b.inner.Record(held)
			}
			return
		}
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	b.inner.Record(event)
}

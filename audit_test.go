package room

import (
	"encoding/json"
	"testing"
	"time"
)

type stageCollector struct {
	stages []AuditStage
}

func (c *stageCollector) Record(event AuditEvent) {
	c.stages = append(c.stages, event.Stage)
}

func event(stage AuditStage) AuditEvent {
	return AuditEvent{Time: time.Now(), Stage: stage}
}

func TestBootstrapAuditBuffersUntilUserReady(t *testing.T) {
	sink := &stageCollector{}
	audit := NewBootstrapAudit(sink)

	audit.Record(event(StageOpen))
	audit.Record(event(StageBoot))
	if len(sink.stages) != 0 {
		t.Fatalf("events must buffer before release, got %v", sink.stages)
	}

	audit.Record(event(StageUserReady))
	want := []AuditStage{StageOpen, StageBoot, StageUserReady}
	if len(sink.stages) != len(want) {
		t.Fatalf("got %v, want %v", sink.stages, want)
	}
	for i := range want {
		if sink.stages[i] != want[i] {
			t.Fatalf("flush out of order: got %v, want %v", sink.stages, want)
		}
	}
}

func TestBootstrapAuditPassthroughAfterRelease(t *testing.T) {
	sink := &stageCollector{}
	audit := NewBootstrapAudit(sink)
	audit.Record(event(StageUserReady))
	audit.Record(event(StageLoopIn))
	if len(sink.stages) != 2 || sink.stages[1] != StageLoopIn {
		t.Fatalf("post-release events must pass straight through: %v", sink.stages)
	}
}

func TestBootstrapAuditCustomReleaseStage(t *testing.T) {
	sink := &stageCollector{}
	audit := NewBootstrapAuditAt(sink, StageRenderCommitted)
	audit.Record(event(StageOpen))
	audit.Record(event(StageRenderCommitted))
	if len(sink.stages) != 2 {
		t.Fatalf("custom release stage ignored: %v", sink.stages)
	}
}

func TestBootstrapAuditFlushesOnRuntimeStopped(t *testing.T) {
	sink := &stageCollector{}
	audit := NewBootstrapAudit(sink)
	audit.Record(event(StageOpen))
	audit.Record(event(StageRuntimeStopped))
	if len(sink.stages) != 2 {
		t.Fatal("a run that stops before UserReady must not lose events")
	}
}

func TestBootstrapAuditManualRelease(t *testing.T) {
	sink := &stageCollector{}
	audit := NewBootstrapAudit(sink)
	audit.Record(event(StageOpen))
	audit.Release()
	if len(sink.stages) != 1 {
		t.Fatal("manual release must flush the buffer")
	}
	audit.Release()
	if len(sink.stages) != 1 {
		t.Fatal("second release must be a no-op")
	}
}

func TestFieldsMarshalPreservesOrder(t *testing.T) {
	fields := Fields{
		F("zebra", 1),
		F("apple", "two"),
		F("mango", true),
	}
	data, err := json.Marshal(fields)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"zebra":1,"apple":"two","mango":true}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestFieldsMarshalNested(t *testing.T) {
	fields := Fields{F("error", Fields{
		F("category", "render"),
		F("recoverable", false),
	})}
	data, err := json.Marshal(fields)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"error":{"category":"render","recoverable":false}}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestAuditStageNames(t *testing.T) {
	cases := map[AuditStage]string{
		StageUserReady:             "user_ready",
		StageLoopIn:                "loop_in",
		StageRecoverOrFatal:        "recover_or_fatal",
		StageFatalClose:            "fatal_close",
		StageLoopSimulatedComplete: "loop_simulated_complete",
	}
	for stage, want := range cases {
		if got := stage.String(); got != want {
			t.Errorf("%d: got %q, want %q", stage, got, want)
		}
	}
}

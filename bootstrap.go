package room

import (
	"bytes"
	"fmt"
	"time"
)

// BootstrapControls gives callers fine-grained control over the bootstrap
// phase: present the first frame before the interactive driver runs, pump
// synthetic ticks, gate startup on the first key event, or capture the
// first rendered frame to a buffer. Obtain one with Runtime.BootstrapControls.
type BootstrapControls struct {
	runtime             *Runtime
	sink                OutputSink
	firstFramePresented bool
	iterations          int
	iterationCap        int
}

// bootstrapControlCap bounds how many loop iterations the controls may
// drive before handing execution to a driver.
const bootstrapControlCap = 10_000

// BootstrapControls runs Open → Boot → Setup without forcing the first
// render, returning a handle that stages it explicitly.
func (r *Runtime) BootstrapControls(sink OutputSink) (*BootstrapControls, error) {
	if r.bootstrapped {
		return nil, fmt.Errorf("runtime already bootstrapped")
	}
	if err := r.bootstrapPrepare(sink); err != nil {
		return nil, err
	}
	return &BootstrapControls{
		runtime:      r,
		sink:         sink,
		iterationCap: bootstrapControlCap,
	}, nil
}

// bootstrapPrepare is Bootstrap minus the first render.
func (r *Runtime) bootstrapPrepare(sink OutputSink) error {
	now := time.Now()
	r.start = now
	r.lastMetricsEmit = now

	r.auditRecord(StageOpen, nil)
	r.logStage("open")
	r.auditRecord(StageBootstrapStarted, Fields{
		F("plugins", len(r.plugins)),
		F("zones", len(r.rects)),
	})

	r.auditRecord(StageBoot, nil)
	r.logStage("boot")
	r.notifyPlugins(func(p Plugin, ctx *RuntimeContext) (bool, error) {
		hook, ok := p.(BootHook)
		if !ok {
			return false, nil
		}
		return true, hook.OnBoot(ctx)
	})

	for _, entry := range r.plugins {
		init, ok := entry.plugin.(Initializer)
		if !ok {
			continue
		}
		r.invokeHook(entry, func(ctx *RuntimeContext) error { return init.Init(ctx) })
		r.auditRecord(StagePluginInitialized, Fields{
			F("plugin", entry.name),
			F("priority", entry.priority),
		})
		if r.fatalActive {
			break
		}
	}
	r.processPendingErrors()

	if !r.fatalActive {
		r.applyConfiguredFocus()
		r.auditRecord(StageSetup, nil)
		r.logStage("setup")
		r.notifyPlugins(func(p Plugin, ctx *RuntimeContext) (bool, error) {
			hook, ok := p.(SetupHook)
			if !ok {
				return false, nil
			}
			return true, hook.OnSetup(ctx)
		})
		r.processPendingErrors()
	}

	r.bootstrapped = true
	if r.fatalActive {
		r.Finalize(sink)
		if r.lastFatal != nil {
			return r.lastFatal
		}
		return fmt.Errorf("bootstrap failed")
	}
	return nil
}

// PresentFirstFrame renders the first frame if it has not been presented.
func (c *BootstrapControls) PresentFirstFrame() error {
	if c.firstFramePresented {
		return nil
	}
	c.runtime.renderIfNeeded(c.sink)
	c.firstFramePresented = true
	if c.runtime.fatalActive {
		return c.runtime.lastFatal
	}
	return nil
}

// DispatchEvent feeds one event through the loop and renders any updates.
func (c *BootstrapControls) DispatchEvent(event Event) error {
	if err := c.countIteration(); err != nil {
		return err
	}
	if err := c.runtime.Step(event, c.sink); err != nil {
		return err
	}
	c.firstFramePresented = true
	if c.runtime.fatalActive {
		return c.runtime.lastFatal
	}
	return nil
}

// DispatchTick feeds one synthetic tick and renders any updates.
func (c *BootstrapControls) DispatchTick(elapsed time.Duration) error {
	if err := c.DispatchEvent(TickEvent{Elapsed: elapsed, At: time.Now()}); err != nil {
		return err
	}
	c.runtime.auditRecord(StageTickDispatched, nil)
	return nil
}

// RunTicks pumps a fixed number of synthetic ticks.
func (c *BootstrapControls) RunTicks(count int, interval time.Duration) error {
	for i := 0; i < count; i++ {
		if err := c.DispatchTick(interval); err != nil {
			return err
		}
	}
	return nil
}

// GateOnFirstKeyEvent pulls events from the provider until the first key
// event has been dispatched. The provider returning a nil event means "no
// event yet".
func (c *BootstrapControls) GateOnFirstKeyEvent(nextEvent func() (Event, error)) error {
	for {
		event, err := nextEvent()
		if err != nil {
			return err
		}
		if event == nil {
			if err := c.countIteration(); err != nil {
				return err
			}
			continue
		}
		_, isKey := event.(KeyEvent)
		if err := c.DispatchEvent(event); err != nil {
			return err
		}
		if isKey {
			return nil
		}
	}
}

// CaptureFirstFrame renders the first frame into a buffer instead of the
// control's sink and returns the bytes.
func (c *BootstrapControls) CaptureFirstFrame() ([]byte, error) {
	if c.firstFramePresented {
		return nil, fmt.Errorf("first frame already presented")
	}
	var buf bytes.Buffer
	c.runtime.renderIfNeeded(NewSink(&buf))
	c.firstFramePresented = true
	if c.runtime.fatalActive {
		return nil, c.runtime.lastFatal
	}
	return buf.Bytes(), nil
}

// Finish ensures the first frame is presented and hands execution back to
// the caller's driver.
func (c *BootstrapControls) Finish() error {
	return c.PresentFirstFrame()
}

func (c *BootstrapControls) countIteration() error {
	c.iterations++
	if c.iterations > c.iterationCap {
		return fmt.Errorf("bootstrap controls exceeded %d iterations", c.iterationCap)
	}
	return nil
}

// Command auditdemo runs a bounded simulated session and prints the audit
// trail, demonstrating lifecycle instrumentation without a terminal.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"room"
)

func main() {
	ticks := flag.Int("ticks", 3, "simulated tick iterations")
	limit := flag.Uint64("limit", 0, "loop iteration limit (0 = unset)")
	flag.Parse()

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.TimeOnly,
	}))

	config := room.DefaultConfig()
	config.Audit = room.NewBootstrapAudit(room.NewSlogAudit(logger).WithLevel(slog.LevelInfo))
	config.Logger = logger
	config.DefaultFocusZone = "demo:status"
	config.LoopIterationLimit = *limit
	config.SimulatedLoop = room.SimulatedTicks(*ticks)

	layout := room.FixedLayout{
		"demo:status": room.NewRect(0, 0, 40, 1),
		"demo:body":   room.NewRect(0, 1, 40, 3),
	}

	rt, err := room.NewRuntimeWithConfig(layout, room.NewSize(40, 4), config)
	if err != nil {
		fmt.Fprintln(os.Stderr, "runtime:", err)
		os.Exit(1)
	}
	if err := rt.RegisterPlugin(&tickerPlugin{}); err != nil {
		fmt.Fprintln(os.Stderr, "plugin:", err)
		os.Exit(1)
	}

	var frame bytes.Buffer
	if err := rt.Run(room.NewSink(&frame)); err != nil {
		fmt.Fprintln(os.Stderr, "run:", err)
		os.Exit(1)
	}
	fmt.Printf("rendered %d bytes across the session\n", frame.Len())
}

type tickerPlugin struct {
	ticks int
}

func (p *tickerPlugin) Name() string { return "demo:ticker" }

func (p *tickerPlugin) Init(ctx *room.RuntimeContext) error {
	ctx.SetZone("demo:status", "Simulated session starting")
	ctx.SetZone("demo:body", "waiting for ticks")
	return nil
}

func (p *tickerPlugin) OnEvent(ctx *room.RuntimeContext, event room.Event) (room.EventFlow, error) {
	if _, ok := event.(room.TickEvent); !ok {
		return room.FlowContinue, nil
	}
	p.ticks++
	ctx.SetZone("demo:body", fmt.Sprintf("ticks observed: %d", p.ticks))
	return room.FlowConsumed, nil
}

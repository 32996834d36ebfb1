package room

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// SimulatedLoop bounds a driverless run. When set on the config, Run
// executes the loop for MaxIterations iterations against the provided sink,
// optionally dispatching a synthetic tick each iteration.
type SimulatedLoop struct {
	MaxIterations int
	DispatchTicks bool
}

// SimulatedTicks runs n iterations, each dispatching a tick.
func SimulatedTicks(n int) *SimulatedLoop {
	return &SimulatedLoop{MaxIterations: n, DispatchTicks: true}
}

// SimulatedSilent runs n iterations with no events.
func SimulatedSilent(n int) *SimulatedLoop {
	return &SimulatedLoop{MaxIterations: n}
}

// RuntimeConfig carries the coordinator's knobs.
type RuntimeConfig struct {
	// TickInterval is the expected tick cadence. Informative only; drivers
	// own the actual timer.
	TickInterval time.Duration
	// Audit receives every lifecycle stage. Nil disables auditing.
	Audit AuditSink
	// Logger receives runtime diagnostics. Nil disables them.
	Logger *slog.Logger
	// Metrics, when set, accumulates loop counters.
	Metrics *RuntimeMetrics
	// MetricsInterval is the cadence of metrics snapshot log records. Zero
	// disables snapshots.
	MetricsInterval time.Duration
	// DefaultFocusZone receives focus automatically once Boot completes.
	DefaultFocusZone ZoneID
	// LoopIterationLimit is a safety cap on loop iterations for all loop
	// modes. Zero means unset.
	LoopIterationLimit uint64
	// SimulatedLoop, when set, makes Run execute in simulated mode.
	SimulatedLoop *SimulatedLoop
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() RuntimeConfig {
	return RuntimeConfig{
		TickInterval:    200 * time.Millisecond,
		MetricsInterval: 5 * time.Second,
	}
}

// fileConfig is the TOML shape LoadConfig reads.
type fileConfig struct {
	TickIntervalMS     int    `toml:"tick_interval_ms"`
	DefaultFocusZone   string `toml:"default_focus_zone"`
	LoopIterationLimit uint64 `toml:"loop_iteration_limit"`
	Simulated          struct {
		Mode       string `toml:"mode"`
		Iterations int    `toml:"iterations"`
	} `toml:"simulated"`
}

// LoadConfig reads a TOML config file into a RuntimeConfig, starting from
// DefaultConfig. Unknown keys are rejected so typos surface early.
func LoadConfig(path string) (RuntimeConfig, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("read config: %w", err)
	}

	var file fileConfig
	meta, err := toml.Decode(string(data), &file)
	if err != nil {
		return config, fmt.Errorf("parse config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return config, fmt.Errorf("parse config: unknown key %q", undecoded[0].String())
	}

	if file.TickIntervalMS > 0 {
		config.TickInterval = time.Duration(file.TickIntervalMS) * time.Millisecond
	}
	config.DefaultFocusZone = file.DefaultFocusZone
	config.LoopIterationLimit = file.LoopIterationLimit
	switch file.Simulated.Mode {
	case "":
	case "ticks":
		config.SimulatedLoop = SimulatedTicks(file.Simulated.Iterations)
	case "silent":
		config.SimulatedLoop = SimulatedSilent(file.Simulated.Iterations)
	default:
		return config, fmt.Errorf("parse config: unknown simulated mode %q", file.Simulated.Mode)
	}
	return config, nil
}

package machine

import "github.com/caarlos0/env/v6"

// Config tunes the VM's stack bounds and garbage collector, read from the
// environment the way a production Go service tunes runtime knobs without a
// config file (spec.md §3, §4.5 for the defaults this mirrors).
type Config struct {
	StackMaxValues  int     `env:"VON_STACK_MAX_VALUES" envDefault:"16384"`
	StackMaxFrames  int     `env:"VON_STACK_MAX_FRAMES" envDefault:"64"`
	GCInitialThresh int     `env:"VON_GC_INITIAL_THRESHOLD" envDefault:"1048576"`
	GCGrowFactor    float64 `env:"VON_GC_GROW_FACTOR" envDefault:"2.0"`
	TraceGC         bool    `env:"VON_TRACE_GC" envDefault:"false"`
	TraceExec       bool    `env:"VON_TRACE_EXEC" envDefault:"false"`
}

// NewConfig reads Config from the environment, falling back to the defaults
// above for anything unset.
func NewConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

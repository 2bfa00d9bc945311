package streampipe

import "github.com/flowlane/streampipe/stage"

// Params configures a Stage. Passing multiple Params to a constructor
// keeps only the last one rather than merging fields across them.
type Params struct {
	// Workers is the number of private goroutines to spawn for a New
	// (non-shared-pool) Stage. Ignored by NewWithPool. Zero means 1.
	Workers int
	// StageName tags transform errors and pool task diagnostics.
	StageName string
	// OnError decides, per transform error, whether the stage continues
	// processing further input. A nil OnError continues by default.
	OnError stage.OnError
	// BufferHint pre-sizes the stage's output streamq, when the expected
	// throughput is known ahead of time, to avoid reallocation as items
	// accumulate. Zero uses the streamq default.
	BufferHint int
}

// DefaultParams returns the Params used when none are supplied.
func DefaultParams() Params {
	return Params{Workers: 1}
}

func applyParams(params ...Params) Params {
	p := DefaultParams()
	for _, param := range params {
		p = param
	}
	if p.Workers <= 0 {
		p.Workers = 1
	}
	return p
}

package registry

import (
	"github.com/cuemby/accelschd/pkg/executor"
	"github.com/cuemby/accelschd/pkg/types"
)

// Model is a compiled DNN bound to exactly one entity, at one target
// frequency. Every field is immutable after LoadModel constructs it.
type Model struct {
	ID         types.ModelID
	EntityID   types.EntityID
	Freq       types.Frequency
	NumKernels int
	MaxPowerMW float64
	PowerMW    float64
	Executor   executor.Executor
}

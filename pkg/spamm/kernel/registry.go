// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gomlx/spamm/pkg/spamm/index"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"k8s.io/klog/v2"
)

// Priority of a registered kernel: when more than one kernel supports a layout, ForLayout returns the
// one with the highest priority.
type Priority int

const (
	// PriorityBase is the priority of the portable reference kernels.
	PriorityBase Priority = 0

	// PriorityExternal is the priority of kernels delegating to an external BLAS.
	PriorityExternal Priority = 10

	// PriorityTiled is the priority of the register-tiled in-tree kernels.
	PriorityTiled Priority = 20
)

// ErrUnknownKernel is returned when looking up a kernel name that is not registered.
var ErrUnknownKernel = errors.New("spamm: unknown kernel")

// ErrNoKernelForLayout is returned by ForLayout when no registered kernel supports the layout.
var ErrNoKernelForLayout = errors.New("spamm: no kernel supports layout")

type registration struct {
	priority Priority
	kernel   any
}

var (
	registryMu sync.RWMutex

	// registry maps the dtype name to the registered kernels, by name.
	registry = make(map[string]map[string]registration)

	// aliases maps alternative names, historically used to select kernels, to the registered names.
	aliases = map[string]string{
		"kernel_standard_SSE":    NameStandard,
		"kernel_standard_SSE4_1": NameStandard,
		"kernel_stream_NULL":     NameNaive,
		"kernel_Z_curve_SSE":     NameZCurve,
		"kernel_Z_curve_SSE4_1":  NameZCurve,
		"kernel_hierarchical":    NameZCurve,
	}
)

func dtypeName[T constraints.Float]() string {
	var zero T
	return fmt.Sprintf("%T", zero)
}

// Register a kernel for the float type T with the given priority.
// A kernel registered with the same name as a previous one replaces it.
func Register[T constraints.Float](k Kernel[T], priority Priority) {
	registryMu.Lock()
	defer registryMu.Unlock()
	dtype := dtypeName[T]()
	kernels, found := registry[dtype]
	if !found {
		kernels = make(map[string]registration)
		registry[dtype] = kernels
	}
	kernels[k.Name()] = registration{priority: priority, kernel: k}
	klog.V(2).Infof("spamm: registered dense kernel %q for %s with priority %d", k.Name(), dtype, priority)
}

// Lookup returns the kernel registered for T under the given name (or one of its historical aliases).
func Lookup[T constraints.Float](name string) (Kernel[T], error) {
	if alias, found := aliases[name]; found {
		name = alias
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	dtype := dtypeName[T]()
	r, found := registry[dtype][name]
	if !found {
		return nil, errors.Wrapf(ErrUnknownKernel, "%q for %s, registered kernels are %q", name, dtype, namesLocked(dtype))
	}
	return r.kernel.(Kernel[T]), nil
}

// ForLayout returns the highest priority kernel registered for T that supports the layout.
func ForLayout[T constraints.Float](layout index.Layout) (Kernel[T], error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	dtype := dtypeName[T]()
	var best Kernel[T]
	bestPriority := Priority(-1 << 31)
	for _, name := range namesLocked(dtype) {
		r := registry[dtype][name]
		k := r.kernel.(Kernel[T])
		if k.SupportsLayout(layout) && r.priority > bestPriority {
			best, bestPriority = k, r.priority
		}
	}
	if best == nil {
		return nil, errors.Wrapf(ErrNoKernelForLayout, "%s for %s", layout, dtype)
	}
	return best, nil
}

// Names returns the names of the kernels registered for T, the highest priority first.
func Names[T constraints.Float]() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return namesLocked(dtypeName[T]())
}

func namesLocked(dtype string) []string {
	kernels := registry[dtype]
	names := make([]string, 0, len(kernels))
	for name := range kernels {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if pa, pb := kernels[a].priority, kernels[b].priority; pa != pb {
			return int(pb - pa)
		}
		if a < b {
			return -1
		} else if a > b {
			return 1
		}
		return 0
	})
	return names
}

func init() {
	Register[float32](NewNaive[float32](), PriorityBase)
	Register[float64](NewNaive[float64](), PriorityBase)
	Register[float32](NewStandard[float32](), PriorityTiled)
	Register[float64](NewStandard[float64](), PriorityTiled)
	Register[float32](NewZCurve[float32](), PriorityTiled)
	Register[float64](NewZCurve[float64](), PriorityTiled)
	Register[float32](NewExternal(NameExternalSgemm, GonumGemm[float32]()), PriorityExternal)
	Register[float64](NewExternal(NameExternalSgemm, GonumGemm[float64]()), PriorityExternal)
}

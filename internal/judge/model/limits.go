package model

// ExecutionLimits are per-call execution bounds. They are never persisted;
// each call resolves them from configuration with overrides clamped to
// safe floors and ceilings.
type ExecutionLimits struct {
	TimeoutMs      int `json:"timeoutMs" yaml:"timeoutMs"`
	MemoryMB       int `json:"memoryMb" yaml:"memoryMb"`
	MaxOutputBytes int `json:"maxOutputBytes" yaml:"maxOutputBytes"`
}

const (
	minTimeoutMs = 100
	maxTimeoutMs = 60_000

	minMemoryMB = 16
	maxMemoryMB = 1024

	minOutputBytes = 1 << 10
	maxOutputBytes = 4 << 20
)

// DefaultLimits are applied when neither configuration nor the caller
// supplies a value.
func DefaultLimits() ExecutionLimits {
	return ExecutionLimits{
		TimeoutMs:      10_000,
		MemoryMB:       256,
		MaxOutputBytes: 64 << 10,
	}
}

// Resolve merges overrides onto the defaults and clamps every field to its
// safe range. Zero override fields keep the default.
func (base ExecutionLimits) Resolve(override *ExecutionLimits) ExecutionLimits {
	out := base
	if override != nil {
		if override.TimeoutMs > 0 {
			out.TimeoutMs = override.TimeoutMs
		}
		if override.MemoryMB > 0 {
			out.MemoryMB = override.MemoryMB
		}
		if override.MaxOutputBytes > 0 {
			out.MaxOutputBytes = override.MaxOutputBytes
		}
	}
	out.TimeoutMs = clamp(out.TimeoutMs, minTimeoutMs, maxTimeoutMs)
	out.MemoryMB = clamp(out.MemoryMB, minMemoryMB, maxMemoryMB)
	out.MaxOutputBytes = clamp(out.MaxOutputBytes, minOutputBytes, maxOutputBytes)
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

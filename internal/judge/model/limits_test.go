package model

import "testing"

func TestResolveKeepsDefaultsOnZeroOverride(t *testing.T) {
	base := DefaultLimits()

	for _, override := range []*ExecutionLimits{nil, {}} {
		got := base.Resolve(override)
		if got != base {
			t.Fatalf("Resolve(%+v) = %+v, want defaults %+v", override, got, base)
		}
	}
}

func TestResolveAppliesOverrides(t *testing.T) {
	got := DefaultLimits().Resolve(&ExecutionLimits{TimeoutMs: 5000, MemoryMB: 512})
	if got.TimeoutMs != 5000 || got.MemoryMB != 512 {
		t.Fatalf("got %+v", got)
	}
	if got.MaxOutputBytes != DefaultLimits().MaxOutputBytes {
		t.Fatalf("unset override field must keep the default, got %d", got.MaxOutputBytes)
	}
}

func TestResolveClamps(t *testing.T) {
	cases := []struct {
		name     string
		override ExecutionLimits
		want     ExecutionLimits
	}{
		{
			"below floors",
			ExecutionLimits{TimeoutMs: 1, MemoryMB: 1, MaxOutputBytes: 1},
			ExecutionLimits{TimeoutMs: 100, MemoryMB: 16, MaxOutputBytes: 1 << 10},
		},
		{
			"above ceilings",
			ExecutionLimits{TimeoutMs: 600_000, MemoryMB: 9999, MaxOutputBytes: 1 << 30},
			ExecutionLimits{TimeoutMs: 60_000, MemoryMB: 1024, MaxOutputBytes: 4 << 20},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DefaultLimits().Resolve(&tc.override); got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

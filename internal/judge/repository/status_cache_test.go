package repository

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"crucible/internal/common/cache"
	"crucible/internal/judge/model"
)

func newTestStatusCache(t *testing.T) (StatusCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCache(mr.Addr())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return NewStatusCache(c), mr
}

func TestStatusRoundTrip(t *testing.T) {
	sc, _ := newTestStatusCache(t)
	ctx := context.Background()

	err := sc.SetStatus(ctx, SubmissionStatusView{
		SubmissionID: "sub-1",
		Status:       model.JudgeRunning,
		RunID:        "run-1",
	})
	if err != nil {
		t.Fatal(err)
	}

	view, err := sc.GetStatus(ctx, "sub-1")
	if err != nil {
		t.Fatal(err)
	}
	if view == nil {
		t.Fatal("expected a cached view")
	}
	if view.Status != model.JudgeRunning || view.RunID != "run-1" {
		t.Fatalf("view = %+v", view)
	}
	if view.UpdatedAt.IsZero() {
		t.Fatal("SetStatus must stamp UpdatedAt")
	}
}

func TestStatusMissIsNilNotError(t *testing.T) {
	sc, _ := newTestStatusCache(t)

	view, err := sc.GetStatus(context.Background(), "never-seen")
	if err != nil {
		t.Fatal(err)
	}
	if view != nil {
		t.Fatalf("view = %+v, want nil on miss", view)
	}
}

func TestStatusEntriesExpire(t *testing.T) {
	sc, mr := newTestStatusCache(t)
	ctx := context.Background()

	if err := sc.SetStatus(ctx, SubmissionStatusView{SubmissionID: "sub-1", Status: model.JudgeQueued}); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL(StatusKey("sub-1")); ttl != statusTTL {
		t.Fatalf("ttl = %v, want %v", ttl, statusTTL)
	}

	mr.FastForward(statusTTL * 2)
	view, err := sc.GetStatus(ctx, "sub-1")
	if err != nil {
		t.Fatal(err)
	}
	if view != nil {
		t.Fatal("entry should be gone after the TTL")
	}
}

func TestJudgingEnabledDefaultsTrue(t *testing.T) {
	sc, _ := newTestStatusCache(t)

	enabled, err := sc.JudgingEnabled(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !enabled {
		t.Fatal("judging must default to enabled when the flag was never set")
	}
}

func TestJudgingEnabledFlagFlips(t *testing.T) {
	sc, _ := newTestStatusCache(t)
	ctx := context.Background()

	if err := sc.SetJudgingEnabled(ctx, false); err != nil {
		t.Fatal(err)
	}
	enabled, err := sc.JudgingEnabled(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if enabled {
		t.Fatal("flag should read disabled")
	}

	if err := sc.SetJudgingEnabled(ctx, true); err != nil {
		t.Fatal(err)
	}
	enabled, err = sc.JudgingEnabled(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !enabled {
		t.Fatal("flag should read enabled again")
	}
}

package history_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"signprep/internal/history"
	"signprep/internal/services"
	"signprep/internal/testsupport"
)

func TestRunLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	run, err := store.Begin(ctx, services.StageFrames)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if run.ID == "" || run.Status != history.StatusRunning {
		t.Fatalf("unexpected run %#v", run)
	}

	if err := store.RecordItem(ctx, run.ID, "greeting/hello", "ok", "", 15); err != nil {
		t.Fatalf("RecordItem failed: %v", err)
	}
	if err := store.RecordItem(ctx, run.ID, "greeting/broken", "tool_failed", "exit status 1", 0); err != nil {
		t.Fatalf("RecordItem failed: %v", err)
	}
	if err := store.Finish(ctx, run.ID, history.StatusSucceeded, "1 succeeded, 1 failed", nil); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	fetched, err := store.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched.Status != history.StatusSucceeded || fetched.FinishedAt == nil || fetched.ItemCount != 2 {
		t.Fatalf("unexpected fetched run %#v", fetched)
	}
	if fetched.Summary != "1 succeeded, 1 failed" || fetched.Duration() < 0 {
		t.Fatalf("unexpected summary %q", fetched.Summary)
	}

	items, err := store.Items(ctx, run.ID)
	if err != nil {
		t.Fatalf("Items failed: %v", err)
	}
	if len(items) != 2 || items[0].Key != "greeting/hello" || items[0].Count != 15 {
		t.Fatalf("unexpected items %#v", items)
	}
	if items[1].Outcome != "tool_failed" || items[1].Detail != "exit status 1" {
		t.Fatalf("unexpected failed item %#v", items[1])
	}
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	var ids []string
	for _, stage := range services.Stages() {
		run, err := store.Begin(ctx, stage)
		if err != nil {
			t.Fatalf("Begin(%s) failed: %v", stage, err)
		}
		ids = append(ids, run.ID)
	}

	runs, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Fatalf("unexpected recent runs %#v", runs)
	}

	all, err := store.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(all))
	}
}

func TestFinishUnknownRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	err := store.Finish(context.Background(), "missing", history.StatusFailed, "", nil)
	if !errors.Is(err, history.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, history.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound from Get, got %v", err)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	run, err := store.Begin(context.Background(), services.StageVerify)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := testsupport.MustOpenHistory(t, cfg)
	if _, err := reopened.Get(context.Background(), run.ID); err != nil {
		t.Fatalf("run lost after reopen: %v", err)
	}
}

func TestRecorderMapsOutcomes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	rec := history.StartRecorder(ctx, store, services.StageFrames, nil)
	rec.Item(ctx, "greeting/hello", nil, 15)
	rec.Item(ctx, "greeting/broken", services.Wrap(services.ErrExternalTool, services.StageFrames, "ffmpeg", "", nil), 0)
	rec.Outcome(ctx, "greeting/old", "skipped", "frames exist", 15)
	cancel()
	rec.Finish(ctx, "interrupted", context.Canceled)

	run, err := store.Get(context.Background(), rec.RunID())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if run.Status != history.StatusCancelled {
		t.Fatalf("expected cancelled run, got %s", run.Status)
	}
	items, err := store.Items(context.Background(), rec.RunID())
	if err != nil {
		t.Fatalf("Items failed: %v", err)
	}
	outcomes := []string{items[0].Outcome, items[1].Outcome, items[2].Outcome}
	if strings.Join(outcomes, ",") != "ok,tool_failed,skipped" {
		t.Fatalf("unexpected outcomes %v", outcomes)
	}
}

func TestRecorderWithoutStoreIsSilent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	rec := history.StartRecorder(context.Background(), nil, services.StageVerify, logger)
	rec.Item(context.Background(), "batch-1", nil, 50)
	rec.Finish(context.Background(), "done", errors.New("boom"))
	if rec.RunID() != "" {
		t.Fatalf("expected no run id, got %q", rec.RunID())
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no log output, got %s", buf.String())
	}
}

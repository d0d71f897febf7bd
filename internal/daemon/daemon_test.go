package daemon_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"merchbatch/internal/config"
	"merchbatch/internal/daemon"
	"merchbatch/internal/imagemap"
	"merchbatch/internal/job"
	"merchbatch/internal/jobstatus"
	"merchbatch/internal/logging"
	"merchbatch/internal/notifications"
	"merchbatch/internal/processor"
	"merchbatch/internal/services"
	"merchbatch/internal/testsupport"
)

func newDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, *job.Controller) {
	t.Helper()
	logger := logging.NewNop()
	controller := job.NewController(cfg, processor.NewCommand(cfg, logger), imagemap.New(), logger)
	d, err := daemon.New(cfg, controller, logger, "", notifications.NewNoop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	return d, controller
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutAPI())
	d, _ := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !d.Status(ctx).Running {
		t.Fatal("expected daemon to report running")
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	other, _ := newDaemon(t, cfg)
	if err := other.Start(ctx); err == nil {
		t.Fatal("expected lock to reject a second daemon instance")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonRunsStagedItems(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutAPI(), testsupport.WithProcessorScript(testsupport.AcceptingProcessor))
	d, controller := newDaemon(t, cfg)
	ctx := context.Background()

	if _, err := d.StartRun(ctx, daemon.RunRequest{}); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error without staged items, got %v", err)
	}

	path := testsupport.WriteProducts(t, testsupport.BaseDir(cfg), "Shirt", "Mug", "Hat")
	staged, err := d.StageFile(path)
	if err != nil {
		t.Fatalf("StageFile: %v", err)
	}
	if staged.Count != 3 || staged.ImagePaths[1] != "designs/Mug.png" {
		t.Fatalf("unexpected staged list: %+v", staged)
	}

	if err := d.SubmitImageMapping("designs/Mug.png", "/uploads/mug.png"); err != nil {
		t.Fatalf("SubmitImageMapping: %v", err)
	}
	runID, err := d.StartRun(ctx, daemon.RunRequest{})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := controller.Wait(waitCtx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	status := d.Status(ctx)
	if status.Job.RunID != runID || status.Job.State != jobstatus.StateCompleted || status.Job.Success != 3 {
		t.Fatalf("unexpected job status: %+v", status.Job)
	}
	if status.ImageMappings != 1 || status.StagedItems != 3 {
		t.Fatalf("unexpected daemon status: %+v", status)
	}
	if !status.Processor.Ready {
		t.Fatalf("expected processor to be ready, got %+v", status.Processor)
	}
}

func TestDaemonRejectsBadItemList(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutAPI())
	d, _ := newDaemon(t, cfg)

	good := testsupport.WriteProducts(t, testsupport.BaseDir(cfg), "Shirt")
	if _, err := d.StageFile(good); err != nil {
		t.Fatalf("StageFile: %v", err)
	}
	bad := testsupport.WriteCSV(t, testsupport.BaseDir(cfg), "bad.csv", []string{"title", "price"}, []string{"Shirt", "10"})
	if _, err := d.StageFile(bad); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
	if list, source := d.Staged(); len(list) != 1 || source != good {
		t.Fatalf("expected previous list to remain staged, got %d items from %q", len(list), source)
	}
}

func TestDaemonControlRequestsValidateState(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutAPI())
	d, _ := newDaemon(t, cfg)

	for name, fn := range map[string]func() error{"pause": d.PauseRun, "resume": d.ResumeRun, "stop": d.StopRun} {
		if err := fn(); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestDaemonTestNotificationWithoutTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutAPI())
	d, _ := newDaemon(t, cfg)
	sent, message, err := d.TestNotification(context.Background())
	if sent || err != nil || message != "ntfy topic not configured" {
		t.Fatalf("unexpected result: sent=%v message=%q err=%v", sent, message, err)
	}
}

package tuitest

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"
)

func TestRunStepWaitsForScreenText(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	out := &capture{}
	go func() {
		time.Sleep(50 * time.Millisecond)
		out.write([]byte("\x1b[1mAuthenticated\x1b[0m as testuser"))
	}()

	done := make(chan error, 1)
	go func() {
		done <- runStep(context.Background(), w, out, WaitFor("Authenticated as testuser", KeyCtrlC))
	}()

	buf := make([]byte, 1)
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatalf("read input: %v", err)
	}
	if buf[0] != KeyCtrlC[0] {
		t.Fatalf("expected ctrl+c, got %q", buf)
	}
	if err := <-done; err != nil {
		t.Fatalf("runStep: %v", err)
	}
}

func TestRunStepWaitForHonoursDeadline(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err = runStep(ctx, w, &capture{}, WaitFor("never shown", KeyEnter))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestRunRequiresCommand(t *testing.T) {
	if _, err := Run(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestWithDefaults(t *testing.T) {
	cfg := withDefaults(Config{Width: 80})
	if cfg.Width != 80 || cfg.Height != defaultHeight || cfg.Timeout != defaultTimeout {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

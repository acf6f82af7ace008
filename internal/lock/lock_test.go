package lock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/javanhut/castore/internal/xerrors"
)

func TestTryExclusiveExcludesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.lock")
	f1, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		t.Fatal(err)
	}
	defer f1.Close()
	f2, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		t.Fatal(err)
	}
	defer f2.Close()

	ok, err := Try(f1, Write)
	if err != nil || !ok {
		t.Fatalf("first Try: ok=%v err=%v", ok, err)
	}
	ok, err = Try(f2, Write)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected second exclusive Try to fail while first holds the lock")
	}

	if _, err := Try(f1, Unlock); err != nil {
		t.Fatal(err)
	}
	ok, err = Try(f2, Write)
	if err != nil || !ok {
		t.Fatalf("Try after unlock: ok=%v err=%v", ok, err)
	}
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.lock")
	f1, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		t.Fatal(err)
	}
	defer f1.Close()
	f2, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		t.Fatal(err)
	}
	defer f2.Close()

	if ok, err := Try(f1, Write); err != nil || !ok {
		t.Fatalf("Try: ok=%v err=%v", ok, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := Wait(ctx, f2, Write); err == nil {
		t.Error("expected Wait to fail once its context expires")
	}
}

func TestPathLocksAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")

	var holder PathLocks
	ok, err := holder.Lock(context.Background(), []string{a, b}, false)
	if err != nil || !ok {
		t.Fatalf("initial lock: ok=%v err=%v", ok, err)
	}
	holder.Unlock()

	// After release, the same paths can be re-acquired by this process.
	var next PathLocks
	ok, err = next.Lock(context.Background(), []string{a, b}, false)
	if err != nil || !ok {
		t.Fatalf("re-lock after unlock: ok=%v err=%v", ok, err)
	}
	next.Unlock()
}

func TestPathLocksRejectsDoubleLockFromSameProcess(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")

	var holder PathLocks
	ok, err := holder.Lock(context.Background(), []string{a}, false)
	if err != nil || !ok {
		t.Fatalf("initial lock: ok=%v err=%v", ok, err)
	}
	defer holder.Unlock()

	// Waiting on our own flock would never return, so the second attempt
	// must fail fast rather than block or silently succeed.
	var contender PathLocks
	if _, err := contender.Lock(context.Background(), []string{a}, true); err == nil {
		t.Error("expected a deadlock error re-locking a path this process holds")
	} else {
		var dead *xerrors.DeadlockError
		if !errors.As(err, &dead) {
			t.Errorf("expected DeadlockError, got %T: %v", err, err)
		}
	}
}

func TestPathLocksDetectsStaleLockFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a")
	lockPath := p + ".lock"
	if err := os.WriteFile(lockPath, []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}

	var holder PathLocks
	ok, err := holder.Lock(context.Background(), []string{p}, true)
	if err != nil || !ok {
		t.Fatalf("lock after stale detection: ok=%v err=%v", ok, err)
	}
	defer holder.Unlock()

	info, err := os.Stat(lockPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Errorf("expected stale content to be cleared, size = %d", info.Size())
	}
}

package notifier

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sqlite-burrito/burrito/pkg/logger"
)

type sent struct {
	title   string
	message string
}

type recorder struct {
	mu    sync.Mutex
	sent  []sent
	beeps int
	err   error
}

func newRecordingNotifier(config Config) (*BuildNotifier, *recorder) {
	rec := &recorder{}
	n := New(config, logger.NewNopLogger())
	n.notify = func(title, message, _ string) error {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.sent = append(rec.sent, sent{title: title, message: message})
		return rec.err
	}
	n.beep = func(float64, int) error {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.beeps++
		return nil
	}
	return n, rec
}

func TestNotifier_Success(t *testing.T) {
	n, rec := newRecordingNotifier(Config{Enabled: true, SuccessSound: "Glass"})

	n.NotifySuccess("ci Release", 5*time.Second)

	if len(rec.sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(rec.sent))
	}
	if rec.sent[0].title != "Build Succeeded" {
		t.Errorf("unexpected title %q", rec.sent[0].title)
	}
	if rec.sent[0].message != "ci Release finished in 5.0s" {
		t.Errorf("unexpected message %q", rec.sent[0].message)
	}
	if rec.beeps != 1 {
		t.Errorf("expected a beep for the success sound, got %d", rec.beeps)
	}
}

func TestNotifier_Failure(t *testing.T) {
	n, rec := newRecordingNotifier(Config{Enabled: true})

	n.NotifyFailure("ci Debug", fmt.Errorf("ctest exited with code 8"))

	if len(rec.sent) != 1 || !strings.Contains(rec.sent[0].message, "code 8") {
		t.Fatalf("unexpected notifications %+v", rec.sent)
	}
	if rec.beeps != 0 {
		t.Errorf("expected no beep without a failure sound, got %d", rec.beeps)
	}
}

func TestNotifier_Start(t *testing.T) {
	n, rec := newRecordingNotifier(Config{Enabled: true})

	n.NotifyStart("create")

	if len(rec.sent) != 1 || rec.sent[0].message != "Running create..." {
		t.Fatalf("unexpected notifications %+v", rec.sent)
	}
}

func TestNotifier_Disabled(t *testing.T) {
	n, rec := newRecordingNotifier(Config{Enabled: false, SuccessSound: "Glass"})

	n.NotifyStart("Test")
	n.NotifySuccess("Test", time.Second)
	n.NotifyFailure("Test", errors.New("test error"))

	if len(rec.sent) != 0 || rec.beeps != 0 {
		t.Errorf("disabled notifier sent %d notifications and %d beeps", len(rec.sent), rec.beeps)
	}
	if n.Enabled() {
		t.Error("expected notifier to report disabled")
	}
}

func TestNotifier_SendErrorIsNotFatal(t *testing.T) {
	n, rec := newRecordingNotifier(Config{Enabled: true})
	rec.err = errors.New("no notification daemon")

	n.NotifyFailure("Test", nil)

	if len(rec.sent) != 1 {
		t.Errorf("expected the send to be attempted once, got %d", len(rec.sent))
	}
}

func TestNotifier_ConcurrentNotifications(t *testing.T) {
	n, rec := newRecordingNotifier(Config{Enabled: true})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			n.NotifySuccess(fmt.Sprintf("Target-%d", idx), time.Second)
		}(i)
	}
	wg.Wait()

	if len(rec.sent) != 5 {
		t.Errorf("expected 5 notifications, got %d", len(rec.sent))
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[time.Duration]string{
		250 * time.Millisecond:  "250ms",
		1500 * time.Millisecond: "1.5s",
		125 * time.Second:       "2m5s",
	}
	for d, want := range cases {
		if got := formatDuration(d); got != want {
			t.Errorf("formatDuration(%s) = %q, want %q", d, got, want)
		}
	}
}

func BenchmarkNotifier_Disabled(b *testing.B) {
	n := New(Config{Enabled: false}, logger.NewNopLogger())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		n.NotifySuccess("Benchmark", time.Second)
	}
}

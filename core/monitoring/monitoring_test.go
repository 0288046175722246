package monitoring

import (
	"errors"
	"testing"
)

func TestInitAndCapture(t *testing.T) {
	mem := &Memory{}
	prev := Init(mem)
	defer Init(prev)

	CaptureException(errors.New("boom"), map[string]string{"component": "scheduler"})
	ev := mem.Events()
	if len(ev) != 1 || ev[0].Tags["component"] != "scheduler" {
		t.Fatalf("unexpected events %+v", ev)
	}
	if Init(nil) != mem {
		t.Fatalf("nil monitor must keep the current one")
	}
}

func TestRecoverReportsAndRepanics(t *testing.T) {
	mem := &Memory{}
	prev := Init(mem)
	defer Init(prev)

	func() {
		defer func() {
			if r := recover(); r != "boom" {
				t.Fatalf("expected re-panic, got %v", r)
			}
		}()
		func() {
			defer Recover()
			panic("boom")
		}()
	}()
	ev := mem.Events()
	if len(ev) != 1 || ev[0].Panic != "boom" {
		t.Fatalf("panic not reported: %+v", ev)
	}
}

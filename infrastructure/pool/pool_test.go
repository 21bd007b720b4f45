package pool

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dispatchkit/fleet/domain/dispatch"
	"github.com/dispatchkit/fleet/infrastructure/pool/fakeworker"
)

func fakeFactory(id string) (WorkerProc, error) {
	return fakeworker.New(id)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MinWorkers = 1
	cfg.MaxWorkers = 2
	cfg.TaskTimeout = 2 * time.Second
	cfg.IdleWaitBound = time.Second
	return cfg
}

func TestPool_ExecuteSucceeds(t *testing.T) {
	p, err := New(testConfig(), fakeFactory)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Shutdown()

	d := dispatch.New(dispatch.Bundle{
		Fingerprint: "fp-1",
		Payload:     json.RawMessage(`{"op":"add","args":[2,3]}`),
	}, 1, 1, time.Second)

	result, err := p.Execute(context.Background(), d)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	var value float64
	if err := json.Unmarshal(result.Payload, &value); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if value != 5 {
		t.Errorf("value = %v, want 5", value)
	}

	total, idle := p.Size()
	if total != 1 || idle != 1 {
		t.Errorf("Size() = (%d, %d), want (1, 1) after release", total, idle)
	}
}

func TestPool_SpawnsUpToMaxWorkers(t *testing.T) {
	p, err := New(testConfig(), fakeFactory)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Shutdown()

	slow := json.RawMessage(`{"op":"add","args":[1,1]}`)
	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		go func() {
			d := dispatch.New(dispatch.Bundle{Fingerprint: "fp", Payload: slow}, 1, 1, 2*time.Second)
			_, _ = p.Execute(context.Background(), d)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 2; i++ {
		<-done
	}

	total, _ := p.Size()
	if total > 2 {
		t.Errorf("Size().total = %d, want <= 2 (MaxWorkers)", total)
	}
}

func TestPool_ExecuteFailsOnInvalidProgram(t *testing.T) {
	p, err := New(testConfig(), fakeFactory)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Shutdown()

	d := dispatch.New(dispatch.Bundle{
		Fingerprint: "fp-2",
		Payload:     json.RawMessage(`not json`),
	}, 1, 1, time.Second)

	_, err = p.Execute(context.Background(), d)
	if err == nil {
		t.Fatal("Execute() error = nil, want transient error")
	}
}

func TestPool_ShutdownTerminatesWorkers(t *testing.T) {
	p, err := New(testConfig(), fakeFactory)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	p.Shutdown()

	total, idle := p.Size()
	if total != 0 || idle != 0 {
		t.Errorf("Size() after Shutdown() = (%d, %d), want (0, 0)", total, idle)
	}
}

package logger

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeSink struct {
	mu      sync.Mutex
	batches [][]Record
}

func (f *fakeSink) Name() string { return "fake" }

func (f *fakeSink) Write(_ context.Context, records []Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, records)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func TestLogger_DropsDebugUnlessVerbose(t *testing.T) {
	sink := &fakeSink{}
	l := New(context.Background(), nil, sink)
	defer l.Close()

	l.Log(Debug, "gateway", "debug message", nil)
	l.Close()

	if sink.count() != 0 {
		t.Fatalf("expected debug record to be dropped, got %d", sink.count())
	}
}

func TestLogger_VerboseAllowsDebug(t *testing.T) {
	sink := &fakeSink{}
	l := New(context.Background(), nil, sink)
	l.SetVerbose(true)

	l.Log(Debug, "gateway", "debug message", nil)
	l.Close()

	if sink.count() != 1 {
		t.Fatalf("expected debug record to pass once verbose, got %d", sink.count())
	}
}

func TestLogger_MasksAPIKeyLikeMetadata(t *testing.T) {
	sink := &fakeSink{}
	l := New(context.Background(), nil, sink)

	l.Log(Info, "gateway", "calling provider", map[string]any{
		"ProviderAPIKey": "super-secret",
		"provider":       "openai",
	})
	l.Close()

	if sink.count() != 1 {
		t.Fatalf("expected one record, got %d", sink.count())
	}
	rec := sink.batches[0][0]
	if rec.Metadata["ProviderAPIKey"] != "********" {
		t.Fatalf("expected apikey-like value masked, got %v", rec.Metadata["ProviderAPIKey"])
	}
	if rec.Metadata["provider"] != "openai" {
		t.Fatalf("expected unrelated metadata preserved, got %v", rec.Metadata["provider"])
	}
}

func TestLogger_FlushesOnTicker(t *testing.T) {
	sink := &fakeSink{}
	l := New(context.Background(), nil, sink)
	defer l.Close()

	l.Log(Info, "gateway", "one record", nil)

	deadline := time.Now().Add(3 * time.Second)
	for sink.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if sink.count() != 1 {
		t.Fatalf("expected the periodic flush to deliver the record, got %d", sink.count())
	}
}

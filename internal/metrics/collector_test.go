package metrics

import (
	"testing"
	"time"
)

func TestCollector_RecordTiming(t *testing.T) {
	c := NewCollector()

	c.RecordTiming(OpLoad, 100*time.Millisecond)
	c.RecordTiming(OpLoad, 300*time.Millisecond)

	snap := c.Snapshot()
	if snap.Load == nil {
		t.Fatal("Load snapshot missing")
	}
	if snap.Load.Count != 2 {
		t.Errorf("Count = %d, want 2", snap.Load.Count)
	}
	if snap.Load.MinTimeMs != 100 || snap.Load.MaxTimeMs != 300 {
		t.Errorf("min/max = %d/%d, want 100/300", snap.Load.MinTimeMs, snap.Load.MaxTimeMs)
	}
	if snap.Load.AvgTimeMs != 200 {
		t.Errorf("AvgTimeMs = %f, want 200", snap.Load.AvgTimeMs)
	}
}

func TestCollector_RecordExchange(t *testing.T) {
	c := NewCollector()

	c.RecordExchange(time.Second, 10, 100)
	c.RecordExchange(2*time.Second, 30, 50)

	snap := c.Snapshot()
	if snap.Exchange == nil {
		t.Fatal("Exchange snapshot missing")
	}
	if snap.Exchange.TotalInputTokens == nil || *snap.Exchange.TotalInputTokens != 40 {
		t.Errorf("TotalInputTokens = %v, want 40", snap.Exchange.TotalInputTokens)
	}
	if snap.Exchange.TotalOutputTokens == nil || *snap.Exchange.TotalOutputTokens != 150 {
		t.Errorf("TotalOutputTokens = %v, want 150", snap.Exchange.TotalOutputTokens)
	}
	if *snap.Exchange.MinInputTokens != 10 || *snap.Exchange.MaxInputTokens != 30 {
		t.Errorf("input min/max = %d/%d", *snap.Exchange.MinInputTokens, *snap.Exchange.MaxInputTokens)
	}
	if *snap.Exchange.AvgOutputTokens != 75 {
		t.Errorf("AvgOutputTokens = %f, want 75", *snap.Exchange.AvgOutputTokens)
	}
}

func TestCollector_EmptySnapshot(t *testing.T) {
	c := NewCollector()

	snap := c.Snapshot()
	if snap.Exchange != nil || snap.Load != nil || snap.CacheRead != nil || snap.CacheWrite != nil {
		t.Error("empty collector produced operation snapshots")
	}
	if snap.UptimeSeconds < 0 {
		t.Errorf("UptimeSeconds = %f", snap.UptimeSeconds)
	}
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	c := NewCollector()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				c.RecordExchange(time.Millisecond, 1, 2)
				c.RecordTiming(OpCacheRead, time.Microsecond)
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	snap := c.Snapshot()
	if snap.Exchange.Count != 800 {
		t.Errorf("Exchange.Count = %d, want 800", snap.Exchange.Count)
	}
	if snap.CacheRead.Count != 800 {
		t.Errorf("CacheRead.Count = %d, want 800", snap.CacheRead.Count)
	}
}

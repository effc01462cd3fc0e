package snowflake

import (
	"sync"
	"testing"
	"time"
)

// TestNewGenerator_WorkerIDRange mirrors how app.New derives a Generator: one per
// process, seeded from config.Config.WorkerID (0-1023, 0 in single-process
// dev deployments).
func TestNewGenerator_WorkerIDRange(t *testing.T) {
	tests := []struct {
		name     string
		workerID int64
		wantErr  bool
	}{
		{"dev default worker 0", 0, false},
		{"worker 1", 1, false},
		{"max worker 1023", 1023, false},
		{"negative worker id", -1, true},
		{"worker id past 10 bits", 1024, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGenerator(tt.workerID)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewGenerator(%d) error = %v, wantErr %v", tt.workerID, err, tt.wantErr)
			}
		})
	}
}

// TestGenerate_JobIDsUnique exercises jobqueue.Queue's actual usage: one
// shared Generator minting every CleanupJob/CategorizationJob id across all
// users, so two jobs enqueued back to back must never collide even though
// neither carries a user-supplied id of its own.
func TestGenerate_JobIDsUnique(t *testing.T) {
	gen, err := NewGenerator(1)
	if err != nil {
		t.Fatal(err)
	}

	jobIDs := make(map[int64]bool)
	const enqueued = 10000

	for i := 0; i < enqueued; i++ {
		id, err := gen.Generate()
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if jobIDs[id] {
			t.Fatalf("duplicate job id generated: %d", id)
		}
		jobIDs[id] = true
	}
}

// TestGenerate_ConcurrentWorkers models jobqueue.Queue.Enqueue being called
// for many registered users concurrently off the same Generator instance —
// the generator's mutex must hold under that contention without ever
// handing out the same job id twice.
func TestGenerate_ConcurrentWorkers(t *testing.T) {
	gen, err := NewGenerator(1)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	seen := sync.Map{}
	const registeredUsers = 10
	const jobsPerUser = 1000

	for i := 0; i < registeredUsers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < jobsPerUser; j++ {
				id, err := gen.Generate()
				if err != nil {
					t.Errorf("Generate() error = %v", err)
					return
				}
				if _, loaded := seen.LoadOrStore(id, true); loaded {
					t.Errorf("duplicate job id: %d", id)
					return
				}
			}
		}()
	}

	wg.Wait()

	count := 0
	seen.Range(func(_, _ interface{}) bool {
		count++
		return true
	})

	want := registeredUsers * jobsPerUser
	if count != want {
		t.Errorf("expected %d unique job ids, got %d", want, count)
	}
}

// TestGenerate_JobIDsAscending confirms that job ids minted back to back
// increase monotonically, so ordering jobs by job_id matches enqueue order.
func TestGenerate_JobIDsAscending(t *testing.T) {
	gen, err := NewGenerator(1)
	if err != nil {
		t.Fatal(err)
	}

	var ids []int64
	for i := 0; i < 100; i++ {
		id, err := gen.Generate()
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		ids = append(ids, id)
		time.Sleep(time.Microsecond * 10)
	}

	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Errorf("job ids not ascending: ids[%d]=%d <= ids[%d]=%d", i, ids[i], i-1, ids[i-1])
		}
	}
}

// TestParse_RoundTripsWorkerID checks that, given only a job id, Parse
// recovers which worker process minted it
// and when, without a side lookup.
func TestParse_RoundTripsWorkerID(t *testing.T) {
	const workerID = 42
	gen, err := NewGenerator(workerID)
	if err != nil {
		t.Fatal(err)
	}

	beforeGen := time.Now()
	id, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	afterGen := time.Now()

	ts, gotWorkerID, seq := Parse(id)

	if gotWorkerID != workerID {
		t.Errorf("workerID = %d, want %d", gotWorkerID, workerID)
	}
	if seq != 0 {
		t.Errorf("sequence = %d, want 0 (first id minted this millisecond)", seq)
	}
	if ts.Before(beforeGen.Add(-time.Second)) || ts.After(afterGen.Add(time.Second)) {
		t.Errorf("timestamp %v not in expected range [%v, %v]", ts, beforeGen, afterGen)
	}
}

func TestTimestamp_MatchesGenerationTime(t *testing.T) {
	gen, err := NewGenerator(1)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	id, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	ts := Timestamp(id)

	diff := ts.Sub(now)
	if diff < -time.Second || diff > time.Second {
		t.Errorf("Timestamp diff = %v, want within 1s", diff)
	}
}

// TestGenerate_ClockMovedBack confirms a job enqueue surfaces
// ErrClockMovedBack rather than silently minting a duplicate or
// out-of-order job id if the host clock steps backward (e.g. NTP
// correction) between two Enqueue calls.
func TestGenerate_ClockMovedBack(t *testing.T) {
	gen, err := NewGenerator(1)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := gen.Generate(); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	gen.lastTime = currentTimeMillis() + int64(time.Hour/time.Millisecond)

	if _, err := gen.Generate(); err != ErrClockMovedBack {
		t.Errorf("Generate() error = %v, want ErrClockMovedBack", err)
	}
}

func BenchmarkGenerate_JobEnqueue(b *testing.B) {
	gen, err := NewGenerator(1)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		gen.Generate()
	}
}

func BenchmarkGenerate_ConcurrentEnqueue(b *testing.B) {
	gen, err := NewGenerator(1)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			gen.Generate()
		}
	})
}

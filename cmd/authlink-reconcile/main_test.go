package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/MrEthical07/authlink/association"
	"github.com/MrEthical07/authlink/association/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func seedOneSided(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := redisstore.NewStore(rdb, "")
	err = store.PutAuthIDRecords(context.Background(), []*association.AuthIDRecord{{AuthID: "a1", UserID: "u1"}})
	if err != nil {
		t.Fatalf("PutAuthIDRecords failed: %v", err)
	}

	t.Setenv("AUTHLINK_REDIS_ADDR", mr.Addr())
	return mr
}

func TestRunOnceRepairsAndPrintsReport(t *testing.T) {
	mr := seedOneSided(t)

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"-once"}, &stdout, &stderr); err != nil {
		t.Fatalf("run failed: %v (stderr=%s)", err, stderr.String())
	}

	var summary sweepSummary
	if err := json.Unmarshal(stdout.Bytes(), &summary); err != nil {
		t.Fatalf("decode output %q: %v", stdout.String(), err)
	}
	if len(summary.Repaired) != 1 || summary.Repaired[0].UserID != "u1" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if !mr.Exists("al:uid:u1") {
		t.Fatal("expected user-side record after sweep")
	}
}

func TestRunRejectsBadSchedule(t *testing.T) {
	seedOneSided(t)

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"-schedule", "whenever"}, &stdout, &stderr); err == nil {
		t.Fatal("expected invalid schedule to fail")
	}
}

func TestRunScheduledStopsOnCancel(t *testing.T) {
	seedOneSided(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var stdout, stderr bytes.Buffer
	go func() {
		done <- run(ctx, []string{"-schedule", "@every 1h"}, &stdout, &stderr)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestRunStoreUnreachable(t *testing.T) {
	t.Setenv("AUTHLINK_REDIS_ADDR", "127.0.0.1:1")

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"-once"}, &stdout, &stderr); err == nil {
		t.Fatal("expected ping failure")
	}
}

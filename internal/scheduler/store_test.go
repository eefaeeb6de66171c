// Copyright 2025 James Ross
package scheduler

import "testing"

func TestStoreDequeueStrictPriorityOrder(t *testing.T) {
	s := NewStore()
	jobs := map[string]*Job{
		"bg":   {JobID: "bg", Priority: PriorityBackground},
		"low":  {JobID: "low", Priority: PriorityLow},
		"norm": {JobID: "norm", Priority: PriorityNormal},
		"hi":   {JobID: "hi", Priority: PriorityHigh},
	}
	for _, id := range []string{"bg", "low", "norm", "hi"} {
		s.enqueue(jobs[id])
	}

	order := []string{}
	for {
		id, ok := s.dequeueNext()
		if !ok {
			break
		}
		order = append(order, id)
	}

	want := []string{"hi", "norm", "low", "bg"}
	if len(order) != len(want) {
		t.Fatalf("expected %d dequeues, got %d: %v", len(want), len(order), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("dequeue order = %v, want %v", order, want)
		}
	}
}

func TestStoreFIFOWithinPriority(t *testing.T) {
	s := NewStore()
	a := &Job{JobID: "a", Priority: PriorityNormal}
	b := &Job{JobID: "b", Priority: PriorityNormal}
	s.enqueue(a)
	s.enqueue(b)

	first, _ := s.dequeueNext()
	second, _ := s.dequeueNext()
	if first != "a" || second != "b" {
		t.Fatalf("expected FIFO order a,b — got %s,%s", first, second)
	}
}

func TestStoreEnqueueDedup(t *testing.T) {
	s := NewStore()
	job := &Job{JobID: "x", Priority: PriorityNormal}
	s.enqueue(job)
	s.enqueue(job)

	if s.queueDepths()[PriorityNormal] != 1 {
		t.Fatalf("expected dedup to keep depth at 1, got %d", s.queueDepths()[PriorityNormal])
	}
}

func TestStoreRequeueAfterDequeueAllowsReEnqueue(t *testing.T) {
	s := NewStore()
	job := &Job{JobID: "x", Priority: PriorityNormal}
	s.enqueue(job)
	s.dequeueNext()
	s.enqueue(job) // re-queue at tail, e.g. after a failed-to-fit scan

	if s.queueDepths()[PriorityNormal] != 1 {
		t.Fatalf("expected job re-queueable after being popped, got depth %d", s.queueDepths()[PriorityNormal])
	}
}

func TestStoreQueueDepthsAndTotalQueued(t *testing.T) {
	s := NewStore()
	s.enqueue(&Job{JobID: "a", Priority: PriorityHigh})
	s.enqueue(&Job{JobID: "b", Priority: PriorityHigh})
	s.enqueue(&Job{JobID: "c", Priority: PriorityLow})

	depths := s.queueDepths()
	if depths[PriorityHigh] != 2 || depths[PriorityLow] != 1 || depths[PriorityNormal] != 0 {
		t.Fatalf("unexpected depths: %+v", depths)
	}
	if s.totalQueued() != 3 {
		t.Fatalf("expected totalQueued=3, got %d", s.totalQueued())
	}
}

func TestOwnerFromTags(t *testing.T) {
	if got := OwnerFromTags([]string{"env:prod", "owner:team-a", "x"}); got != "team-a" {
		t.Fatalf("expected owner team-a, got %q", got)
	}
	if got := OwnerFromTags([]string{"env:prod"}); got != "" {
		t.Fatalf("expected empty owner when no owner tag present, got %q", got)
	}
}

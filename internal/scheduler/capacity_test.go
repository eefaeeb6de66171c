// Copyright 2025 James Ross
package scheduler

import "testing"

func TestCapacityUsableCurve(t *testing.T) {
	cases := []struct {
		busy int
		want int
	}{
		{0, 95}, {2, 95}, {3, 75}, {4, 60}, {5, 45},
		{6, 30}, {7, 20}, {8, 10}, {9, 5}, {10, 0},
	}
	model := CapacityModel{TotalUnits: 100, ReserveUnits: 5, HeadroomPct: 0}
	for _, c := range cases {
		if got := model.Usable(c.busy); got != c.want {
			t.Errorf("Usable(%d) = %d, want %d", c.busy, got, c.want)
		}
	}
}

func TestCapacityUsableNeverNegative(t *testing.T) {
	model := CapacityModel{TotalUnits: 10, ReserveUnits: 50, HeadroomPct: 0}
	if got := model.Usable(0); got != 0 {
		t.Fatalf("expected usable clamped to 0, got %d", got)
	}
}

func TestCapacityUsableHeadroom(t *testing.T) {
	model := CapacityModel{TotalUnits: 100, ReserveUnits: 0, HeadroomPct: 0.2}
	if got := model.Usable(0); got != 80 {
		t.Fatalf("expected 20%% headroom shaving to 80, got %d", got)
	}
}

func TestCapacityUsableClampsOutOfRangeBusy(t *testing.T) {
	model := CapacityModel{TotalUnits: 100, ReserveUnits: 0, HeadroomPct: 0}
	if got := model.Usable(-1); got != model.Usable(0) {
		t.Fatalf("expected negative busy clamped to 0")
	}
	if got := model.Usable(99); got != model.Usable(10) {
		t.Fatalf("expected out-of-range busy clamped to 10")
	}
}

func TestAvailable(t *testing.T) {
	if got := Available(100, 40); got != 60 {
		t.Fatalf("expected 60, got %d", got)
	}
	if got := Available(40, 100); got != 0 {
		t.Fatalf("expected available clamped to 0 when leased exceeds usable, got %d", got)
	}
}

package model

import (
    "testing"
    "time"
)

func TestCanTransition(t *testing.T) {
    cases := []struct {
        from, to Status
        want     bool
    }{
        {StatusPending, StatusConfirmed, true},
        {StatusPending, StatusCancelled, true},
        {StatusPending, StatusFinished, false},
        {StatusConfirmed, StatusFinished, true},
        {StatusConfirmed, StatusCancelled, true},
        {StatusConfirmed, StatusPending, false},
        {StatusCancelled, StatusConfirmed, false},
        {StatusCancelled, StatusCancelled, false},
        {StatusFinished, StatusCancelled, false},
    }
    for _, tc := range cases {
        if got := CanTransition(tc.from, tc.to); got != tc.want {
            t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
        }
    }
}

func TestTerminal(t *testing.T) {
    for _, s := range []Status{StatusPending, StatusConfirmed} {
        if s.Terminal() {
            t.Errorf("%s should not be terminal", s)
        }
    }
    for _, s := range []Status{StatusCancelled, StatusFinished} {
        if !s.Terminal() {
            t.Errorf("%s should be terminal", s)
        }
    }
    if Status("ARCHIVED").Valid() {
        t.Error("unknown status reported valid")
    }
}

func TestOverlapsIsHalfOpen(t *testing.T) {
    day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
    b := Booking{StartDate: day, EndDate: day.AddDate(0, 0, 3)}

    if b.Overlaps(day.AddDate(0, 0, 3), day.AddDate(0, 0, 5)) {
        t.Error("adjacent window must not overlap")
    }
    if !b.Overlaps(day.AddDate(0, 0, 2), day.AddDate(0, 0, 5)) {
        t.Error("intersecting window must overlap")
    }
    if !b.Overlaps(day.AddDate(0, 0, -1), day.AddDate(0, 0, 10)) {
        t.Error("enclosing window must overlap")
    }
}

func TestNewPage(t *testing.T) {
    p := NewPage([]int{1, 2}, 5, 0, 2)
    if p.TotalPages != 3 || p.TotalElements != 5 || p.Size != 2 || p.Number != 0 {
        t.Fatalf("unexpected page: %+v", p)
    }
    empty := NewPage[int](nil, 0, 0, 10)
    if !empty.Empty() || empty.Content == nil || empty.TotalPages != 0 {
        t.Fatalf("unexpected empty page: %+v", empty)
    }
}

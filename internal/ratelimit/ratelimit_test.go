package ratelimit

import "testing"

func TestMemoryLimiter_NoPlanAlwaysAllows(t *testing.T) {
	l := NewMemoryLimiter()
	allowed, limit, remaining, reset := l.Admit("1.2.3.4", 0)
	if !allowed || limit != 0 || remaining != 0 || reset != 0 {
		t.Fatalf("expected (true,0,0,0) with no plan, got (%v,%d,%d,%d)", allowed, limit, remaining, reset)
	}
}

func TestMemoryLimiter_AdmitsUpToLimit(t *testing.T) {
	l := NewMemoryLimiter()
	l.SetPlan(&Plan{RequestsPerWindow: 2, WindowSeconds: 60})

	allowed, limit, remaining, _ := l.Admit("1.1.1.1", 0)
	if !allowed || limit != 2 || remaining != 1 {
		t.Fatalf("1st request: expected (true,2,1), got (%v,%d,%d)", allowed, limit, remaining)
	}

	allowed, _, remaining, _ = l.Admit("1.1.1.1", 1)
	if !allowed || remaining != 0 {
		t.Fatalf("2nd request: expected (true,remaining=0), got (%v,%d)", allowed, remaining)
	}

	allowed, _, remaining, reset := l.Admit("1.1.1.1", 2)
	if allowed {
		t.Fatal("3rd request should be denied")
	}
	if remaining != 0 {
		t.Fatalf("expected remaining=0 on denial, got %d", remaining)
	}
	if reset != 58 {
		t.Fatalf("expected resetSeconds=58, got %d", reset)
	}
}

func TestMemoryLimiter_WindowResets(t *testing.T) {
	l := NewMemoryLimiter()
	l.SetPlan(&Plan{RequestsPerWindow: 1, WindowSeconds: 10})

	l.Admit("2.2.2.2", 0)
	allowed, _, _, _ := l.Admit("2.2.2.2", 5)
	if allowed {
		t.Fatal("expected denial within the same window")
	}

	allowed, _, remaining, _ := l.Admit("2.2.2.2", 10)
	if !allowed || remaining != 0 {
		t.Fatalf("expected admission once window elapses, got (%v,%d)", allowed, remaining)
	}
}

func TestMemoryLimiter_PerIPIsolation(t *testing.T) {
	l := NewMemoryLimiter()
	l.SetPlan(&Plan{RequestsPerWindow: 1, WindowSeconds: 60})

	a1, _, _, _ := l.Admit("3.3.3.3", 0)
	a2, _, _, _ := l.Admit("4.4.4.4", 0)
	if !a1 || !a2 {
		t.Fatal("distinct IPs must have independent budgets")
	}
}

func TestMemoryLimiter_SetPlanDropsAllState(t *testing.T) {
	l := NewMemoryLimiter()
	l.SetPlan(&Plan{RequestsPerWindow: 1, WindowSeconds: 60})
	l.Admit("5.5.5.5", 0)

	l.SetPlan(&Plan{RequestsPerWindow: 1, WindowSeconds: 60})
	allowed, _, _, _ := l.Admit("5.5.5.5", 0)
	if !allowed {
		t.Fatal("expected per-IP state to be dropped on SetPlan")
	}
}

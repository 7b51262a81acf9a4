package core

import "testing"

func TestTimerOrdering(t *testing.T) {
	ResetTimers()
	defer ResetTimers()

	var fired []uint32
	handler := func(tm *Timer) uint8 {
		fired = append(fired, tm.WakeTime)
		return SF_DONE
	}

	for _, wake := range []uint32{300, 100, 200, 100} {
		ScheduleTimer(&Timer{WakeTime: wake, Handler: handler})
	}
	TimerDispatch(250)

	expected := []uint32{100, 100, 200}
	if len(fired) != len(expected) {
		t.Fatalf("Expected %d timers to fire, got %d", len(expected), len(fired))
	}
	for i := range expected {
		if fired[i] != expected[i] {
			t.Errorf("Timer %d: expected wake %d, got %d", i, expected[i], fired[i])
		}
	}

	TimerDispatch(300)
	if len(fired) != 4 || fired[3] != 300 {
		t.Errorf("Expected last timer at 300, got %v", fired)
	}
}

func TestTimerWraparound(t *testing.T) {
	ResetTimers()
	defer ResetTimers()

	var order []string
	ScheduleTimer(&Timer{WakeTime: 0xFFFFFF00, Handler: func(*Timer) uint8 {
		order = append(order, "before")
		return SF_DONE
	}})
	ScheduleTimer(&Timer{WakeTime: 0x00000010, Handler: func(*Timer) uint8 {
		order = append(order, "after")
		return SF_DONE
	}})

	TimerDispatch(0xFFFFFF80)
	if len(order) != 1 || order[0] != "before" {
		t.Fatalf("Expected only the pre-wrap timer, got %v", order)
	}
	TimerDispatch(0x20)
	if len(order) != 2 || order[1] != "after" {
		t.Errorf("Expected the post-wrap timer, got %v", order)
	}
}

func TestTimerReschedule(t *testing.T) {
	ResetTimers()
	defer ResetTimers()

	count := 0
	tm := &Timer{WakeTime: 10, Handler: func(tm *Timer) uint8 {
		count++
		tm.WakeTime += 10
		if count == 3 {
			return SF_DONE
		}
		return SF_RESCHEDULE
	}}
	ScheduleTimer(tm)

	TimerDispatch(100)
	if count != 3 {
		t.Errorf("Expected 3 runs, got %d", count)
	}
	if CancelTimer(tm) {
		t.Error("A finished timer must not be queued")
	}
}

func TestCancelTimer(t *testing.T) {
	ResetTimers()
	defer ResetTimers()

	fired := false
	tm := &Timer{WakeTime: 5, Handler: func(*Timer) uint8 {
		fired = true
		return SF_DONE
	}}
	other := &Timer{WakeTime: 1, Handler: func(*Timer) uint8 { return SF_DONE }}
	ScheduleTimer(other)
	ScheduleTimer(tm)

	if !CancelTimer(tm) {
		t.Fatal("Expected CancelTimer to find the timer")
	}
	TimerDispatch(10)
	if fired {
		t.Error("Cancelled timer fired")
	}
}

func TestTimerConversions(t *testing.T) {
	if TimerFromUS(15000) != 15000 {
		t.Errorf("Expected 15000 ticks, got %d", TimerFromUS(15000))
	}
	if TimerToUS(2500) != 2500 {
		t.Errorf("Expected 2500us, got %d", TimerToUS(2500))
	}
	if !TimerIsBefore(0xFFFFFFF0, 5) {
		t.Error("Expected 0xFFFFFFF0 to come before 5 across the wrap")
	}
	if TimerIsBefore(5, 5) {
		t.Error("A time is not before itself")
	}
}

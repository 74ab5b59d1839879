package timer

import "testing"

func resetTimerState() {
	bootNs.Store(0)
	bootPsPart.Store(0)
}

func TestInitProgramsPITChannel0(t *testing.T) {
	defer func() { outbFn = nil }()

	var writes []struct {
		port uint16
		val  uint8
	}
	outbFn = func(port uint16, val uint8) {
		writes = append(writes, struct {
			port uint16
			val  uint8
		}{port, val})
	}

	Init()

	if len(writes) != 3 {
		t.Fatalf("expected 3 writes (command, lobyte, hibyte); got %d", len(writes))
	}
	if writes[0].port != pitCommandPort || writes[0].val != pitMode3Channel0 {
		t.Errorf("expected the command byte to select mode 3 channel 0; got %+v", writes[0])
	}
	if writes[1].port != pitChannel0Data || writes[2].port != pitChannel0Data {
		t.Errorf("expected reload lobyte/hibyte written to channel 0 data port; got %+v %+v", writes[1], writes[2])
	}
}

func TestTickStepAccumulatesNanoseconds(t *testing.T) {
	defer resetTimerState()
	resetTimerState()

	ticksPerNs := psPerNs/tickStepPs + 1
	for i := 0; i < ticksPerNs; i++ {
		TickStep()
	}

	if BootTimeNs() == 0 {
		t.Fatal("expected at least one nanosecond to have carried after enough ticks")
	}
}

func TestTickStepIsMonotonic(t *testing.T) {
	defer resetTimerState()
	resetTimerState()

	var last uint64
	for i := 0; i < 5000; i++ {
		TickStep()
		now := BootTimeNs()
		if now < last {
			t.Fatalf("boot clock went backwards: %d then %d", last, now)
		}
		last = now
	}
}

func TestTimeoutPollNsReturnsTrueWhenConditionSatisfied(t *testing.T) {
	defer resetTimerState()
	resetTimerState()

	calls := 0
	ok := TimeoutPollNs(1, func() bool {
		calls++
		return calls >= 2
	})

	if !ok {
		t.Fatal("expected TimeoutPollNs to report success once the condition is met")
	}
}

func TestTimeoutPollNsGivesUpAtDeadline(t *testing.T) {
	defer resetTimerState()
	resetTimerState()

	ok := TimeoutPollNs(0, func() bool { return false })
	if ok {
		t.Fatal("expected TimeoutPollNs to report failure when the condition never holds")
	}
}

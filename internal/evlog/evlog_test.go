package evlog

import "testing"

func TestAppendWithinCapacity(t *testing.T) {
	l := New(4)
	l.Append(Event{Kind: TickStarted, Tick: 1})
	l.Append(Event{Kind: TickStarted, Tick: 2})
	if l.Len() != 2 {
		t.Errorf("Len() = %d, want 2", l.Len())
	}
	if l.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0", l.Dropped())
	}
}

func TestAppendPastCapacityTruncatesWithOneMarker(t *testing.T) {
	l := New(2)
	l.Append(Event{Kind: TickStarted, Tick: 1})
	l.Append(Event{Kind: TickStarted, Tick: 2})
	l.Append(Event{Kind: TickStarted, Tick: 3})
	l.Append(Event{Kind: TickStarted, Tick: 4})

	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (capacity)", l.Len())
	}
	if l.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", l.Dropped())
	}

	events := l.Events()
	if events[1].Kind != LogTruncated {
		t.Errorf("last slot = %v, want LogTruncated marker", events[1].Kind)
	}

	// A further append keeps incrementing the drop counter without
	// writing a second marker.
	l.Append(Event{Kind: TickStarted, Tick: 5})
	if l.Dropped() != 3 {
		t.Errorf("Dropped() = %d, want 3 after one more drop", l.Dropped())
	}
	events = l.Events()
	markers := 0
	for _, e := range events {
		if e.Kind == LogTruncated {
			markers++
		}
	}
	if markers != 1 {
		t.Errorf("found %d LogTruncated markers, want exactly 1", markers)
	}
}

func TestDumpHeaderAndLines(t *testing.T) {
	l := New(8)
	l.Append(Event{Kind: TaskStateChanged, TaskID: 3, State: "Ready"})
	lines := l.Dump()
	if lines[0] != "=== KernelState Event Log Dump ===" {
		t.Errorf("Dump()[0] = %q, want the KernelState header", lines[0])
	}
	if len(lines) != 2 {
		t.Fatalf("Dump() has %d lines, want 2", len(lines))
	}
	want := "EVENT: TaskStateChanged(3, Ready)"
	if lines[1] != want {
		t.Errorf("Dump()[1] = %q, want %q", lines[1], want)
	}
}

func TestIPCSendEventString(t *testing.T) {
	e := Event{Kind: IPCSend, TaskID: 1, Endpoint: 2, Path: "fast"}
	want := "EVENT: IpcSend{sender=1, ep=2, path=fast}"
	if got := e.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

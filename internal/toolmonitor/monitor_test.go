package toolmonitor

import "testing"

func u32(v uint32) *uint32 { return &v }

func TestUnlimitedAlwaysAdmits(t *testing.T) {
	m := New(nil)
	call := CallToolRequest{Name: "read_file", Arguments: map[string]interface{}{"path": "a.go"}}
	for i := 0; i < 10; i++ {
		if !m.CheckToolCall(call) {
			t.Fatalf("call %d: expected admit with unlimited repetitions", i)
		}
	}
	stats := m.GetStats()
	if stats.CallCounts["read_file"] != 10 {
		t.Fatalf("expected call count 10, got %d", stats.CallCounts["read_file"])
	}
}

func TestRepeatedIdenticalCallRejectedPastLimit(t *testing.T) {
	m := New(u32(2))
	call := CallToolRequest{Name: "list_files", Arguments: map[string]interface{}{"dir": "."}}

	if !m.CheckToolCall(call) {
		t.Fatal("1st call should be admitted (repeatCount=1)")
	}
	if !m.CheckToolCall(call) {
		t.Fatal("2nd identical call should be admitted (repeatCount=2, limit=2)")
	}
	if m.CheckToolCall(call) {
		t.Fatal("3rd identical call should be rejected (repeatCount=3 > limit=2)")
	}
}

func TestDifferentCallResetsRepeatCount(t *testing.T) {
	m := New(u32(1))
	a := CallToolRequest{Name: "exec", Arguments: map[string]interface{}{"cmd": "ls"}}
	b := CallToolRequest{Name: "exec", Arguments: map[string]interface{}{"cmd": "pwd"}}

	if !m.CheckToolCall(a) {
		t.Fatal("first call must admit")
	}
	if !m.CheckToolCall(b) {
		t.Fatal("differing arguments must reset repeat count and admit")
	}
	if !m.CheckToolCall(a) {
		t.Fatal("call differing from immediately preceding call must admit")
	}
}

func TestCallCountsAccumulateAcrossToolNames(t *testing.T) {
	m := New(u32(5))
	m.CheckToolCall(CallToolRequest{Name: "a"})
	m.CheckToolCall(CallToolRequest{Name: "b"})
	m.CheckToolCall(CallToolRequest{Name: "a"})

	stats := m.GetStats()
	if stats.CallCounts["a"] != 2 || stats.CallCounts["b"] != 1 {
		t.Fatalf("unexpected call counts: %+v", stats.CallCounts)
	}
}

func TestReset(t *testing.T) {
	m := New(u32(1))
	m.CheckToolCall(CallToolRequest{Name: "x"})
	m.Reset()
	stats := m.GetStats()
	if len(stats.CallCounts) != 0 || stats.RepeatCount != 0 {
		t.Fatalf("expected cleared state after reset, got %+v", stats)
	}
}

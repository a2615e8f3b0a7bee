package core

import "testing"

func TestAgentMessageSameChat(t *testing.T) {
	a, b := "chat-a", "chat-b"

	cases := []struct {
		name   string
		msg    *string
		query  *string
		want   bool
	}{
		{"both nil", nil, nil, true},
		{"msg nil, query set", nil, &a, false},
		{"msg set, query nil", &a, nil, false},
		{"equal", &a, &a, true},
		{"different", &a, &b, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := AgentMessage{ChatID: tc.msg}
			if got := m.SameChat(tc.query); got != tc.want {
				t.Errorf("SameChat() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWorldRecordTurn(t *testing.T) {
	w := NewWorld("w1", "World One")

	if n := w.RecordTurn("c1", false); n != 1 {
		t.Fatalf("expected 1, got %d", n)
	}
	if n := w.RecordTurn("c1", false); n != 2 {
		t.Fatalf("expected 2, got %d", n)
	}
	if n := w.RecordTurn("c1", true); n != 0 {
		t.Fatalf("expected reset to 0, got %d", n)
	}
	if got := w.TurnCount("c1"); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestWorldVariablesAndWorkingDirectory(t *testing.T) {
	w := NewWorld("w1", "World One")
	w.VariablesRaw = "working_directory=/data/w1\nfoo = bar\n\nmalformed-line\n"

	vars := w.Variables()
	if vars["foo"] != "bar" {
		t.Fatalf("expected foo=bar, got %q", vars["foo"])
	}
	if _, ok := vars["malformed-line"]; ok {
		t.Fatalf("malformed line should not produce an entry")
	}
	if got := w.WorkingDirectory(); got != "/data/w1" {
		t.Fatalf("expected /data/w1, got %q", got)
	}
}

func TestAgentMemoryIsolation(t *testing.T) {
	a := &Agent{ID: "a1"}
	a.AppendMemory(AgentMessage{MessageID: "m1", Content: "hi"})

	snap := a.Memory()
	snap[0].Content = "mutated"

	if got := a.Memory()[0].Content; got != "hi" {
		t.Fatalf("Memory() should return a copy, got mutated content %q", got)
	}
}

func TestWorldSessionModeOn(t *testing.T) {
	w := NewWorld("w1", "World One")
	if w.SessionModeOn() {
		t.Fatalf("expected session mode off when CurrentChatID is nil")
	}
	id := "c1"
	w.SetCurrentChat(&id)
	if !w.SessionModeOn() {
		t.Fatalf("expected session mode on once CurrentChatID is set")
	}
}

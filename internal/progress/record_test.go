package progress_test

import (
	"encoding/json"
	"testing"

	"github.com/p-n-ai/pai-learn/internal/progress"
)

func TestRecord_WithDoesNotMutateReceiver(t *testing.T) {
	base := progress.Record{}.With(progress.Path{Course: "C", Topic: "T", SubTopic: "S", Material: "m1"}, progress.MarkReachable)
	next := base.With(progress.Path{Course: "C", Topic: "T", SubTopic: "S", Material: "m1"}, progress.MarkCompleted)

	if base.Material("C", "T", "S", "m1").Completed {
		t.Error("With() mutated its receiver")
	}
	if !next.Material("C", "T", "S", "m1").Completed {
		t.Error("With(MarkCompleted) did not mark the material")
	}
}

func TestRecord_WithSetsStatusAlongPath(t *testing.T) {
	r := progress.Record{}.With(progress.Path{Course: "C", Topic: "T", SubTopic: "S", Material: "m"}, progress.MarkCompleted)

	if !r.CourseStarted("C") || !r.TopicStarted("C", "T") || !r.SubTopicStarted("C", "T", "S") {
		t.Errorf("status flags not set along path: %+v", r)
	}
	if m := r.Material("C", "T", "S", "m"); !m.Reachable || !m.Completed {
		t.Errorf("material = %+v, want reachable and completed", m)
	}
}

func TestRecord_WithPartialPaths(t *testing.T) {
	tests := []struct {
		name      string
		path      progress.Path
		mark      progress.Mark
		wantTopic bool
		wantSub   bool
		wantMat   bool
	}{
		{"course only", progress.Path{Course: "C"}, progress.MarkStarted, false, false, false},
		{"topic", progress.Path{Course: "C", Topic: "T"}, progress.MarkStarted, true, false, false},
		{"subtopic", progress.Path{Course: "C", Topic: "T", SubTopic: "S"}, progress.MarkStarted, true, true, false},
		{"started ignores material", progress.Path{Course: "C", Topic: "T", SubTopic: "S", Material: "m"}, progress.MarkStarted, true, true, false},
		{"reachable", progress.Path{Course: "C", Topic: "T", SubTopic: "S", Material: "m"}, progress.MarkReachable, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := progress.Record{}.With(tt.path, tt.mark)
			if !r.CourseStarted("C") {
				t.Error("course should be started")
			}
			if got := r.TopicStarted("C", "T"); got != tt.wantTopic {
				t.Errorf("topic started = %v, want %v", got, tt.wantTopic)
			}
			if got := r.SubTopicStarted("C", "T", "S"); got != tt.wantSub {
				t.Errorf("subtopic started = %v, want %v", got, tt.wantSub)
			}
			if got := r.Material("C", "T", "S", "m").Reachable; got != tt.wantMat {
				t.Errorf("material reachable = %v, want %v", got, tt.wantMat)
			}
		})
	}
}

func TestRecord_WithSharesSiblings(t *testing.T) {
	base := progress.Record{}.
		With(progress.Path{Course: "A", Topic: "T", SubTopic: "S", Material: "a"}, progress.MarkCompleted).
		With(progress.Path{Course: "B", Topic: "T", SubTopic: "S", Material: "b"}, progress.MarkReachable)

	next := base.With(progress.Path{Course: "B", Topic: "T", SubTopic: "S", Material: "b"}, progress.MarkCompleted)

	if !next.Material("A", "T", "S", "a").Completed {
		t.Error("sibling course lost its flags")
	}
	if base.Material("B", "T", "S", "b").Completed {
		t.Error("base record was modified")
	}
}

func TestRecord_Merge(t *testing.T) {
	a := progress.Record{}.With(progress.Path{Course: "C", Topic: "T", SubTopic: "S", Material: "m1"}, progress.MarkCompleted)
	b := progress.Record{}.
		With(progress.Path{Course: "C", Topic: "T", SubTopic: "S", Material: "m2"}, progress.MarkReachable).
		With(progress.Path{Course: "D"}, progress.MarkStarted)

	m := a.Merge(b)
	if !m.Covers(a) || !m.Covers(b) {
		t.Errorf("Merge() = %+v does not cover both inputs", m)
	}
	if m.Material("C", "T", "S", "m2").Completed {
		t.Error("Merge() promoted reachable to completed")
	}

	var nilRecord progress.Record
	if got := nilRecord.Merge(nil); got == nil {
		t.Error("Merge of nil records should be an empty, non-nil record")
	}
}

func TestRecord_Covers(t *testing.T) {
	reach := progress.Record{}.With(progress.Path{Course: "C", Topic: "T", SubTopic: "S", Material: "m"}, progress.MarkReachable)
	done := reach.With(progress.Path{Course: "C", Topic: "T", SubTopic: "S", Material: "m"}, progress.MarkCompleted)

	if !done.Covers(reach) {
		t.Error("completed record should cover reachable record")
	}
	if reach.Covers(done) {
		t.Error("reachable record should not cover completed record")
	}
	if !reach.Covers(progress.Record{}) {
		t.Error("any record covers the empty record")
	}
}

func TestRecord_JSON(t *testing.T) {
	r := progress.Record{}.With(progress.Path{Course: "C1", Topic: "T1", SubTopic: "S1", Material: "m1"}, progress.MarkCompleted)

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"C1":{"status":true,"topics":{"T1":{"status":true,"subTopics":{"S1":{"status":true,"materials":{"m1":{"reachable":true,"completed":true}}}}}}}}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}

func TestRecord_DecodesLegacyBooleans(t *testing.T) {
	legacy := `{"C1":{"status":true,"topics":{"T1":{"status":true,"subTopics":{"S1":{"status":true,"materials":{"m1":true,"m2":false}}}}}}}`

	var r progress.Record
	if err := json.Unmarshal([]byte(legacy), &r); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if m := r.Material("C1", "T1", "S1", "m1"); !m.Reachable || !m.Completed {
		t.Errorf("m1 = %+v, want reachable and completed", m)
	}
	if m := r.Material("C1", "T1", "S1", "m2"); m.Reachable || m.Completed {
		t.Errorf("m2 = %+v, want zero state", m)
	}
}

func TestRecord_DecodeRejectsGarbageMaterial(t *testing.T) {
	bad := `{"C1":{"status":true,"topics":{"T1":{"status":true,"subTopics":{"S1":{"status":true,"materials":{"m1":"yes"}}}}}}}`
	var r progress.Record
	if err := json.Unmarshal([]byte(bad), &r); err == nil {
		t.Error("Unmarshal() should reject a string material state")
	}
}

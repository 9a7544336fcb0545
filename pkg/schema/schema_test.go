package schema

import (
	"encoding/json"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func sampleClassroom() *Classroom {
	return &Classroom{
		Profile: "Math",
		Students: []*Student{
			{Name: "John", AvgGrade: 95.5},
			{Name: "Jane", AvgGrade: 90.0},
			{Name: "Jim", AvgGrade: 88.0},
		},
	}
}

func TestClassroomWireRoundTrip(t *testing.T) {
	in := sampleClassroom()
	data, err := in.MarshalWire()
	if err != nil {
		t.Fatalf("MarshalWire() returned error: %v", err)
	}

	out := &Classroom{}
	if err := out.UnmarshalWire(data); err != nil {
		t.Fatalf("UnmarshalWire() returned error: %v", err)
	}
	if !in.Equal(out) {
		t.Errorf("wire round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestClassroomJSONRoundTrip(t *testing.T) {
	in := sampleClassroom()
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("json.Marshal() returned error: %v", err)
	}

	out := &Classroom{}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("json.Unmarshal() returned error: %v", err)
	}
	if !in.Equal(out) {
		t.Errorf("JSON round trip mismatch: got %+v, want %+v", out, in)
	}
}

// The two codecs must agree on the canonical value even though the raw
// bytes differ.
func TestCrossCodecEquivalence(t *testing.T) {
	in := sampleClassroom()

	wireBytes, err := in.MarshalWire()
	if err != nil {
		t.Fatalf("MarshalWire() returned error: %v", err)
	}
	jsonBytes, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("json.Marshal() returned error: %v", err)
	}

	fromWire := &Classroom{}
	if err := fromWire.UnmarshalWire(wireBytes); err != nil {
		t.Fatalf("UnmarshalWire() returned error: %v", err)
	}
	fromJSON := &Classroom{}
	if err := json.Unmarshal(jsonBytes, fromJSON); err != nil {
		t.Fatalf("json.Unmarshal() returned error: %v", err)
	}

	if !fromWire.Equal(fromJSON) {
		t.Errorf("codecs disagree: wire %+v, json %+v", fromWire, fromJSON)
	}
}

func TestJSONFieldNamesAreSnakeCase(t *testing.T) {
	data, err := json.Marshal(&Student{Name: "John", AvgGrade: 95.5})
	if err != nil {
		t.Fatalf("json.Marshal() returned error: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("json.Unmarshal() returned error: %v", err)
	}
	for _, key := range []string{"name", "avg_grade"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("expected JSON key %q, got %v", key, raw)
		}
	}
}

func TestClassStatsWireRoundTrip(t *testing.T) {
	in := &ClassStats{NumStudents: 3, Grade: 91.16666666666667}
	data, err := in.MarshalWire()
	if err != nil {
		t.Fatalf("MarshalWire() returned error: %v", err)
	}
	out := &ClassStats{}
	if err := out.UnmarshalWire(data); err != nil {
		t.Fatalf("UnmarshalWire() returned error: %v", err)
	}
	if !in.Equal(out) {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestUnmarshalWireTruncated(t *testing.T) {
	in := sampleClassroom()
	data, err := in.MarshalWire()
	if err != nil {
		t.Fatalf("MarshalWire() returned error: %v", err)
	}

	// Every strictly shorter prefix that still has content must either
	// decode cleanly (a shorter but valid message) or fail; it must never
	// panic. The last byte removed always invalidates the trailing field.
	out := &Classroom{}
	if err := out.UnmarshalWire(data[:len(data)-1]); err == nil {
		t.Error("expected error decoding truncated message, got nil")
	}

	if err := out.UnmarshalWire([]byte{0xff}); err == nil {
		t.Error("expected error decoding garbage byte, got nil")
	}
}

// Unknown fields are skipped, matching proto3 semantics.
func TestUnmarshalWireSkipsUnknownFields(t *testing.T) {
	st := &Student{Name: "John", AvgGrade: 95.5}
	data := st.appendWire(nil)
	data = protowire.AppendTag(data, 99, protowire.BytesType)
	data = protowire.AppendString(data, "future field")

	out := &Student{}
	if err := out.UnmarshalWire(data); err != nil {
		t.Fatalf("UnmarshalWire() returned error: %v", err)
	}
	if !st.Equal(out) {
		t.Errorf("unknown field corrupted decode: got %+v, want %+v", out, st)
	}
}

func TestUnmarshalWireResetsPriorState(t *testing.T) {
	out := &Classroom{Profile: "stale", Students: []*Student{{Name: "stale"}}}
	empty := &Classroom{}
	data, err := empty.MarshalWire()
	if err != nil {
		t.Fatalf("MarshalWire() returned error: %v", err)
	}
	if err := out.UnmarshalWire(data); err != nil {
		t.Fatalf("UnmarshalWire() returned error: %v", err)
	}
	if !out.Equal(empty) {
		t.Errorf("expected decode to reset message, got %+v", out)
	}
}

func TestEqual(t *testing.T) {
	a := sampleClassroom()
	b := sampleClassroom()
	if !a.Equal(b) {
		t.Error("identical classrooms compare unequal")
	}
	b.Students[1].AvgGrade = 60
	if a.Equal(b) {
		t.Error("differing classrooms compare equal")
	}
	if (*Classroom)(nil).Equal(a) {
		t.Error("nil classroom compares equal to non-nil")
	}
}

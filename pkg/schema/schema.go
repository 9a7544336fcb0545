// Package schema defines the canonical classroom messages exchanged by the
// service, independent of wire encoding. Every message carries two codecs:
// a compact binary encoding compatible with the proto3 wire format
// (see wire.go) and a JSON encoding driven by the snake_case struct tags
// below. Translation logic lives elsewhere; this package is pure data.
package schema

// Message is the contract every canonical message satisfies. The binary
// side is implemented with the proto3 wire format; the JSON side is the
// ordinary encoding/json behavior of the concrete struct.
type Message interface {
	// MarshalWire serializes the message into proto3 wire-format bytes.
	MarshalWire() ([]byte, error)

	// UnmarshalWire replaces the message contents with the decoded form of
	// data. Unknown fields are skipped; malformed bytes return an error and
	// leave no guarantee about partial state, so callers must discard the
	// message on failure.
	UnmarshalWire(data []byte) error
}

// Student is a single enrolled student.
type Student struct {
	Name     string  `json:"name"`
	AvgGrade float64 `json:"avg_grade"`
}

// Classroom is a group of students sharing one subject profile.
type Classroom struct {
	Profile  string     `json:"profile"`
	Students []*Student `json:"students"`
}

// ClassStats summarizes a classroom: the student count and the arithmetic
// mean of the per-student average grades.
type ClassStats struct {
	NumStudents int32   `json:"numstudents"`
	Grade       float64 `json:"grade"`
}

// Equal reports whether two students have identical field values.
func (s *Student) Equal(o *Student) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.Name == o.Name && s.AvgGrade == o.AvgGrade
}

// Equal reports whether two classrooms have identical field values,
// comparing students element-wise.
func (c *Classroom) Equal(o *Classroom) bool {
	if c == nil || o == nil {
		return c == o
	}
	if c.Profile != o.Profile || len(c.Students) != len(o.Students) {
		return false
	}
	for i := range c.Students {
		if !c.Students[i].Equal(o.Students[i]) {
			return false
		}
	}
	return true
}

// Equal reports whether two stats have identical field values.
func (s *ClassStats) Equal(o *ClassStats) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.NumStudents == o.NumStudents && s.Grade == o.Grade
}

// Compile-time checks that all canonical messages satisfy Message.
var (
	_ Message = (*Student)(nil)
	_ Message = (*Classroom)(nil)
	_ Message = (*ClassStats)(nil)
)

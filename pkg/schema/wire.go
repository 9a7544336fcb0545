package schema

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers for the school schema. These are part of the wire
// contract and must not be renumbered.
const (
	studentName     = 1 // string
	studentAvgGrade = 2 // double

	classroomProfile  = 1 // string
	classroomStudents = 2 // repeated Student

	classStatsNumStudents = 1 // int32
	classStatsGrade       = 2 // double
)

// MarshalWire implements Message.
func (s *Student) MarshalWire() ([]byte, error) {
	return s.appendWire(nil), nil
}

func (s *Student) appendWire(b []byte) []byte {
	if s.Name != "" {
		b = protowire.AppendTag(b, studentName, protowire.BytesType)
		b = protowire.AppendString(b, s.Name)
	}
	if s.AvgGrade != 0 {
		b = protowire.AppendTag(b, studentAvgGrade, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(s.AvgGrade))
	}
	return b
}

// UnmarshalWire implements Message.
func (s *Student) UnmarshalWire(data []byte) error {
	*s = Student{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return wireErr("Student", protowire.ParseError(n))
		}
		data = data[n:]
		switch {
		case num == studentName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return wireErr("Student.name", protowire.ParseError(n))
			}
			s.Name = v
			data = data[n:]
		case num == studentAvgGrade && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return wireErr("Student.avg_grade", protowire.ParseError(n))
			}
			s.AvgGrade = math.Float64frombits(v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return wireErr("Student", protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

// MarshalWire implements Message.
func (c *Classroom) MarshalWire() ([]byte, error) {
	var b []byte
	if c.Profile != "" {
		b = protowire.AppendTag(b, classroomProfile, protowire.BytesType)
		b = protowire.AppendString(b, c.Profile)
	}
	for _, st := range c.Students {
		if st == nil {
			continue
		}
		b = protowire.AppendTag(b, classroomStudents, protowire.BytesType)
		b = protowire.AppendBytes(b, st.appendWire(nil))
	}
	return b, nil
}

// UnmarshalWire implements Message.
func (c *Classroom) UnmarshalWire(data []byte) error {
	*c = Classroom{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return wireErr("Classroom", protowire.ParseError(n))
		}
		data = data[n:]
		switch {
		case num == classroomProfile && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return wireErr("Classroom.profile", protowire.ParseError(n))
			}
			c.Profile = v
			data = data[n:]
		case num == classroomStudents && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return wireErr("Classroom.students", protowire.ParseError(n))
			}
			st := &Student{}
			if err := st.UnmarshalWire(v); err != nil {
				return err
			}
			c.Students = append(c.Students, st)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return wireErr("Classroom", protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

// MarshalWire implements Message.
func (s *ClassStats) MarshalWire() ([]byte, error) {
	var b []byte
	if s.NumStudents != 0 {
		b = protowire.AppendTag(b, classStatsNumStudents, protowire.VarintType)
		// int32 values are sign-extended to 64 bits on the wire.
		b = protowire.AppendVarint(b, uint64(int64(s.NumStudents)))
	}
	if s.Grade != 0 {
		b = protowire.AppendTag(b, classStatsGrade, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(s.Grade))
	}
	return b, nil
}

// UnmarshalWire implements Message.
func (s *ClassStats) UnmarshalWire(data []byte) error {
	*s = ClassStats{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return wireErr("ClassStats", protowire.ParseError(n))
		}
		data = data[n:]
		switch {
		case num == classStatsNumStudents && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return wireErr("ClassStats.numstudents", protowire.ParseError(n))
			}
			s.NumStudents = int32(v)
			data = data[n:]
		case num == classStatsGrade && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return wireErr("ClassStats.grade", protowire.ParseError(n))
			}
			s.Grade = math.Float64frombits(v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return wireErr("ClassStats", protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

func wireErr(what string, err error) error {
	return fmt.Errorf("schema: decoding %s: %w", what, err)
}

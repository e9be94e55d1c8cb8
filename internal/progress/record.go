package progress

import (
	"encoding/json"
	"fmt"
)

// Record is a learner's unlock and completion state keyed by course name.
// Records are values: With returns a new record and never mutates its
// receiver, so a record may be shared freely once built.
type Record map[string]CourseState

// CourseState holds the started flag of a course and its topics.
type CourseState struct {
	Status bool                  `json:"status"`
	Topics map[string]TopicState `json:"topics,omitempty"`
}

// TopicState holds the started flag of a topic and its subtopics.
type TopicState struct {
	Status    bool                     `json:"status"`
	SubTopics map[string]SubTopicState `json:"subTopics,omitempty"`
}

// SubTopicState holds the started flag of a subtopic and its materials,
// keyed by material id.
type SubTopicState struct {
	Status    bool                     `json:"status"`
	Materials map[string]MaterialState `json:"materials,omitempty"`
}

// MaterialState separates "the learner may open this" from "the learner
// finished this".
type MaterialState struct {
	Reachable bool `json:"reachable"`
	Completed bool `json:"completed"`
}

// UnmarshalJSON accepts both the object form and the legacy boolean form,
// where true marked a material as unlocked-or-completed. Legacy true decodes
// as reachable and completed.
func (m *MaterialState) UnmarshalJSON(data []byte) error {
	var legacy bool
	if err := json.Unmarshal(data, &legacy); err == nil {
		*m = MaterialState{Reachable: legacy, Completed: legacy}
		return nil
	}

	type plain MaterialState
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("material state: %w", err)
	}
	*m = MaterialState(p)
	return nil
}

// Mark is a flag set by Record.With.
type Mark int

const (
	// MarkStarted sets status on every level named by the path.
	MarkStarted Mark = iota
	// MarkReachable additionally marks the path's material reachable.
	MarkReachable
	// MarkCompleted additionally marks the path's material reachable and completed.
	MarkCompleted
)

// Path addresses a node of the record. Trailing fields may be empty to
// address a course, topic or subtopic.
type Path struct {
	Course   string `json:"course"`
	Topic    string `json:"topic,omitempty"`
	SubTopic string `json:"subTopic,omitempty"`
	Material string `json:"materialID,omitempty"`
}

// With returns a copy of r with the flags along p set to true. Maps on the
// path are copied; sibling branches are shared with r. Flags are never
// cleared.
func (r Record) With(p Path, mark Mark) Record {
	next := make(Record, len(r)+1)
	for k, v := range r {
		next[k] = v
	}

	course := next[p.Course]
	course.Status = true
	if p.Topic != "" {
		topics := cloneMap(course.Topics)
		topic := topics[p.Topic]
		topic.Status = true
		if p.SubTopic != "" {
			subs := cloneMap(topic.SubTopics)
			sub := subs[p.SubTopic]
			sub.Status = true
			if p.Material != "" && mark != MarkStarted {
				materials := cloneMap(sub.Materials)
				m := materials[p.Material]
				m.Reachable = true
				if mark == MarkCompleted {
					m.Completed = true
				}
				materials[p.Material] = m
				sub.Materials = materials
			}
			subs[p.SubTopic] = sub
			topic.SubTopics = subs
		}
		topics[p.Topic] = topic
		course.Topics = topics
	}
	next[p.Course] = course

	return next
}

// Empty reports whether the record has no courses.
func (r Record) Empty() bool {
	return len(r) == 0
}

// CourseStarted reports a course's status flag.
func (r Record) CourseStarted(course string) bool {
	return r[course].Status
}

// TopicStarted reports a topic's status flag.
func (r Record) TopicStarted(course, topic string) bool {
	return r[course].Topics[topic].Status
}

// SubTopicStarted reports a subtopic's status flag.
func (r Record) SubTopicStarted(course, topic, subTopic string) bool {
	return r[course].Topics[topic].SubTopics[subTopic].Status
}

// Material returns the state of a material.
func (r Record) Material(course, topic, subTopic, id string) MaterialState {
	return r[course].Topics[topic].SubTopics[subTopic].Materials[id]
}

// Covers reports whether every flag set in o is also set in r.
func (r Record) Covers(o Record) bool {
	for cn, oc := range o {
		c := r[cn]
		if oc.Status && !c.Status {
			return false
		}
		for tn, ot := range oc.Topics {
			t := c.Topics[tn]
			if ot.Status && !t.Status {
				return false
			}
			for sn, os := range ot.SubTopics {
				s := t.SubTopics[sn]
				if os.Status && !s.Status {
					return false
				}
				for id, om := range os.Materials {
					m := s.Materials[id]
					if (om.Reachable && !m.Reachable) || (om.Completed && !m.Completed) {
						return false
					}
				}
			}
		}
	}
	return true
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge returns a record carrying every flag set in either r or o.
func (r Record) Merge(o Record) Record {
	out := r
	for cn, oc := range o {
		if oc.Status {
			out = out.With(Path{Course: cn}, MarkStarted)
		}
		for tn, ot := range oc.Topics {
			if ot.Status {
				out = out.With(Path{Course: cn, Topic: tn}, MarkStarted)
			}
			for sn, os := range ot.SubTopics {
				if os.Status {
					out = out.With(Path{Course: cn, Topic: tn, SubTopic: sn}, MarkStarted)
				}
				for id, om := range os.Materials {
					p := Path{Course: cn, Topic: tn, SubTopic: sn, Material: id}
					switch {
					case om.Completed:
						out = out.With(p, MarkCompleted)
					case om.Reachable:
						out = out.With(p, MarkReachable)
					}
				}
			}
		}
	}
	if out == nil {
		return Record{}
	}
	return out
}

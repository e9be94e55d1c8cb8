// Package catalog builds the ordered Course → Topic → SubTopic → Material tree
// from the flat records served by the catalog source.
package catalog

// Catalog is the normalized, read-only catalog tree. Lookups fail closed:
// a reference to anything absent from the tree reports false.
type Catalog struct {
	Courses []Course

	courses   map[string]int
	topics    map[topicKey]int
	subTopics map[subTopicKey]int
}

type topicKey struct {
	course, topic string
}

type subTopicKey struct {
	course, topic, subTopic string
}

// Normalize converts flat entries into a catalog tree. Courses, topics and
// subtopics keep first-seen order. When the same (course, topic, subtopic)
// appears more than once, the last entry's materials replace the earlier ones.
// The input is not validated.
func Normalize(entries []Entry) *Catalog {
	c := &Catalog{
		courses:   make(map[string]int),
		topics:    make(map[topicKey]int),
		subTopics: make(map[subTopicKey]int),
	}

	for _, e := range entries {
		ci, ok := c.courses[e.CourseName]
		if !ok {
			ci = len(c.Courses)
			c.Courses = append(c.Courses, Course{Name: e.CourseName, Topics: []Topic{}})
			c.courses[e.CourseName] = ci
		}
		if e.Topic == "" {
			continue
		}

		tk := topicKey{e.CourseName, e.Topic}
		ti, ok := c.topics[tk]
		if !ok {
			course := &c.Courses[ci]
			ti = len(course.Topics)
			course.Topics = append(course.Topics, Topic{Name: e.Topic, SubTopics: []SubTopic{}})
			c.topics[tk] = ti
		}
		if e.SubTopic == "" {
			continue
		}

		materials := make([]Material, len(e.Materials))
		copy(materials, e.Materials)

		topic := &c.Courses[ci].Topics[ti]
		sk := subTopicKey{e.CourseName, e.Topic, e.SubTopic}
		if si, ok := c.subTopics[sk]; ok {
			topic.SubTopics[si].Materials = materials
			continue
		}
		c.subTopics[sk] = len(topic.SubTopics)
		topic.SubTopics = append(topic.SubTopics, SubTopic{Name: e.SubTopic, Materials: materials})
	}

	return c
}

// Empty reports whether the catalog has no courses.
func (c *Catalog) Empty() bool {
	return c == nil || len(c.Courses) == 0
}

// Course returns a course by name.
func (c *Catalog) Course(name string) (*Course, bool) {
	if c == nil {
		return nil, false
	}
	i, ok := c.courses[name]
	if !ok {
		return nil, false
	}
	return &c.Courses[i], true
}

// Topic returns a topic of a course. The index is the topic's position
// within the course.
func (c *Catalog) Topic(course, topic string) (*Topic, int, bool) {
	if c == nil {
		return nil, 0, false
	}
	ci, ok := c.courses[course]
	if !ok {
		return nil, 0, false
	}
	ti, ok := c.topics[topicKey{course, topic}]
	if !ok {
		return nil, 0, false
	}
	return &c.Courses[ci].Topics[ti], ti, true
}

// SubTopic returns a subtopic of a topic and its position within the topic.
func (c *Catalog) SubTopic(course, topic, subTopic string) (*SubTopic, int, bool) {
	t, _, ok := c.Topic(course, topic)
	if !ok {
		return nil, 0, false
	}
	si, ok := c.subTopics[subTopicKey{course, topic, subTopic}]
	if !ok {
		return nil, 0, false
	}
	return &t.SubTopics[si], si, true
}

// Material returns the material at index within a subtopic.
func (c *Catalog) Material(course, topic, subTopic string, index int) (Material, bool) {
	s, _, ok := c.SubTopic(course, topic, subTopic)
	if !ok || index < 0 || index >= len(s.Materials) {
		return Material{}, false
	}
	return s.Materials[index], true
}

// MaterialIndex returns the position of a material id within a subtopic.
func (s *SubTopic) MaterialIndex(id string) int {
	for i, m := range s.Materials {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// Entries flattens the catalog back into records, one per subtopic, plus one
// per empty topic and one per topic-less course.
func (c *Catalog) Entries() []Entry {
	if c == nil {
		return []Entry{}
	}
	entries := []Entry{}
	for _, course := range c.Courses {
		if len(course.Topics) == 0 {
			entries = append(entries, Entry{CourseName: course.Name})
			continue
		}
		for _, topic := range course.Topics {
			if len(topic.SubTopics) == 0 {
				entries = append(entries, Entry{CourseName: course.Name, Topic: topic.Name})
				continue
			}
			for _, sub := range topic.SubTopics {
				entries = append(entries, Entry{
					CourseName: course.Name,
					Topic:      topic.Name,
					SubTopic:   sub.Name,
					Materials:  sub.Materials,
				})
			}
		}
	}
	return entries
}

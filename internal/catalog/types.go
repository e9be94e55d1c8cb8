package catalog

// Entry is one flat catalog record as delivered by the collaborator API.
// Topic, SubTopic and Materials are optional.
type Entry struct {
	CourseName string     `json:"CourseName" yaml:"course"`
	Topic      string     `json:"Topic,omitempty" yaml:"topic"`
	SubTopic   string     `json:"SubTopic,omitempty" yaml:"subtopic"`
	Materials  []Material `json:"Materials,omitempty" yaml:"materials"`
}

// Material is a leaf learning unit. URL locates the stored content relative
// to the content host.
type Material struct {
	ID   string `json:"materialID" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// SubTopic groups materials within a topic. Material order is progression order.
type SubTopic struct {
	Name      string     `json:"name"`
	Materials []Material `json:"materials"`
}

// Topic groups subtopics within a course.
type Topic struct {
	Name      string     `json:"name"`
	SubTopics []SubTopic `json:"subTopics"`
}

// Course is a top-level catalog entry.
type Course struct {
	Name   string  `json:"name"`
	Topics []Topic `json:"topics"`
}

// Package progress implements the sequential unlocking model of the learner
// dashboard: which catalog nodes a learner may open, and what unlocks next
// when a material is completed.
package progress

import (
	"errors"
	"fmt"

	"github.com/p-n-ai/pai-learn/internal/catalog"
)

var (
	// ErrNotFound is returned when a referenced node is not in the catalog.
	ErrNotFound = errors.New("catalog node not found")
	// ErrLocked is returned when navigating to a node the learner has not unlocked.
	ErrLocked = errors.New("catalog node is locked")
	// ErrNoCursor is returned when completing with no material selected.
	ErrNoCursor = errors.New("no material selected")
)

// Cursor is the material the learner is viewing.
type Cursor struct {
	Course     string `json:"course"`
	Topic      string `json:"topic"`
	SubTopic   string `json:"subTopic"`
	Index      int    `json:"index"`
	MaterialID string `json:"materialID"`
}

func (c Cursor) path() Path {
	return Path{Course: c.Course, Topic: c.Topic, SubTopic: c.SubTopic, Material: c.MaterialID}
}

// Rule names the advancement step taken by a completion.
type Rule int

const (
	// RuleNone means nothing further was unlocked; the cursor stays put.
	RuleNone Rule = iota
	// RuleNextMaterial moved to the next material of the same subtopic.
	RuleNextMaterial
	// RuleNextSubTopic moved to the first material of a later subtopic.
	RuleNextSubTopic
	// RuleNextTopic moved to the first material of a later topic.
	RuleNextTopic
)

func (r Rule) String() string {
	switch r {
	case RuleNextMaterial:
		return "next_material"
	case RuleNextSubTopic:
		return "next_subtopic"
	case RuleNextTopic:
		return "next_topic"
	default:
		return "none"
	}
}

// Transition describes one completion.
type Transition struct {
	From    Cursor
	To      Cursor
	Rule    Rule
	Changed bool // the record gained at least one flag
}

// Engine evaluates and advances a learner's progress against a catalog.
// It performs no I/O and is not safe for concurrent use.
type Engine struct {
	catalog   *catalog.Catalog
	record    Record
	cursor    Cursor
	hasCursor bool
}

// NewEngine creates an engine over a catalog and a fetched progress record.
// The record is used verbatim; no cursor is derived from it.
func NewEngine(c *catalog.Catalog, r Record) *Engine {
	if r == nil {
		r = Record{}
	}
	return &Engine{catalog: c, record: r}
}

// Catalog returns the catalog the engine evaluates against.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Record returns the current progress record.
func (e *Engine) Record() Record {
	return e.record
}

// Absorb merges flags recorded elsewhere into the engine's record. Flags are
// only ever added; the cursor is left alone.
func (e *Engine) Absorb(r Record) {
	e.record = e.record.Merge(r)
}

// Cursor returns the selected material, if any.
func (e *Engine) Cursor() (Cursor, bool) {
	return e.cursor, e.hasCursor
}

// SetCatalog swaps in a refreshed catalog. The cursor follows its material
// id; it is cleared when the material is gone.
func (e *Engine) SetCatalog(c *catalog.Catalog) {
	e.catalog = c
	if !e.hasCursor {
		return
	}
	sub, _, ok := c.SubTopic(e.cursor.Course, e.cursor.Topic, e.cursor.SubTopic)
	if !ok {
		e.clearCursor()
		return
	}
	idx := sub.MaterialIndex(e.cursor.MaterialID)
	if idx < 0 {
		e.clearCursor()
		return
	}
	e.cursor.Index = idx
}

func (e *Engine) clearCursor() {
	e.cursor = Cursor{}
	e.hasCursor = false
}

// Bootstrap seeds an empty record with the first material of the first
// subtopic of the first topic of the first course, and points the cursor at
// it. It reports whether seeding happened; a non-empty record or a catalog
// without that first material is left alone.
func (e *Engine) Bootstrap() bool {
	if !e.record.Empty() || e.catalog.Empty() {
		return false
	}

	course := e.catalog.Courses[0]
	if len(course.Topics) == 0 {
		return false
	}
	topic := course.Topics[0]
	if len(topic.SubTopics) == 0 {
		return false
	}
	sub := topic.SubTopics[0]
	if len(sub.Materials) == 0 {
		return false
	}

	cur := Cursor{
		Course:     course.Name,
		Topic:      topic.Name,
		SubTopic:   sub.Name,
		Index:      0,
		MaterialID: sub.Materials[0].ID,
	}
	e.record = e.record.With(cur.path(), MarkReachable)
	e.cursor, e.hasCursor = cur, true
	return true
}

// IsCourseUnlocked reports whether a course has been started.
func (e *Engine) IsCourseUnlocked(course string) bool {
	if _, ok := e.catalog.Course(course); !ok {
		return false
	}
	return e.record.CourseStarted(course)
}

// IsTopicUnlocked reports whether a topic has been started.
func (e *Engine) IsTopicUnlocked(course, topic string) bool {
	if _, _, ok := e.catalog.Topic(course, topic); !ok {
		return false
	}
	return e.record.TopicStarted(course, topic)
}

// IsSubTopicUnlocked reports whether a subtopic has been started.
func (e *Engine) IsSubTopicUnlocked(course, topic, subTopic string) bool {
	if _, _, ok := e.catalog.SubTopic(course, topic, subTopic); !ok {
		return false
	}
	return e.record.SubTopicStarted(course, topic, subTopic)
}

// IsUnlocked reports whether the material at index may be opened. Unknown
// nodes and out-of-range indexes are locked.
func (e *Engine) IsUnlocked(course, topic, subTopic string, index int) bool {
	m, ok := e.catalog.Material(course, topic, subTopic, index)
	if !ok {
		return false
	}

	st := e.record.Material(course, topic, subTopic, m.ID)
	switch {
	case st.Completed || st.Reachable:
		return true
	case index == 0 && e.record.SubTopicStarted(course, topic, subTopic):
		return true
	case e.record.Empty():
		return index == 0
	default:
		return false
	}
}

// IsCompleted reports whether the material at index has been completed.
func (e *Engine) IsCompleted(course, topic, subTopic string, index int) bool {
	m, ok := e.catalog.Material(course, topic, subTopic, index)
	if !ok {
		return false
	}
	return e.record.Material(course, topic, subTopic, m.ID).Completed
}

// TakeCourse points the cursor at the first material of a started topic.
// Leading subtopics without materials are skipped.
func (e *Engine) TakeCourse(course, topic string) error {
	t, _, ok := e.catalog.Topic(course, topic)
	if !ok {
		return fmt.Errorf("topic %q/%q: %w", course, topic, ErrNotFound)
	}
	if !e.record.TopicStarted(course, topic) {
		return fmt.Errorf("topic %q/%q: %w", course, topic, ErrLocked)
	}
	for _, s := range t.SubTopics {
		if len(s.Materials) == 0 {
			continue
		}
		return e.Select(course, topic, s.Name, 0)
	}
	return fmt.Errorf("topic %q/%q has no materials: %w", course, topic, ErrNotFound)
}

// Select points the cursor at an unlocked material. The cursor may then lag
// behind the furthest unlocked material.
func (e *Engine) Select(course, topic, subTopic string, index int) error {
	m, ok := e.catalog.Material(course, topic, subTopic, index)
	if !ok {
		return fmt.Errorf("material %q/%q/%q[%d]: %w", course, topic, subTopic, index, ErrNotFound)
	}
	if !e.IsUnlocked(course, topic, subTopic, index) {
		return fmt.Errorf("material %q: %w", m.ID, ErrLocked)
	}
	e.cursor = Cursor{Course: course, Topic: topic, SubTopic: subTopic, Index: index, MaterialID: m.ID}
	e.hasCursor = true
	return nil
}

// Complete marks the cursor material completed and advances the cursor:
// to the next material of the subtopic, else (subtopic fully completed) to
// the first material of the next subtopic, else (topic fully completed) to
// the first material of the next topic. Subtopics and topics without
// materials count as completed and are passed over. When nothing follows in
// the course the cursor stays put. Repeating a completion that unlocks
// nothing new yields a transition with Changed false.
func (e *Engine) Complete() (Transition, error) {
	if !e.hasCursor {
		return Transition{}, ErrNoCursor
	}
	cur := e.cursor
	if _, ok := e.catalog.Material(cur.Course, cur.Topic, cur.SubTopic, cur.Index); !ok {
		return Transition{}, fmt.Errorf("cursor material %q: %w", cur.MaterialID, ErrNotFound)
	}
	if !e.IsUnlocked(cur.Course, cur.Topic, cur.SubTopic, cur.Index) {
		return Transition{}, fmt.Errorf("cursor material %q: %w", cur.MaterialID, ErrLocked)
	}

	before := e.record
	rec := before.With(cur.path(), MarkCompleted)
	to, rule, rec := e.advance(rec, cur)

	e.record = rec
	e.cursor = to

	return Transition{
		From:    cur,
		To:      to,
		Rule:    rule,
		Changed: !before.Covers(rec),
	}, nil
}

func (e *Engine) advance(rec Record, cur Cursor) (Cursor, Rule, Record) {
	sub, si, _ := e.catalog.SubTopic(cur.Course, cur.Topic, cur.SubTopic)

	if next := cur.Index + 1; next < len(sub.Materials) {
		to := Cursor{
			Course:     cur.Course,
			Topic:      cur.Topic,
			SubTopic:   cur.SubTopic,
			Index:      next,
			MaterialID: sub.Materials[next].ID,
		}
		return to, RuleNextMaterial, rec.With(to.path(), MarkReachable)
	}

	if !subTopicCompleted(rec, cur.Course, cur.Topic, sub) {
		return cur, RuleNone, rec
	}

	var passed []Path
	land := func(to Cursor, rule Rule) (Cursor, Rule, Record) {
		for _, p := range passed {
			rec = rec.With(p, MarkStarted)
		}
		return to, rule, rec.With(to.path(), MarkReachable)
	}

	topic, ti, _ := e.catalog.Topic(cur.Course, cur.Topic)
	for _, s := range topic.SubTopics[si+1:] {
		if len(s.Materials) == 0 {
			passed = append(passed, Path{Course: cur.Course, Topic: cur.Topic, SubTopic: s.Name})
			continue
		}
		return land(firstOf(cur.Course, cur.Topic, s), RuleNextSubTopic)
	}

	if !topicCompleted(rec, cur.Course, topic) {
		return cur, RuleNone, rec
	}

	course, _ := e.catalog.Course(cur.Course)
	for _, t := range course.Topics[ti+1:] {
		passed = append(passed, Path{Course: cur.Course, Topic: t.Name})
		for _, s := range t.SubTopics {
			if len(s.Materials) == 0 {
				passed = append(passed, Path{Course: cur.Course, Topic: t.Name, SubTopic: s.Name})
				continue
			}
			return land(firstOf(cur.Course, t.Name, s), RuleNextTopic)
		}
	}

	return cur, RuleNone, rec
}

func firstOf(course, topic string, s catalog.SubTopic) Cursor {
	return Cursor{
		Course:     course,
		Topic:      topic,
		SubTopic:   s.Name,
		Index:      0,
		MaterialID: s.Materials[0].ID,
	}
}

func subTopicCompleted(rec Record, course, topic string, s *catalog.SubTopic) bool {
	for _, m := range s.Materials {
		if !rec.Material(course, topic, s.Name, m.ID).Completed {
			return false
		}
	}
	return true
}

func topicCompleted(rec Record, course string, t *catalog.Topic) bool {
	for i := range t.SubTopics {
		if !subTopicCompleted(rec, course, t.Name, &t.SubTopics[i]) {
			return false
		}
	}
	return true
}

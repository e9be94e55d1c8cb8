package learner

import (
	"github.com/p-n-ai/pai-learn/internal/collab"
	"github.com/p-n-ai/pai-learn/internal/progress"
)

// View modes.
const (
	ModeOverview = "overview"
	ModeDetail   = "detail"
)

// ViewState is everything the dashboard renders, built fresh on every call.
type ViewState struct {
	LearnerID  string           `json:"learnerID"`
	Mode       string           `json:"mode"`
	Courses    []CourseView     `json:"courses"`
	Cursor     *progress.Cursor `json:"cursor,omitempty"`
	Material   *MaterialView    `json:"material,omitempty"`
	Pending    bool             `json:"pending"`
	Completing bool             `json:"completing"`
}

// CourseView is a course annotated with lock state.
type CourseView struct {
	Name     string      `json:"name"`
	Unlocked bool        `json:"unlocked"`
	Topics   []TopicView `json:"topics"`
}

// TopicView is a topic annotated with lock and completion state.
type TopicView struct {
	Name      string         `json:"name"`
	Unlocked  bool           `json:"unlocked"`
	Completed bool           `json:"completed"`
	SubTopics []SubTopicView `json:"subTopics"`
}

// SubTopicView is a subtopic annotated with lock and completion state.
type SubTopicView struct {
	Name      string         `json:"name"`
	Unlocked  bool           `json:"unlocked"`
	Completed bool           `json:"completed"`
	Materials []MaterialView `json:"materials"`
}

// MaterialView is a material annotated with lock state and its content URL.
type MaterialView struct {
	ID         string `json:"materialID"`
	Name       string `json:"name"`
	Index      int    `json:"index"`
	ContentURL string `json:"contentURL"`
	Unlocked   bool   `json:"unlocked"`
	Completed  bool   `json:"completed"`
	Current    bool   `json:"current"`
}

func buildView(learnerID string, e *progress.Engine, contentBase string) ViewState {
	cur, hasCursor := e.Cursor()
	v := ViewState{
		LearnerID: learnerID,
		Mode:      ModeOverview,
		Courses:   []CourseView{},
	}
	if hasCursor {
		v.Mode = ModeDetail
		c := cur
		v.Cursor = &c
	}

	cat := e.Catalog()
	if cat == nil {
		return v
	}

	for _, course := range cat.Courses {
		cv := CourseView{
			Name:     course.Name,
			Unlocked: e.IsCourseUnlocked(course.Name),
			Topics:   make([]TopicView, 0, len(course.Topics)),
		}
		for _, topic := range course.Topics {
			tv := TopicView{
				Name:      topic.Name,
				Unlocked:  e.IsTopicUnlocked(course.Name, topic.Name),
				Completed: true,
				SubTopics: make([]SubTopicView, 0, len(topic.SubTopics)),
			}
			for _, sub := range topic.SubTopics {
				sv := SubTopicView{
					Name:      sub.Name,
					Unlocked:  e.IsSubTopicUnlocked(course.Name, topic.Name, sub.Name),
					Completed: true,
					Materials: make([]MaterialView, 0, len(sub.Materials)),
				}
				for i, m := range sub.Materials {
					mv := MaterialView{
						ID:         m.ID,
						Name:       m.Name,
						Index:      i,
						ContentURL: collab.ContentURL(contentBase, m.URL),
						Unlocked:   e.IsUnlocked(course.Name, topic.Name, sub.Name, i),
						Completed:  e.IsCompleted(course.Name, topic.Name, sub.Name, i),
					}
					if hasCursor && cur.Course == course.Name && cur.Topic == topic.Name &&
						cur.SubTopic == sub.Name && cur.Index == i {
						mv.Current = true
						selected := mv
						v.Material = &selected
					}
					sv.Completed = sv.Completed && mv.Completed
					sv.Materials = append(sv.Materials, mv)
				}
				tv.Completed = tv.Completed && sv.Completed
				tv.SubTopics = append(tv.SubTopics, sv)
			}
			cv.Topics = append(cv.Topics, tv)
		}
		v.Courses = append(v.Courses, cv)
	}

	return v
}

package domain

import "encoding/json"

// Response is a learner's submission against a Task.
type Response struct {
	QuestionID       string         `json:"question_id,omitempty"`
	Answer           string         `json:"answer,omitempty"`
	Content          string         `json:"content,omitempty"`
	Solution         string         `json:"solution,omitempty"`
	Complete         bool           `json:"complete,omitempty"`
	TimeSpentSeconds int            `json:"time_spent_seconds,omitempty"`
	Data             map[string]any `json:"data,omitempty"`
}

// Payload converts the response into an interaction content map.
func (r Response) Payload() map[string]any {
	out := map[string]any{}
	if r.QuestionID != "" {
		out["question_id"] = r.QuestionID
	}
	if r.Answer != "" {
		out["answer"] = r.Answer
	}
	if r.Content != "" {
		out["content"] = r.Content
	}
	if r.Solution != "" {
		out["solution"] = r.Solution
	}
	if r.Complete {
		out["complete"] = true
	}
	for k, v := range r.Data {
		if _, taken := out[k]; !taken {
			out[k] = v
		}
	}
	return out
}

// Serialized returns the JSON form of the response.
func (r Response) Serialized() string {
	b, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	return string(b)
}

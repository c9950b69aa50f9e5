package schemas

// Candidate is a listing entry eligible for the rate-and-comment workflow.
type Candidate struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	// Signal is the ranking metric; lower is more eligible.
	Signal int `json:"signal"`
	// HasSignal is false when the entry carried no signal label and Signal defaulted to zero.
	HasSignal bool `json:"has_signal"`
	Position  int  `json:"position"`
}

// Feedback is the generated content for the rate-and-comment workflow.
type Feedback struct {
	Comment string `json:"comment"`
	// Score is nil when the backend produced no usable 1-10 score.
	Score *int `json:"score,omitempty"`
}

// HasComment reports whether there is text to submit.
func (f Feedback) HasComment() bool { return f.Comment != "" }

// Idea is the generated content for the create-idea workflow.
type Idea struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// IsEmpty reports whether the backend produced neither a title nor a description.
func (i Idea) IsEmpty() bool { return i.Title == "" && i.Description == "" }

// GeneratedContent is the role-agnostic result of one generation call. Only the
// fields belonging to the requested role are populated.
type GeneratedContent struct {
	Feedback Feedback `json:"feedback"`
	Idea     Idea     `json:"idea"`
}

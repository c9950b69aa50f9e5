// internal/workflow/state.go
package workflow

import "fmt"

// State is one step of a workflow's state machine.
type State int

const (
	StateStart State = iota

	// Rate-and-comment.
	StateLocateTarget
	StateLoadTargetPage
	StateGenerateContent
	StateNavigateToFeedbackForm
	StateSetScore
	StateAdvanceToCommentStep
	StateSubmitComment
	StateConfirmed

	// Create-idea.
	StateLoadCreatePage
	StateFillStep1
	StateAdvance
	StateConfirm
	StateSubmit
	StateWaitForAck

	StateDone
)

var stateNames = map[State]string{
	StateStart:                  "START",
	StateLocateTarget:           "LOCATE_TARGET",
	StateLoadTargetPage:         "LOAD_TARGET_PAGE",
	StateGenerateContent:        "GENERATE_CONTENT",
	StateNavigateToFeedbackForm: "NAVIGATE_TO_FEEDBACK_FORM",
	StateSetScore:               "SET_SCORE",
	StateAdvanceToCommentStep:   "ADVANCE_TO_COMMENT_STEP",
	StateSubmitComment:          "SUBMIT_COMMENT",
	StateConfirmed:              "CONFIRMED",
	StateLoadCreatePage:         "LOAD_CREATE_PAGE",
	StateFillStep1:              "FILL_STEP1",
	StateAdvance:                "ADVANCE",
	StateConfirm:                "CONFIRM",
	StateSubmit:                 "SUBMIT",
	StateWaitForAck:             "WAIT_FOR_ACK",
	StateDone:                   "DONE",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Status is the terminal classification of a workflow run.
type Status string

const (
	StatusCompleted Status = "completed"
	// StatusSkipped: there was nothing to do (no candidate, no comment).
	StatusSkipped Status = "skipped"
	// StatusAborted: a form step did not appear; nothing was submitted.
	StatusAborted Status = "aborted"
	// StatusUnconfirmed: the submission was sent but no acknowledgement was seen.
	StatusUnconfirmed Status = "unconfirmed"
	StatusFailed      Status = "failed"
)

// Outcome describes how a workflow run ended.
type Outcome struct {
	Workflow string    `json:"workflow"`
	Status   Status    `json:"status"`
	State    State     `json:"-"`
	Code     ErrorCode `json:"code,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	// Target is the candidate URL for rate-and-comment or the idea title for create-idea.
	Target string `json:"target,omitempty"`
}

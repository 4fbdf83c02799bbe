package model

import "time"

type TherapyFlow string

const (
	FlowCBT  TherapyFlow = "cbt"
	FlowSFBT TherapyFlow = "sfbt"
)

// Valid reports whether f names a known guided-therapy flow.
func (f TherapyFlow) Valid() bool {
	return f == FlowCBT || f == FlowSFBT
}

// TherapyStep is read-only reference content addressed by (flow, step):
// the title, prompt and worked example shown next to the AI conversation.
type TherapyStep struct {
	Flow    TherapyFlow `json:"flow"`
	Step    int         `json:"step"`
	Title   string      `json:"title"`
	Prompt  string      `json:"prompt"`
	Example string      `json:"example"`
}

// AISession is one row of the ai_sessions results table. Rows are produced by
// the external workflow backend after it finishes processing a message; this
// application only polls and reads them.
type AISession struct {
	UserID      string    `json:"user_id"`
	Step        int       `json:"step"`
	UserMessage string    `json:"user_message"`
	CreatedAt   time.Time `json:"created_at"`
}

package callback

import "time"

// ScoreResultMessage is the asynchronous form of the scoring engine callback.
type ScoreResultMessage struct {
	Token     string    `json:"token"`
	Score     *float64  `json:"score"`
	Limit     *float64  `json:"limit"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

package domain

import "time"

// Rule names the exclusion rule that rejected a file.
type Rule string

const (
	RuleNone           Rule = ""
	RuleIgnoredType    Rule = "ignored_file_type"
	RulePathUnresolved Rule = "path_unresolved"
	RuleExcludedFolder Rule = "excluded_folder"
	RuleDuplicate      Rule = "duplicate"
)

type OutcomeStatus string

const (
	OutcomeRecorded  OutcomeStatus = "recorded"
	OutcomeRejected  OutcomeStatus = "rejected"
	OutcomeRetrying  OutcomeStatus = "retrying"
	OutcomeAbandoned OutcomeStatus = "abandoned"
)

// Outcome describes how an attempt at a task ended.
type Outcome struct {
	FileID       string        `json:"file_id"`
	FileName     string        `json:"file_name,omitempty"`
	Status       OutcomeStatus `json:"status"`
	Rule         Rule          `json:"rule,omitempty"`
	Error        string        `json:"error,omitempty"`
	RetryCounter int           `json:"retry_counter"`
	FinishedAt   time.Time     `json:"finished_at"`
}

func (o Outcome) Terminal() bool {
	return o.Status != OutcomeRetrying
}

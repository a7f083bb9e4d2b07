package domain

// IntakeTask is one file waiting to be processed.
type IntakeTask struct {
	FileID       string `json:"file_id"`
	RetryCounter int    `json:"retry_counter"`
}

func NewIntakeTask(fileID string) IntakeTask {
	return IntakeTask{FileID: fileID}
}

// Next returns the task to re-enqueue after a failed attempt.
func (t IntakeTask) Next() IntakeTask {
	return IntakeTask{FileID: t.FileID, RetryCounter: t.RetryCounter + 1}
}

package models

import "time"

// DigestPayload is the content of one recipient's daily digest. It is built
// fresh on every run and handed straight to delivery.
type DigestPayload struct {
	SchoolID    int64       `json:"schoolId"`
	RecipientID int64       `json:"recipientId"`
	Email       string      `json:"email"`
	Subject     string      `json:"subject"`
	AsOf        time.Time   `json:"asOf"`
	Communities []Community `json:"communities"`
	Questions   []Question  `json:"questions"`
}

// IsEmpty reports whether the digest has nothing worth sending
func (p *DigestPayload) IsEmpty() bool {
	return len(p.Communities) == 0 || len(p.Questions) == 0
}

// CommunityName returns the name of the payload community with the given id
func (p *DigestPayload) CommunityName(id int64) string {
	for _, c := range p.Communities {
		if c.ID == id {
			return c.Name
		}
	}
	return ""
}

// DeliveryOutcome is the terminal state of one recipient within a run
type DeliveryOutcome string

const (
	OutcomeSent              DeliveryOutcome = "sent"
	OutcomeSkippedIneligible DeliveryOutcome = "skipped_ineligible"
	OutcomeSkippedEmpty      DeliveryOutcome = "skipped_empty"
	OutcomeFailed            DeliveryOutcome = "failed"
	OutcomeAlreadyDelivered  DeliveryOutcome = "already_delivered"
	OutcomeUnprocessed       DeliveryOutcome = "unprocessed"
)

// DeliveryReport summarizes one digest run for one school
type DeliveryReport struct {
	RunID             string    `json:"runId"`
	SchoolID          int64     `json:"schoolId"`
	SchoolName        string    `json:"schoolName"`
	AsOf              time.Time `json:"asOf"`
	Sent              int       `json:"sent"`
	SkippedIneligible int       `json:"skippedIneligible"`
	SkippedEmpty      int       `json:"skippedEmpty"`
	Failed            int       `json:"failed"`
	AlreadyDelivered  int       `json:"alreadyDelivered"`
	FailedRecipients  []int64   `json:"failedRecipients"`
	Unprocessed       []int64   `json:"unprocessed"`
	DeadlineExceeded  bool      `json:"deadlineExceeded"`
	StartedAt         time.Time `json:"startedAt"`
	FinishedAt        time.Time `json:"finishedAt"`
	Error             string    `json:"error,omitempty"`
}

// Record adds one recipient outcome to the report
func (r *DeliveryReport) Record(userID int64, outcome DeliveryOutcome) {
	switch outcome {
	case OutcomeSent:
		r.Sent++
	case OutcomeSkippedIneligible:
		r.SkippedIneligible++
	case OutcomeSkippedEmpty:
		r.SkippedEmpty++
	case OutcomeFailed:
		r.Failed++
		r.FailedRecipients = append(r.FailedRecipients, userID)
	case OutcomeAlreadyDelivered:
		r.AlreadyDelivered++
	case OutcomeUnprocessed:
		r.Unprocessed = append(r.Unprocessed, userID)
	}
}

// Processed is the number of recipients that reached a terminal outcome
func (r *DeliveryReport) Processed() int {
	return r.Sent + r.SkippedIneligible + r.SkippedEmpty + r.Failed + r.AlreadyDelivered
}

// DigestPreview is a composed payload that was not delivered
type DigestPreview struct {
	Payload  *DigestPayload `json:"payload"`
	Eligible bool           `json:"eligible"`
}

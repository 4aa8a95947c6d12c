package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeliveryReport_Record(t *testing.T) {
	r := &DeliveryReport{}
	r.Record(1, OutcomeSent)
	r.Record(2, OutcomeSent)
	r.Record(3, OutcomeSkippedIneligible)
	r.Record(4, OutcomeSkippedEmpty)
	r.Record(5, OutcomeFailed)
	r.Record(6, OutcomeAlreadyDelivered)
	r.Record(7, OutcomeUnprocessed)

	assert.Equal(t, 2, r.Sent)
	assert.Equal(t, 1, r.SkippedIneligible)
	assert.Equal(t, 1, r.SkippedEmpty)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 1, r.AlreadyDelivered)
	assert.Equal(t, []int64{5}, r.FailedRecipients)
	assert.Equal(t, []int64{7}, r.Unprocessed)
	assert.Equal(t, 6, r.Processed())
}

func TestDigestPayload_IsEmpty(t *testing.T) {
	p := &DigestPayload{}
	assert.True(t, p.IsEmpty())

	p.Communities = []Community{{ID: 1, Name: "General"}}
	assert.True(t, p.IsEmpty())

	p.Questions = []Question{{ID: 10, CommunityID: 1}}
	assert.False(t, p.IsEmpty())
	assert.Equal(t, "General", p.CommunityName(1))
	assert.Equal(t, "", p.CommunityName(2))
}

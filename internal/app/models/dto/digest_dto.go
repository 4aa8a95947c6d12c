package dto

import (
	"time"

	"github.com/yigit/unisphere-digest/internal/app/models"
)

// RunDigestRequest triggers a digest run. Empty AsOf means now.
type RunDigestRequest struct {
	AsOf        string `json:"asOf" form:"asOf" binding:"omitempty" example:"2019-07-16T18:00:00+05:30"`
	Cap         int    `json:"cap" form:"cap" binding:"omitempty,min=1,max=50" example:"5"`
	WindowHours int    `json:"windowHours" form:"windowHours" binding:"omitempty,min=1,max=2160" example:"168"`
}

// DigestQuestionData is one question line of a previewed digest
type DigestQuestionData struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	CommunityID   int64     `json:"communityId"`
	CommunityName string    `json:"communityName"`
	CreatedAt     time.Time `json:"createdAt"`
}

// DigestCommunityData is one community of a previewed digest
type DigestCommunityData struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DigestPreviewResponse is the payload a recipient would receive
type DigestPreviewResponse struct {
	RecipientID int64                 `json:"recipientId"`
	Email       string                `json:"email"`
	Subject     string                `json:"subject"`
	AsOf        time.Time             `json:"asOf"`
	Empty       bool                  `json:"empty"`
	Eligible    bool                  `json:"eligible"`
	Communities []DigestCommunityData `json:"communities"`
	Questions   []DigestQuestionData  `json:"questions"`
}

// NewDigestPreviewResponse converts a preview for the API
func NewDigestPreviewResponse(preview *models.DigestPreview) DigestPreviewResponse {
	p := preview.Payload
	resp := DigestPreviewResponse{
		Eligible:    preview.Eligible,
		RecipientID: p.RecipientID,
		Email:       p.Email,
		Subject:     p.Subject,
		AsOf:        p.AsOf,
		Empty:       p.IsEmpty(),
		Communities: make([]DigestCommunityData, 0, len(p.Communities)),
		Questions:   make([]DigestQuestionData, 0, len(p.Questions)),
	}
	for _, c := range p.Communities {
		resp.Communities = append(resp.Communities, DigestCommunityData{ID: c.ID, Name: c.Name})
	}
	for _, q := range p.Questions {
		resp.Questions = append(resp.Questions, DigestQuestionData{
			ID:            q.ID,
			Title:         q.Title,
			CommunityID:   q.CommunityID,
			CommunityName: p.CommunityName(q.CommunityID),
			CreatedAt:     q.CreatedAt,
		})
	}
	return resp
}

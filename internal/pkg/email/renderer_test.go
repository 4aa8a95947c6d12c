package email

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/unisphere-digest/internal/app/models"
)

func testPayload() (*models.School, *models.DigestPayload) {
	asOf := time.Date(2019, 7, 16, 18, 0, 0, 0, time.UTC)
	school := &models.School{ID: 1, Name: "Test School", PrimaryDomain: "test.unisphere.app"}
	payload := &models.DigestPayload{
		SchoolID:    1,
		RecipientID: 42,
		Email:       "student@example.com",
		Subject:     "Test School Daily Digest – Jul 16, 2019",
		AsOf:        asOf,
		Communities: []models.Community{
			{ID: 7, Name: "Algorithms"},
			{ID: 8, Name: "Quiet Corner"},
		},
		Questions: []models.Question{
			{ID: 100, CommunityID: 7, Title: "How does *quicksort* pick a pivot?", CreatedAt: asOf.Add(-48 * time.Hour)},
			{ID: 101, CommunityID: 7, Title: "<script>alert(1)</script> tricky", CreatedAt: asOf.Add(-72 * time.Hour)},
		},
	}
	return school, payload
}

func TestRender(t *testing.T) {
	school, payload := testPayload()

	msg, err := NewDigestRenderer().Render(school, payload)
	require.NoError(t, err)

	assert.Equal(t, "Test School", msg.FromName)
	assert.Equal(t, "student@example.com", msg.To)
	assert.Equal(t, payload.Subject, msg.Subject)

	assert.Contains(t, msg.HTML, `href="https://test.unisphere.app/communities/7"`)
	assert.Contains(t, msg.HTML, `href="https://test.unisphere.app/questions/100"`)
	assert.Contains(t, msg.HTML, "How does *quicksort* pick a pivot?")
	assert.Contains(t, msg.HTML, "Quiet Corner")
	assert.Contains(t, msg.HTML, "asked Jul 14")
	assert.NotContains(t, msg.HTML, "<script>")

	assert.Contains(t, msg.Text, "Algorithms (https://test.unisphere.app/communities/7)")
	assert.Contains(t, msg.Text, "https://test.unisphere.app/questions/101")
	assert.Contains(t, msg.Text, "How does *quicksort* pick a pivot?")
}

func TestFromName(t *testing.T) {
	assert.Equal(t, "Test School", FromName("Test School"))
	assert.Equal(t, "St Marys College", FromName("St. Mary's College"))
	assert.Equal(t, "ACME", FromName(" <ACME> "))
	assert.Equal(t, "", FromName("\"\"@"))
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `\[link\]\(x\)`, escapeMarkdown("[link](x)"))
	assert.Equal(t, `a\_b\*c`, escapeMarkdown("a_b*c"))
}

package services

import "github.com/yigit/unisphere-digest/internal/app/models"

// IsEligible reports whether a digest should be generated for the recipient
// at all. Ineligible recipients are skipped silently.
func IsEligible(recipient models.Recipient) bool {
	return recipient.DigestEnabled && !recipient.EmailBounced && recipient.TeamActive
}

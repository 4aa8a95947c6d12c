package email

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/yigit/unisphere-digest/internal/app/models"
)

var (
	markdownSpecial = regexp.MustCompile("([\\\\`*_{}\\[\\]()#+\\-.!<>|~])")
	fromNameUnsafe  = regexp.MustCompile(`[^0-9A-Za-z ]`)
)

// questionDateLayout renders dates like "Jul 14"
const questionDateLayout = "Jan 2"

// DigestRenderer turns a digest payload into the text and HTML bodies
type DigestRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewDigestRenderer creates a renderer
func NewDigestRenderer() *DigestRenderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.Strikethrough),
	)

	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	return &DigestRenderer{md: md, policy: p}
}

// FromName strips a school name down to characters safe in a From header
func FromName(schoolName string) string {
	return strings.TrimSpace(fromNameUnsafe.ReplaceAllString(schoolName, ""))
}

// Render builds the message for one payload. Links point at the school's
// primary domain.
func (r *DigestRenderer) Render(school *models.School, payload *models.DigestPayload) (Message, error) {
	base := "https://" + school.PrimaryDomain

	htmlBody, err := r.renderHTML(r.markdown(school, payload, base))
	if err != nil {
		return Message{}, fmt.Errorf("rendering digest for user %d: %w", payload.RecipientID, err)
	}

	return Message{
		FromName: FromName(school.Name),
		To:       payload.Email,
		Subject:  payload.Subject,
		Text:     plainText(school, payload, base),
		HTML:     htmlBody,
	}, nil
}

func (r *DigestRenderer) renderHTML(source string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return r.policy.Sanitize(buf.String()), nil
}

// grouped returns the payload's questions grouped by community, communities
// in payload order, questions in ranked order
func grouped(payload *models.DigestPayload) map[int64][]models.Question {
	groups := make(map[int64][]models.Question, len(payload.Communities))
	for _, q := range payload.Questions {
		groups[q.CommunityID] = append(groups[q.CommunityID], q)
	}
	return groups
}

func (r *DigestRenderer) markdown(school *models.School, payload *models.DigestPayload, base string) string {
	var b strings.Builder
	groups := grouped(payload)

	fmt.Fprintf(&b, "# %s\n\n", escapeMarkdown(payload.Subject))
	b.WriteString("These questions were asked in your communities recently and are still waiting for an answer.\n\n")

	for _, c := range payload.Communities {
		questions := groups[c.ID]
		if len(questions) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## [%s](%s/communities/%d)\n\n", escapeMarkdown(c.Name), base, c.ID)
		for _, q := range questions {
			fmt.Fprintf(&b, "- [%s](%s/questions/%d) _asked %s_\n",
				escapeMarkdown(q.Title), base, q.ID, q.CreatedAt.In(payload.AsOf.Location()).Format(questionDateLayout))
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\nYour communities: ")
	for i, c := range payload.Communities {
		if i > 0 {
			b.WriteString(" · ")
		}
		fmt.Fprintf(&b, "[%s](%s/communities/%d)", escapeMarkdown(c.Name), base, c.ID)
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "You are receiving this because daily digests are enabled for your %s account. [Manage preferences](%s/home).\n",
		escapeMarkdown(school.Name), base)

	return b.String()
}

func plainText(school *models.School, payload *models.DigestPayload, base string) string {
	var b strings.Builder
	groups := grouped(payload)

	b.WriteString(payload.Subject + "\n\n")
	b.WriteString("These questions were asked in your communities recently and are still waiting for an answer.\n\n")

	for _, c := range payload.Communities {
		questions := groups[c.ID]
		if len(questions) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s (%s/communities/%d)\n", c.Name, base, c.ID)
		for _, q := range questions {
			fmt.Fprintf(&b, "  * %s\n    %s/questions/%d\n", q.Title, base, q.ID)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Manage your %s email preferences at %s/home\n", school.Name, base)
	return b.String()
}

func escapeMarkdown(s string) string {
	return markdownSpecial.ReplaceAllString(s, `\$1`)
}

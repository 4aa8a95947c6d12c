package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yigit/unisphere-digest/internal/app/models"
	"github.com/yigit/unisphere-digest/internal/pkg/apperrors"
)

// memoryStore is an in-memory DirectoryStore
type memoryStore struct {
	schools     map[int64]models.School
	recipients  map[int64][]models.Recipient
	teamCourse  map[int64]models.Course
	communities map[int64][]models.Community // by course id
	questions   map[int64][]models.Question  // by community id
	comments    map[int64][]time.Time        // by question id

	mu           sync.Mutex
	recipientErr map[int64]error
	questionErr  error
	questionHook func(ctx context.Context)
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		schools:      map[int64]models.School{},
		recipients:   map[int64][]models.Recipient{},
		teamCourse:   map[int64]models.Course{},
		communities:  map[int64][]models.Community{},
		questions:    map[int64][]models.Question{},
		comments:     map[int64][]time.Time{},
		recipientErr: map[int64]error{},
	}
}

func (m *memoryStore) GetSchool(_ context.Context, schoolID int64) (*models.School, error) {
	s, ok := m.schools[schoolID]
	if !ok {
		return nil, apperrors.ErrSchoolNotFound
	}
	return &s, nil
}

func (m *memoryStore) ListSchools(_ context.Context) ([]models.School, error) {
	schools := make([]models.School, 0, len(m.schools))
	for _, s := range m.schools {
		schools = append(schools, s)
	}
	sort.Slice(schools, func(i, j int) bool { return schools[i].ID < schools[j].ID })
	return schools, nil
}

func (m *memoryStore) GetRecipients(_ context.Context, schoolID int64) ([]models.Recipient, error) {
	return append([]models.Recipient(nil), m.recipients[schoolID]...), nil
}

func (m *memoryStore) GetRecipient(_ context.Context, schoolID, userID int64) (*models.Recipient, error) {
	for _, r := range m.recipients[schoolID] {
		if r.UserID == userID {
			r := r
			return &r, nil
		}
	}
	return nil, apperrors.ErrRecipientNotFound
}

func (m *memoryStore) GetTeamCourse(_ context.Context, recipient models.Recipient) (*models.Course, error) {
	m.mu.Lock()
	err := m.recipientErr[recipient.UserID]
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if recipient.TeamID == nil {
		return nil, nil
	}
	c, ok := m.teamCourse[*recipient.TeamID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memoryStore) GetCommunitiesForCourse(_ context.Context, course models.Course) ([]models.Community, error) {
	return append([]models.Community(nil), m.communities[course.ID]...), nil
}

// GetQuestions returns every question of the community created in the
// window, archived ones included, with comment counts as of asOf.
func (m *memoryStore) GetQuestions(ctx context.Context, community models.Community, since, asOf time.Time) ([]models.Question, error) {
	if m.questionHook != nil {
		m.questionHook(ctx)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	if m.questionErr != nil {
		return nil, m.questionErr
	}

	var out []models.Question
	for _, q := range m.questions[community.ID] {
		if q.CreatedAt.Before(since) || q.CreatedAt.After(asOf) {
			continue
		}
		count := 0
		for _, at := range m.comments[q.ID] {
			if !at.After(asOf) {
				count++
			}
		}
		q.CommentCount = count
		out = append(out, q)
	}
	return out, nil
}

// sentDigest is one captured delivery
type sentDigest struct {
	school  models.School
	payload models.DigestPayload
}

// memoryMailer records deliveries. sendFunc, when set, decides the result of
// each attempt.
type memoryMailer struct {
	mu       sync.Mutex
	sent     []sentDigest
	attempts map[int64]int
	sendFunc func(ctx context.Context, payload *models.DigestPayload, attempt int) error
}

func newMemoryMailer() *memoryMailer {
	return &memoryMailer{attempts: map[int64]int{}}
}

func (m *memoryMailer) SendDigest(ctx context.Context, school *models.School, payload *models.DigestPayload) error {
	m.mu.Lock()
	m.attempts[payload.RecipientID]++
	attempt := m.attempts[payload.RecipientID]
	fn := m.sendFunc
	m.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, payload, attempt); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentDigest{school: *school, payload: *payload})
	return nil
}

func (m *memoryMailer) digestFor(userID int64) (*models.DigestPayload, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sent {
		if s.payload.RecipientID == userID {
			p := s.payload
			return &p, true
		}
	}
	return nil, false
}

func (m *memoryMailer) attemptsFor(userID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[userID]
}

func (m *memoryMailer) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func titles(p *models.DigestPayload) []string {
	out := make([]string, 0, len(p.Questions))
	for _, q := range p.Questions {
		out = append(out, q.Title)
	}
	return out
}

func int64Ptr(v int64) *int64 { return &v }

// Fixture ids for the school scenario
const (
	schoolID = int64(1)

	team1 = int64(11)
	team2 = int64(12)
	team3 = int64(13)
	team4 = int64(14)

	course1 = int64(21)
	course2 = int64(22)
	course3 = int64(23)
	course4 = int64(24)

	community1 = int64(31)
	community2 = int64(32)
	community3 = int64(33)

	userT1          = int64(101)
	userT2Regular   = int64(102)
	userT2NoDigest  = int64(103)
	userT2Bounced   = int64(104)
	userT3          = int64(105)
	userT4Dropped   = int64(106)
	userTeamless    = int64(107)
	otherSchoolID   = int64(2)
	otherCommunity  = int64(39)
	otherSchoolUser = int64(201)
)

var scenarioAsOf = time.Date(2019, 7, 16, 18, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))

func daysAgo(n int) time.Time {
	return scenarioAsOf.Add(-time.Duration(n) * 24 * time.Hour)
}

// newScenarioStore builds a school with four teams on four courses and three
// communities shared between them:
//
//	community 1: course 1
//	community 2: courses 1, 2
//	community 3: courses 1, 2, 3, 4
func newScenarioStore() *memoryStore {
	m := newMemoryStore()
	m.schools[schoolID] = models.School{ID: schoolID, Name: "Test School", PrimaryDomain: "test.unisphere.app"}

	m.teamCourse[team1] = models.Course{ID: course1, SchoolID: schoolID, Name: "Course 1"}
	m.teamCourse[team2] = models.Course{ID: course2, SchoolID: schoolID, Name: "Course 2"}
	m.teamCourse[team3] = models.Course{ID: course3, SchoolID: schoolID, Name: "Course 3"}
	m.teamCourse[team4] = models.Course{ID: course4, SchoolID: schoolID, Name: "Course 4"}

	c1 := models.Community{ID: community1, SchoolID: schoolID, Name: "Community One", CreatedAt: daysAgo(30)}
	c2 := models.Community{ID: community2, SchoolID: schoolID, Name: "Community Two", CreatedAt: daysAgo(20)}
	c3 := models.Community{ID: community3, SchoolID: schoolID, Name: "Community Three", CreatedAt: daysAgo(10)}
	m.communities[course1] = []models.Community{c3, c1, c2}
	m.communities[course2] = []models.Community{c2, c3}
	m.communities[course3] = []models.Community{c3}
	m.communities[course4] = []models.Community{c3}

	m.questions[community1] = []models.Question{
		{ID: 1, CommunityID: community1, CreatorID: userT1, Title: "question c1", CreatedAt: scenarioAsOf},
	}
	m.questions[community2] = []models.Question{
		{ID: 2, CommunityID: community2, CreatorID: userT2Regular, Title: "question c2_1", CreatedAt: scenarioAsOf},
		{ID: 3, CommunityID: community2, CreatorID: userT2NoDigest, Title: "question c2_2", CreatedAt: scenarioAsOf},
	}
	m.questions[community3] = []models.Question{
		{ID: 4, CommunityID: community3, CreatorID: userT3, Title: "question c3_1", CreatedAt: daysAgo(2), Archived: true},
		{ID: 5, CommunityID: community3, CreatorID: userT3, Title: "question c3_2", CreatedAt: daysAgo(3)},
		{ID: 6, CommunityID: community3, CreatorID: userT3, Title: "question c3_3", CreatedAt: daysAgo(8)},
	}

	m.recipients[schoolID] = []models.Recipient{
		{UserID: userT1, SchoolID: schoolID, TeamID: int64Ptr(team1), Email: "t1@example.com", DigestEnabled: true, TeamActive: true},
		{UserID: userT2Regular, SchoolID: schoolID, TeamID: int64Ptr(team2), Email: "t2.regular@example.com", DigestEnabled: true, TeamActive: true},
		{UserID: userT2NoDigest, SchoolID: schoolID, TeamID: int64Ptr(team2), Email: "t2.nodigest@example.com", DigestEnabled: false, TeamActive: true},
		{UserID: userT2Bounced, SchoolID: schoolID, TeamID: int64Ptr(team2), Email: "t2.bounced@example.com", DigestEnabled: true, EmailBounced: true, TeamActive: true},
		{UserID: userT3, SchoolID: schoolID, TeamID: int64Ptr(team3), Email: "t3@example.com", DigestEnabled: true, TeamActive: true},
		{UserID: userT4Dropped, SchoolID: schoolID, TeamID: int64Ptr(team4), Email: "t4@example.com", DigestEnabled: true, TeamActive: false},
	}

	return m
}

// addBusyCommunityThree replaces community 3's questions with enough recent
// ones to exceed the cap
func addBusyCommunityThree(m *memoryStore) {
	m.questions[community3] = []models.Question{
		{ID: 4, CommunityID: community3, Title: "question c3_1", CreatedAt: daysAgo(2), Archived: true},
		{ID: 5, CommunityID: community3, Title: "question c3_2", CreatedAt: daysAgo(3)},
		{ID: 6, CommunityID: community3, Title: "question c3_3", CreatedAt: daysAgo(2)},
		{ID: 7, CommunityID: community3, Title: "question c3_archived", CreatedAt: daysAgo(3), Archived: true},
		{ID: 8, CommunityID: community3, Title: "question c3_4", CreatedAt: daysAgo(3)},
		{ID: 9, CommunityID: community3, Title: "question c3_5", CreatedAt: daysAgo(4)},
		{ID: 10, CommunityID: community3, Title: "question c3_6", CreatedAt: daysAgo(5)},
		{ID: 11, CommunityID: community3, Title: "question c3_7", CreatedAt: daysAgo(6)},
		{ID: 12, CommunityID: community3, Title: "question c3_8", CreatedAt: daysAgo(6)},
	}
	m.comments[10] = []time.Time{daysAgo(1)}
}

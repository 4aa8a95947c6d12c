package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/yigit/unisphere-digest/internal/app/models"
)

// CommunityAccessResolver follows Recipient -> Team -> Course -> Community
type CommunityAccessResolver struct {
	store DirectoryStore
}

// NewCommunityAccessResolver creates a resolver over the directory
func NewCommunityAccessResolver(store DirectoryStore) *CommunityAccessResolver {
	return &CommunityAccessResolver{store: store}
}

// VisibleCommunities returns the communities reachable from the recipient's
// current team, ordered by creation time then ID. A recipient without a team
// or course gets an empty, non-nil slice.
func (r *CommunityAccessResolver) VisibleCommunities(ctx context.Context, recipient models.Recipient) ([]models.Community, error) {
	course, err := r.store.GetTeamCourse(ctx, recipient)
	if err != nil {
		return nil, fmt.Errorf("resolving course for user %d: %w", recipient.UserID, err)
	}
	if course == nil {
		return []models.Community{}, nil
	}

	linked, err := r.store.GetCommunitiesForCourse(ctx, *course)
	if err != nil {
		return nil, fmt.Errorf("loading communities for course %d: %w", course.ID, err)
	}

	seen := make(map[int64]struct{}, len(linked))
	communities := make([]models.Community, 0, len(linked))
	for _, c := range linked {
		// Never cross the tenant boundary, whatever the link table says
		if c.SchoolID != recipient.SchoolID {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		communities = append(communities, c)
	}

	sort.SliceStable(communities, func(i, j int) bool {
		if !communities[i].CreatedAt.Equal(communities[j].CreatedAt) {
			return communities[i].CreatedAt.Before(communities[j].CreatedAt)
		}
		return communities[i].ID < communities[j].ID
	})

	return communities, nil
}

package scheduler

import (
	"github.com/spigell/hh-toucher/internal/storage"
)

// TokenGroup holds the resumes sharing one token. They are processed under
// one API session since hh.ru limits requests per token.
type TokenGroup struct {
	// Token is empty for users who never authorized. Such a group can only expire.
	Token   string
	UserIDs []int64
	Resumes []*storage.Resume
}

// GroupByToken groups resumes by the current token of their owner. Groups and
// the resumes inside them keep the order they were first seen in. Resumes whose
// owner is missing from users are returned separately.
func GroupByToken(resumes []*storage.Resume, users map[int64]*storage.User) ([]*TokenGroup, []*storage.Resume) {
	var (
		groups   []*TokenGroup
		orphans  []*storage.Resume
		byToken  = make(map[string]*TokenGroup)
		userSeen = make(map[string]map[int64]struct{})
	)

	for _, r := range resumes {
		user, ok := users[r.UserID]
		if !ok || user == nil {
			orphans = append(orphans, r)
			continue
		}

		group, ok := byToken[user.Token]
		if !ok {
			group = &TokenGroup{Token: user.Token}
			byToken[user.Token] = group
			userSeen[user.Token] = make(map[int64]struct{})
			groups = append(groups, group)
		}

		if _, seen := userSeen[user.Token][user.ID]; !seen {
			userSeen[user.Token][user.ID] = struct{}{}
			group.UserIDs = append(group.UserIDs, user.ID)
		}

		group.Resumes = append(group.Resumes, r)
	}

	return groups, orphans
}

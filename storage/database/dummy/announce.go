package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/announce"
)

type announceRepository struct {
	db *announceTable
}

var _ announce.Repository = (*announceRepository)(nil) // interface compliance check

func NewAnnounceRepository(db *DB) announce.Repository {
	return &announceRepository{db: db.announce}
}

func (repo *announceRepository) CreateAnnouncement(ctx context.Context, ann announce.Announcement) (announce.Announcement, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	ann.ID = uuid.New().String()
	repo.db.table[ann.ID] = &ann
	return ann, nil
}

func (repo *announceRepository) QueryAnnouncements(ctx context.Context, scope access.Scope, filter *announce.QueryFilter, ordering []core.DBOrdering) ([]announce.Announcement, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	announcements := make([]announce.Announcement, 0, len(repo.db.table))
	for _, ann := range repo.db.table {
		switch {
		case scope.All:
		case scope.CreatedByID != "":
			if ann.CreatedByID != scope.CreatedByID {
				continue
			}
		default:
			continue
		}
		if filter != nil {
			if filter.Audience != "" && ann.Audience != filter.Audience {
				continue
			}
			if filter.Priority != "" && ann.Priority != filter.Priority {
				continue
			}
		}
		announcements = append(announcements, *ann)
	}
	sort.Slice(announcements, func(i, j int) bool {
		return announcements[i].CreatedAt.Before(announcements[j].CreatedAt)
	})
	return announcements, nil
}

func (repo *announceRepository) GetAnnouncement(ctx context.Context, id string) (announce.Announcement, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if ann, ok := repo.db.table[id]; ok {
		return *ann, nil
	}
	return announce.Announcement{}, announce.ErrNotFound
}

func (repo *announceRepository) UpdateAnnouncement(ctx context.Context, ann announce.Announcement) (announce.Announcement, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[ann.ID]; !ok {
		return announce.Announcement{}, announce.ErrNotFound
	}
	repo.db.table[ann.ID] = &ann
	return ann, nil
}

func (repo *announceRepository) DeleteAnnouncementsByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

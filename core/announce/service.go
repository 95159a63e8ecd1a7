package announce

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/user"
)

var ErrNotFound = errors.New("announcement not found")

type (
	Repository interface {
		CreateAnnouncement(ctx context.Context, ann Announcement) (Announcement, error)
		QueryAnnouncements(ctx context.Context, scope access.Scope, filter *QueryFilter, ordering []core.DBOrdering) ([]Announcement, error)
		GetAnnouncement(ctx context.Context, id string) (Announcement, error)
		UpdateAnnouncement(ctx context.Context, ann Announcement) (Announcement, error)
		DeleteAnnouncementsByID(ctx context.Context, ids ...string) error
	}

	ServiceInterface interface {
		Create(ctx context.Context, actor *user.User, na NewAnnouncement) (Announcement, error)
		Query(ctx context.Context, actor *user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Announcement, error)
		GetByID(ctx context.Context, actor *user.User, id string) (Announcement, error)
		Update(ctx context.Context, actor *user.User, id string, ua UpdateAnnouncement) (Announcement, error)
		Delete(ctx context.Context, actor *user.User, ids ...string) error
	}

	service struct {
		repo       Repository
		dispatcher *Dispatcher
	}
)

var _ ServiceInterface = (*service)(nil)

// NewService returns an announcement service; dispatcher may be nil when
// notification delivery is not wanted (tests, CLI).
func NewService(repo Repository, dispatcher *Dispatcher) *service {
	return &service{repo: repo, dispatcher: dispatcher}
}

// Create persists the announcement, then hands it off for delivery.
// Delivery happens in the background and can never fail the create.
func (svc *service) Create(ctx context.Context, actor *user.User, na NewAnnouncement) (Announcement, error) {
	if err := access.CanCreate(actor, access.EntityAnnouncement); err != nil {
		return Announcement{}, err
	}
	now := time.Now().UTC()
	ann, err := svc.repo.CreateAnnouncement(ctx, Announcement{
		Title:       na.Title,
		Body:        na.Body,
		Audience:    na.Audience,
		Priority:    na.Priority,
		Channels:    na.Channels,
		CreatedByID: access.Attribution(actor, access.EntityAnnouncement).CreatedByID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Announcement{}, err
	}
	if svc.dispatcher != nil {
		svc.dispatcher.Dispatch(ann)
	}
	return ann, nil
}

func (svc *service) Query(ctx context.Context, actor *user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Announcement, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryAnnouncements(ctx, access.Resolve(actor, access.EntityAnnouncement), filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, actor *user.User, id string) (Announcement, error) {
	ann, err := svc.repo.GetAnnouncement(ctx, id)
	if err != nil {
		return Announcement{}, err
	}
	if scope := access.Resolve(actor, access.EntityAnnouncement); !scope.All && ann.CreatedByID != scope.CreatedByID {
		return Announcement{}, ErrNotFound
	}
	return ann, nil
}

func (svc *service) Update(ctx context.Context, actor *user.User, id string, ua UpdateAnnouncement) (Announcement, error) {
	ann, err := svc.GetByID(ctx, actor, id)
	if err != nil {
		return Announcement{}, err
	}
	if err = svc.canMutate(actor, ann.CreatedByID); err != nil {
		return Announcement{}, err
	}

	if ua.Title != "" {
		ann.Title = ua.Title
	}
	if ua.Body != "" {
		ann.Body = ua.Body
	}
	if ua.Audience != "" {
		ann.Audience = ua.Audience
	}
	if ua.Priority != "" {
		ann.Priority = ua.Priority
	}
	if ua.Channels != nil {
		ann.Channels = ua.Channels
	}
	ann.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateAnnouncement(ctx, ann)
}

func (svc *service) Delete(ctx context.Context, actor *user.User, ids ...string) error {
	for _, id := range ids {
		ann, err := svc.GetByID(ctx, actor, id)
		if err != nil {
			return err
		}
		if err = svc.canMutate(actor, ann.CreatedByID); err != nil {
			return err
		}
	}
	return svc.repo.DeleteAnnouncementsByID(ctx, ids...)
}

func (svc *service) canMutate(actor *user.User, ownerID string) error {
	switch err := access.CanMutate(actor, access.EntityAnnouncement, ownerID); err {
	case nil:
		return nil
	case access.ErrHidden:
		return ErrNotFound
	default:
		return err
	}
}

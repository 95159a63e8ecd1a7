package library

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/user"
)

var (
	// errors
	ErrNotFound         = errors.New("library item not found")
	ErrFavoriteNotFound = errors.New("favorite not found")
)

type (
	Repository interface {
		CreateItem(ctx context.Context, itm Item) (Item, error)
		QueryItems(ctx context.Context, scope access.Scope, filter *QueryFilter, ordering []core.DBOrdering) ([]Item, error)
		GetItem(ctx context.Context, id string) (Item, error)
		UpdateItem(ctx context.Context, itm Item) (Item, error)
		DeleteItemsByID(ctx context.Context, ids ...string) error
		// IncrementDownloads bumps the item's counter atomically; it is an
		// event tally, not a derived aggregate, so there is nothing to recount.
		IncrementDownloads(ctx context.Context, id string) (Item, error)

		CreateFavorite(ctx context.Context, fav Favorite) (Favorite, error)
		QueryFavorites(ctx context.Context, scope access.Scope, ordering []core.DBOrdering) ([]Favorite, error)
		GetFavoriteForItem(ctx context.Context, userID, itemID string) (Favorite, error)
		DeleteFavoritesByID(ctx context.Context, ids ...string) error
	}

	ServiceInterface interface {
		Create(ctx context.Context, actor *user.User, ni NewItem) (Item, error)
		Query(ctx context.Context, actor *user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Item, error)
		GetByID(ctx context.Context, actor *user.User, id string) (Item, error)
		Update(ctx context.Context, actor *user.User, id string, ui UpdateItem) (Item, error)
		Delete(ctx context.Context, actor *user.User, ids ...string) error
		RecordDownload(ctx context.Context, id string) (Item, error)

		Favorite(ctx context.Context, actor *user.User, itemID string) (Favorite, error)
		Unfavorite(ctx context.Context, actor *user.User, itemID string) error
		QueryFavorites(ctx context.Context, actor *user.User, ordering []core.DBOrdering) ([]Favorite, error)
	}

	service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository) *service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, actor *user.User, ni NewItem) (Item, error) {
	if err := access.CanCreate(actor, access.EntityLibraryItem); err != nil {
		return Item{}, err
	}
	now := time.Now().UTC()
	return svc.repo.CreateItem(ctx, Item{
		Title:        ni.Title,
		Description:  ni.Description,
		ItemType:     ni.ItemType,
		Category:     ni.Category,
		CourseID:     ni.CourseID,
		FileURL:      ni.FileURL,
		UploadedByID: access.Attribution(actor, access.EntityLibraryItem).UploadedByID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (svc *service) Query(ctx context.Context, actor *user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Item, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryItems(ctx, access.Resolve(actor, access.EntityLibraryItem), filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, actor *user.User, id string) (Item, error) {
	itm, err := svc.repo.GetItem(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if scope := access.Resolve(actor, access.EntityLibraryItem); !scope.All && itm.UploadedByID != scope.UploadedByID {
		return Item{}, ErrNotFound
	}
	return itm, nil
}

func (svc *service) Update(ctx context.Context, actor *user.User, id string, ui UpdateItem) (Item, error) {
	itm, err := svc.GetByID(ctx, actor, id)
	if err != nil {
		return Item{}, err
	}
	if err = svc.canMutate(actor, itm.UploadedByID); err != nil {
		return Item{}, err
	}

	if ui.Title != "" {
		itm.Title = ui.Title
	}
	if ui.Description != "" {
		itm.Description = ui.Description
	}
	if ui.ItemType != "" {
		itm.ItemType = ui.ItemType
	}
	if ui.Category != "" {
		itm.Category = ui.Category
	}
	if ui.FileURL != "" {
		itm.FileURL = ui.FileURL
	}
	itm.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateItem(ctx, itm)
}

func (svc *service) Delete(ctx context.Context, actor *user.User, ids ...string) error {
	for _, id := range ids {
		itm, err := svc.GetByID(ctx, actor, id)
		if err != nil {
			return err
		}
		if err = svc.canMutate(actor, itm.UploadedByID); err != nil {
			return err
		}
	}
	return svc.repo.DeleteItemsByID(ctx, ids...)
}

// RecordDownload tallies one download. Downloads are open to everyone who can
// see the item, including anonymous visitors.
func (svc *service) RecordDownload(ctx context.Context, id string) (Item, error) {
	return svc.repo.IncrementDownloads(ctx, id)
}

func (svc *service) Favorite(ctx context.Context, actor *user.User, itemID string) (Favorite, error) {
	if err := access.CanCreate(actor, access.EntityLibraryFavorite); err != nil {
		return Favorite{}, err
	}
	itm, err := svc.repo.GetItem(ctx, itemID)
	if err != nil {
		return Favorite{}, err
	}
	if fav, err := svc.repo.GetFavoriteForItem(ctx, actor.ID, itm.ID); err == nil {
		return fav, nil // (user, item) unique
	} else if errors.Cause(err) != ErrFavoriteNotFound {
		return Favorite{}, err
	}
	return svc.repo.CreateFavorite(ctx, Favorite{
		UserID:    actor.ID,
		ItemID:    itm.ID,
		CreatedAt: time.Now().UTC(),
	})
}

func (svc *service) Unfavorite(ctx context.Context, actor *user.User, itemID string) error {
	if actor == nil {
		return access.ErrDenied
	}
	fav, err := svc.repo.GetFavoriteForItem(ctx, actor.ID, itemID)
	if err != nil {
		return err
	}
	return svc.repo.DeleteFavoritesByID(ctx, fav.ID)
}

func (svc *service) QueryFavorites(ctx context.Context, actor *user.User, ordering []core.DBOrdering) ([]Favorite, error) {
	return svc.repo.QueryFavorites(ctx, access.Resolve(actor, access.EntityLibraryFavorite), ordering)
}

func (svc *service) canMutate(actor *user.User, ownerID string) error {
	switch err := access.CanMutate(actor, access.EntityLibraryItem, ownerID); err {
	case nil:
		return nil
	case access.ErrHidden:
		return ErrNotFound
	default:
		return err
	}
}

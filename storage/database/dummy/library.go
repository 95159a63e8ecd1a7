package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/library"
)

type libraryRepository struct {
	db *libraryTables
}

var _ library.Repository = (*libraryRepository)(nil) // interface compliance check

func NewLibraryRepository(db *DB) library.Repository {
	return &libraryRepository{db: db.library}
}

func (repo *libraryRepository) CreateItem(ctx context.Context, itm library.Item) (library.Item, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	itm.ID = uuid.New().String()
	repo.db.items[itm.ID] = &itm
	return itm, nil
}

func (repo *libraryRepository) QueryItems(ctx context.Context, scope access.Scope, filter *library.QueryFilter, ordering []core.DBOrdering) ([]library.Item, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	items := make([]library.Item, 0, len(repo.db.items))
	for _, itm := range repo.db.items {
		switch {
		case scope.All:
		case scope.UploadedByID != "":
			if itm.UploadedByID != scope.UploadedByID {
				continue
			}
		default:
			continue
		}
		if filter != nil {
			if filter.Search != "" &&
				!strings.Contains(strings.ToLower(itm.Title), filter.Search) &&
				!strings.Contains(strings.ToLower(itm.Description), filter.Search) {
				continue
			}
			if filter.ItemType != "" && itm.ItemType != filter.ItemType {
				continue
			}
			if filter.Category != "" && itm.Category != filter.Category {
				continue
			}
			if filter.CourseID != "" && itm.CourseID != filter.CourseID {
				continue
			}
		}
		items = append(items, *itm)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (repo *libraryRepository) GetItem(ctx context.Context, id string) (library.Item, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if itm, ok := repo.db.items[id]; ok {
		return *itm, nil
	}
	return library.Item{}, library.ErrNotFound
}

func (repo *libraryRepository) UpdateItem(ctx context.Context, itm library.Item) (library.Item, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.items[itm.ID]
	if !ok {
		return library.Item{}, library.ErrNotFound
	}
	itm.TotalDownloads = orig.TotalDownloads
	repo.db.items[itm.ID] = &itm
	return itm, nil
}

func (repo *libraryRepository) DeleteItemsByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.items, id)
	}
	return nil
}

func (repo *libraryRepository) IncrementDownloads(ctx context.Context, id string) (library.Item, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	itm, ok := repo.db.items[id]
	if !ok {
		return library.Item{}, library.ErrNotFound
	}
	itm.TotalDownloads++
	return *itm, nil
}

func (repo *libraryRepository) CreateFavorite(ctx context.Context, fav library.Favorite) (library.Favorite, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	fav.ID = uuid.New().String()
	repo.db.favorites[fav.ID] = &fav
	return fav, nil
}

func (repo *libraryRepository) QueryFavorites(ctx context.Context, scope access.Scope, ordering []core.DBOrdering) ([]library.Favorite, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	favorites := make([]library.Favorite, 0, len(repo.db.favorites))
	for _, fav := range repo.db.favorites {
		switch {
		case scope.All:
		case scope.UserID != "":
			if fav.UserID != scope.UserID {
				continue
			}
		default:
			continue
		}
		favorites = append(favorites, *fav)
	}
	sort.Slice(favorites, func(i, j int) bool { return favorites[i].CreatedAt.Before(favorites[j].CreatedAt) })
	return favorites, nil
}

func (repo *libraryRepository) GetFavoriteForItem(ctx context.Context, userID, itemID string) (library.Favorite, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, fav := range repo.db.favorites {
		if fav.UserID == userID && fav.ItemID == itemID {
			return *fav, nil
		}
	}
	return library.Favorite{}, library.ErrFavoriteNotFound
}

func (repo *libraryRepository) DeleteFavoritesByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.favorites, id)
	}
	return nil
}

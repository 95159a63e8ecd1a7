package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/library"
)

type libraryItemRow struct {
	ID             string      `db:"id"`
	Title          string      `db:"title"`
	Description    null.String `db:"description"`
	ItemType       null.String `db:"item_type"`
	Category       null.String `db:"category"`
	CourseID       null.String `db:"course_id"`
	FileURL        null.String `db:"file_url"`
	UploadedByID   null.String `db:"uploaded_by"`
	TotalDownloads int         `db:"total_downloads"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func (row libraryItemRow) unpack() library.Item {
	return library.Item{
		ID:             row.ID,
		Title:          row.Title,
		Description:    row.Description.String,
		ItemType:       row.ItemType.String,
		Category:       row.Category.String,
		CourseID:       row.CourseID.String,
		FileURL:        row.FileURL.String,
		UploadedByID:   row.UploadedByID.String,
		TotalDownloads: row.TotalDownloads,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

type favoriteRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	ItemID    string    `db:"item_id"`
	CreatedAt time.Time `db:"created_at"`
}

func (row favoriteRow) unpack() library.Favorite {
	return library.Favorite(row)
}

var (
	libraryItemCols = cols("title", "item_type", "category", "total_downloads", "created_at", "updated_at")
	favoriteCols    = cols("created_at")
)

const (
	selectLibraryItem = `SELECT id, title, description, item_type, category, course_id, file_url, uploaded_by, total_downloads, created_at, updated_at FROM library_item`
	selectFavorite    = `SELECT id, user_id, item_id, created_at FROM library_favorite`
)

type libraryRepository struct {
	db *sqlx.DB
}

var _ library.Repository = (*libraryRepository)(nil) // interface compliance check

func NewLibraryRepository(db *sqlx.DB) *libraryRepository {
	return &libraryRepository{db: db}
}

func (repo *libraryRepository) trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// -------------------------------------------------------------------- items

func (repo *libraryRepository) CreateItem(ctx context.Context, itm library.Item) (library.Item, error) {
	itm.ID = uuid.New().String()
	q := repo.db.Rebind(`
		INSERT INTO library_item (id, title, description, item_type, category, course_id, file_url, uploaded_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := repo.db.ExecContext(ctx, q,
		itm.ID, itm.Title, itm.Description, itm.ItemType, itm.Category,
		null.NewString(itm.CourseID, itm.CourseID != ""), itm.FileURL,
		null.NewString(itm.UploadedByID, itm.UploadedByID != ""),
		itm.CreatedAt.UTC(), itm.UpdatedAt.UTC())
	if err != nil {
		return library.Item{}, errors.Wrap(err, "inserting library item")
	}
	return itm, nil
}

func (repo *libraryRepository) QueryItems(ctx context.Context, scope access.Scope, filter *library.QueryFilter, ordering []core.DBOrdering) ([]library.Item, error) {
	var conds []string
	var args []interface{}
	switch {
	case scope.All:
	case scope.UploadedByID != "":
		conds = append(conds, "uploaded_by = ?")
		args = append(args, scope.UploadedByID)
	default:
		return []library.Item{}, nil
	}

	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			conds = append(conds, "(title ILIKE ? OR description ILIKE ?)")
			args = append(args, val, val)
		}
		if filter.ItemType != "" {
			conds = append(conds, "item_type = ?")
			args = append(args, filter.ItemType)
		}
		if filter.Category != "" {
			conds = append(conds, "category = ?")
			args = append(args, filter.Category)
		}
		if filter.CourseID != "" {
			conds = append(conds, "course_id = ?")
			args = append(args, filter.CourseID)
		}
	}

	q := repo.db.Rebind(selectLibraryItem + where(conds) + orderBy(ordering, libraryItemCols, "created_at ASC"))
	var rows []libraryItemRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying library items")
	}

	items := make([]library.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.unpack())
	}
	return items, nil
}

func (repo *libraryRepository) GetItem(ctx context.Context, id string) (library.Item, error) {
	var row libraryItemRow
	q := repo.db.Rebind(selectLibraryItem + " WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return library.Item{}, repo.trapNoRowsErr(err, library.ErrNotFound, "getting library item")
	}
	return row.unpack(), nil
}

func (repo *libraryRepository) UpdateItem(ctx context.Context, itm library.Item) (library.Item, error) {
	var row libraryItemRow
	q := repo.db.Rebind(`
		UPDATE library_item SET title = ?, description = ?, item_type = ?, category = ?, course_id = ?, file_url = ?, updated_at = ?
		WHERE id = ?
		RETURNING id, title, description, item_type, category, course_id, file_url, uploaded_by, total_downloads, created_at, updated_at`)
	err := repo.db.GetContext(ctx, &row, q,
		itm.Title, itm.Description, itm.ItemType, itm.Category,
		null.NewString(itm.CourseID, itm.CourseID != ""), itm.FileURL, itm.UpdatedAt.UTC(), itm.ID)
	if err != nil {
		return library.Item{}, repo.trapNoRowsErr(err, library.ErrNotFound, "updating library item")
	}
	return row.unpack(), nil
}

func (repo *libraryRepository) DeleteItemsByID(ctx context.Context, ids ...string) error {
	if err := deleteByID(ctx, repo.db, "library_item", ids); err != nil {
		return errors.Wrap(err, "deleting library items")
	}
	return nil
}

func (repo *libraryRepository) IncrementDownloads(ctx context.Context, id string) (library.Item, error) {
	var row libraryItemRow
	q := repo.db.Rebind(`
		UPDATE library_item SET total_downloads = total_downloads + 1, updated_at = now()
		WHERE id = ?
		RETURNING id, title, description, item_type, category, course_id, file_url, uploaded_by, total_downloads, created_at, updated_at`)
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return library.Item{}, repo.trapNoRowsErr(err, library.ErrNotFound, "incrementing downloads")
	}
	return row.unpack(), nil
}

// ---------------------------------------------------------------- favorites

func (repo *libraryRepository) CreateFavorite(ctx context.Context, fav library.Favorite) (library.Favorite, error) {
	fav.ID = uuid.New().String()
	q := repo.db.Rebind(`
		INSERT INTO library_favorite (id, user_id, item_id, created_at)
		VALUES (?, ?, ?, ?)`)
	_, err := repo.db.ExecContext(ctx, q, fav.ID, fav.UserID, fav.ItemID, fav.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			// favoriting is idempotent: the concurrent row stands
			return repo.GetFavoriteForItem(ctx, fav.UserID, fav.ItemID)
		}
		return library.Favorite{}, errors.Wrap(err, "inserting favorite")
	}
	return fav, nil
}

func (repo *libraryRepository) QueryFavorites(ctx context.Context, scope access.Scope, ordering []core.DBOrdering) ([]library.Favorite, error) {
	var conds []string
	var args []interface{}
	switch {
	case scope.All:
	case scope.UserID != "":
		conds = append(conds, "user_id = ?")
		args = append(args, scope.UserID)
	default:
		return []library.Favorite{}, nil
	}

	q := repo.db.Rebind(selectFavorite + where(conds) + orderBy(ordering, favoriteCols, "created_at ASC"))
	var rows []favoriteRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying favorites")
	}

	favorites := make([]library.Favorite, 0, len(rows))
	for _, row := range rows {
		favorites = append(favorites, row.unpack())
	}
	return favorites, nil
}

func (repo *libraryRepository) GetFavoriteForItem(ctx context.Context, userID, itemID string) (library.Favorite, error) {
	var row favoriteRow
	q := repo.db.Rebind(selectFavorite + " WHERE user_id = ? AND item_id = ?")
	if err := repo.db.GetContext(ctx, &row, q, userID, itemID); err != nil {
		return library.Favorite{}, repo.trapNoRowsErr(err, library.ErrFavoriteNotFound, "getting favorite")
	}
	return row.unpack(), nil
}

func (repo *libraryRepository) DeleteFavoritesByID(ctx context.Context, ids ...string) error {
	if err := deleteByID(ctx, repo.db, "library_favorite", ids); err != nil {
		return errors.Wrap(err, "deleting favorites")
	}
	return nil
}

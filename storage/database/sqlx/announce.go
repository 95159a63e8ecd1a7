package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/announce"
)

type announcementRow struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Body        string         `db:"body"`
	Audience    string         `db:"audience"`
	Priority    string         `db:"priority"`
	Channels    pq.StringArray `db:"channels"`
	CreatedByID null.String    `db:"created_by"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (row announcementRow) unpack() announce.Announcement {
	return announce.Announcement{
		ID:          row.ID,
		Title:       row.Title,
		Body:        row.Body,
		Audience:    row.Audience,
		Priority:    row.Priority,
		Channels:    row.Channels,
		CreatedByID: row.CreatedByID.String,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

var announcementCols = cols("title", "audience", "priority", "created_at", "updated_at")

const selectAnnouncement = `SELECT id, title, body, audience, priority, channels, created_by, created_at, updated_at FROM announcement`

type announceRepository struct {
	db *sqlx.DB
}

var _ announce.Repository = (*announceRepository)(nil) // interface compliance check

func NewAnnounceRepository(db *sqlx.DB) *announceRepository {
	return &announceRepository{db: db}
}

func (repo *announceRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return announce.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo *announceRepository) CreateAnnouncement(ctx context.Context, ann announce.Announcement) (announce.Announcement, error) {
	ann.ID = uuid.New().String()
	q := repo.db.Rebind(`
		INSERT INTO announcement (id, title, body, audience, priority, channels, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := repo.db.ExecContext(ctx, q,
		ann.ID, ann.Title, ann.Body, ann.Audience, ann.Priority, pq.StringArray(ann.Channels),
		null.NewString(ann.CreatedByID, ann.CreatedByID != ""), ann.CreatedAt.UTC(), ann.UpdatedAt.UTC())
	if err != nil {
		return announce.Announcement{}, errors.Wrap(err, "inserting announcement")
	}
	return ann, nil
}

func (repo *announceRepository) QueryAnnouncements(ctx context.Context, scope access.Scope, filter *announce.QueryFilter, ordering []core.DBOrdering) ([]announce.Announcement, error) {
	var conds []string
	var args []interface{}
	switch {
	case scope.All:
	case scope.CreatedByID != "":
		conds = append(conds, "created_by = ?")
		args = append(args, scope.CreatedByID)
	default:
		return []announce.Announcement{}, nil
	}

	if filter != nil {
		if filter.Audience != "" {
			conds = append(conds, "audience = ?")
			args = append(args, filter.Audience)
		}
		if filter.Priority != "" {
			conds = append(conds, "priority = ?")
			args = append(args, filter.Priority)
		}
	}

	q := repo.db.Rebind(selectAnnouncement + where(conds) + orderBy(ordering, announcementCols, "created_at DESC"))
	var rows []announcementRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying announcements")
	}

	announcements := make([]announce.Announcement, 0, len(rows))
	for _, row := range rows {
		announcements = append(announcements, row.unpack())
	}
	return announcements, nil
}

func (repo *announceRepository) GetAnnouncement(ctx context.Context, id string) (announce.Announcement, error) {
	var row announcementRow
	q := repo.db.Rebind(selectAnnouncement + " WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return announce.Announcement{}, repo.trapNoRowsErr(err, "getting announcement")
	}
	return row.unpack(), nil
}

func (repo *announceRepository) UpdateAnnouncement(ctx context.Context, ann announce.Announcement) (announce.Announcement, error) {
	var row announcementRow
	q := repo.db.Rebind(`
		UPDATE announcement SET title = ?, body = ?, audience = ?, priority = ?, channels = ?, updated_at = ?
		WHERE id = ?
		RETURNING id, title, body, audience, priority, channels, created_by, created_at, updated_at`)
	err := repo.db.GetContext(ctx, &row, q,
		ann.Title, ann.Body, ann.Audience, ann.Priority, pq.StringArray(ann.Channels), ann.UpdatedAt.UTC(), ann.ID)
	if err != nil {
		return announce.Announcement{}, repo.trapNoRowsErr(err, "updating announcement")
	}
	return row.unpack(), nil
}

func (repo *announceRepository) DeleteAnnouncementsByID(ctx context.Context, ids ...string) error {
	if err := deleteByID(ctx, repo.db, "announcement", ids); err != nil {
		return errors.Wrap(err, "deleting announcements")
	}
	return nil
}

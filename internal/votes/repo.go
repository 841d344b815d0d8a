package votes

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/payoutledger/pkg/db"
	"github.com/angelmondragon/payoutledger/pkg/db/models"
)

// mixChunkSize bounds the bind parameters of one mixing or marking statement.
const mixChunkSize = 5000

// MixedVote carries the computed split for one vote row. Tally is the value
// the split was computed from; rows whose tally moved since are left alone.
type MixedVote struct {
	ID     uuid.UUID
	Tally  decimal.Decimal
	Amount decimal.Decimal
	Fees   decimal.Decimal
}

// Repository persists surveyor groups and votes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	InsertSurveyor(ctx context.Context, group *models.SurveyorGroup) (bool, error)
	FindSurveyor(ctx context.Context, id string) (*models.SurveyorGroup, error)
	IncrementVote(ctx context.Context, vote *models.Vote) error
	FreezeCandidates(ctx context.Context, virtualBefore, nonVirtualBefore time.Time) ([]models.SurveyorGroup, error)
	Freeze(ctx context.Context, id string, at time.Time) (bool, error)
	PendingVotes(ctx context.Context, surveyorID string) ([]models.Vote, error)
	ApplyMix(ctx context.Context, mixed []MixedVote, at time.Time) (int64, error)
	MarkTransacted(ctx context.Context, mixed []MixedVote, at time.Time) (int64, error)
}

// ErrSurveyorNotFound is returned when a surveyor group does not exist.
var ErrSurveyorNotFound = errors.New("surveyor group not found")

type repository struct {
	db *gorm.DB
}

// NewRepository returns a votes repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// InsertSurveyor creates the group unless it already exists; the existing
// price is never overwritten.
func (r *repository) InsertSurveyor(ctx context.Context, group *models.SurveyorGroup) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(group)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FindSurveyor loads the group. On Postgres the row is read FOR SHARE so a
// tally written in the same transaction cannot interleave with a concurrent
// freeze of the group: the freeze waits for the writer, and a writer arriving
// after the freeze waits and then reads frozen.
func (r *repository) FindSurveyor(ctx context.Context, id string) (*models.SurveyorGroup, error) {
	query := r.db.WithContext(ctx)
	if db.IsPostgres(query) {
		query = query.Clauses(clause.Locking{Strength: clause.LockingStrengthShare})
	}
	var group models.SurveyorGroup
	if err := query.Where("id = ?", id).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSurveyorNotFound
		}
		return nil, err
	}
	return &group, nil
}

// IncrementVote inserts the vote or adds its tally to the stored row.
func (r *repository) IncrementVote(ctx context.Context, vote *models.Vote) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "tally"}, Value: gorm.Expr("votes.tally + excluded.tally")},
				{Column: clause.Column{Name: "updated_at"}, Value: vote.UpdatedAt},
			},
		}).
		Create(vote).Error
}

func (r *repository) FreezeCandidates(ctx context.Context, virtualBefore, nonVirtualBefore time.Time) ([]models.SurveyorGroup, error) {
	var groups []models.SurveyorGroup
	err := r.db.WithContext(ctx).
		Where("NOT frozen").
		Where("((NOT virtual AND created_at < ?) OR (virtual AND created_at < ?))", nonVirtualBefore, virtualBefore).
		Order("created_at ASC").
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// Freeze marks the group frozen. It reports false when the group is unknown.
// On Postgres the update also takes the row lock that serializes concurrent
// sweeps of the same group.
func (r *repository) Freeze(ctx context.Context, id string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SurveyorGroup{}).
		Where("id = ?", id).
		Updates(map[string]any{"frozen": true, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// PendingVotes lists the non-excluded votes of a group that are not yet transacted.
func (r *repository) PendingVotes(ctx context.Context, surveyorID string) ([]models.Vote, error) {
	var rows []models.Vote
	err := r.db.WithContext(ctx).
		Where("surveyor_id = ? AND NOT excluded AND NOT transacted", surveyorID).
		Order("channel ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ApplyMix writes computed amounts and fees with one UPDATE ... FROM (VALUES ...)
// statement per chunk. It returns the number of rows updated.
func (r *repository) ApplyMix(ctx context.Context, mixed []MixedVote, at time.Time) (int64, error) {
	conn := r.db.WithContext(ctx)
	row := "(" + db.UUIDParam(conn) + ", " + db.NumericParam(conn) + ", " + db.NumericParam(conn) + ", " + db.NumericParam(conn) + ")"
	return r.eachChunk(mixed, func(chunk []MixedVote) (int64, error) {
		rows := make([]string, 0, len(chunk))
		args := make([]any, 0, 1+len(chunk)*4)
		args = append(args, at)
		for _, vote := range chunk {
			rows = append(rows, row)
			args = append(args, vote.ID.String(), vote.Tally.String(), vote.Amount.String(), vote.Fees.String())
		}
		query := "UPDATE votes SET amount = mixed.column3, fees = mixed.column4, updated_at = ? " +
			"FROM (VALUES " + strings.Join(rows, ", ") + ") AS mixed " +
			"WHERE votes.id = mixed.column1 AND votes.tally = mixed.column2 AND NOT votes.transacted"
		res := conn.Exec(query, args...)
		return res.RowsAffected, res.Error
	})
}

// MarkTransacted flags the mixed votes as transacted, chunk by chunk. Like
// ApplyMix it only touches rows still holding the mixed tally.
func (r *repository) MarkTransacted(ctx context.Context, mixed []MixedVote, at time.Time) (int64, error) {
	conn := r.db.WithContext(ctx)
	row := "(" + db.UUIDParam(conn) + ", " + db.NumericParam(conn) + ")"
	return r.eachChunk(mixed, func(chunk []MixedVote) (int64, error) {
		rows := make([]string, 0, len(chunk))
		args := make([]any, 0, 1+len(chunk)*2)
		args = append(args, at)
		for _, vote := range chunk {
			rows = append(rows, row)
			args = append(args, vote.ID.String(), vote.Tally.String())
		}
		query := "UPDATE votes SET transacted = TRUE, updated_at = ? " +
			"FROM (VALUES " + strings.Join(rows, ", ") + ") AS marked " +
			"WHERE votes.id = marked.column1 AND votes.tally = marked.column2 AND NOT votes.transacted"
		res := conn.Exec(query, args...)
		return res.RowsAffected, res.Error
	})
}

func (r *repository) eachChunk(mixed []MixedVote, fn func(chunk []MixedVote) (int64, error)) (int64, error) {
	var total int64
	for start := 0; start < len(mixed); start += mixChunkSize {
		end := min(start+mixChunkSize, len(mixed))
		affected, err := fn(mixed[start:end])
		if err != nil {
			return total, err
		}
		total += affected
	}
	return total, nil
}

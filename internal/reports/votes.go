package reports

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/riddle015/riverhacks/internal/apperr"
	"github.com/riddle015/riverhacks/internal/db"
)

func validVoteType(v string) bool {
	switch v {
	case VoteUp, VoteDown, VoteConfirm:
		return true
	}
	return false
}

// CastVote records userID's vote, replacing any earlier vote by the same user.
func (s *Store) CastVote(ctx context.Context, reportID, userID, voteType, comment string) (*Vote, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperr.Validation("user_id is required to vote")
	}
	voteType = strings.ToLower(strings.TrimSpace(voteType))
	if !validVoteType(voteType) {
		return nil, apperr.Validation("vote_type must be one of %s, %s, %s", VoteUp, VoteDown, VoteConfirm)
	}
	r, err := s.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}

	var out Vote
	err = db.Retry(ctx, s.retries, "cast_vote", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			v := Vote{
				ID:        uuid.New(),
				ReportID:  r.ID,
				UserID:    userID,
				VoteType:  voteType,
				Comment:   strings.TrimSpace(comment),
				CreatedAt: s.clock(),
			}
			if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "report_id"}, {Name: "user_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"vote_type", "comment", "created_at"}),
			}).Create(&v).Error; err != nil {
				return err
			}
			return tx.Where("report_id = ? AND user_id = ?", r.ID, userID).Take(&out).Error
		})
	})
	if err != nil {
		return nil, db.Classify("cast vote", err)
	}
	s.log.Debug("vote recorded", "report_id", r.ID, "user_id", userID, "vote_type", voteType)
	return &out, nil
}

func (s *Store) VoteSummary(ctx context.Context, reportID string) (*VoteSummary, error) {
	r, err := s.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		VoteType string
		Count    int64
	}
	err = db.Retry(ctx, s.retries, "vote_summary", func() error {
		rows = nil
		return s.db.WithContext(ctx).Model(&Vote{}).
			Select("vote_type, COUNT(*) AS count").
			Where("report_id = ?", r.ID).
			Group("vote_type").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, db.Classify("vote summary", err)
	}

	sum := &VoteSummary{ReportID: r.ID}
	for _, row := range rows {
		switch row.VoteType {
		case VoteUp:
			sum.Upvotes = row.Count
		case VoteDown:
			sum.Downvotes = row.Count
		case VoteConfirm:
			sum.Confirms = row.Count
		}
	}
	return sum, nil
}

package judgement

import "gorm.io/gorm"

// UserStats summarizes how much work a user already carries.
type UserStats struct {
	// TotalAssigned counts all judgements ever assigned to the user,
	// regardless of status.
	TotalAssigned int
	// OpenCount counts the subset still awaiting a rating.
	OpenCount int
}

// LoadUserStats computes assignment counts for the user on the caller's
// transaction handle.
func LoadUserStats(tx *gorm.DB, userID string) (UserStats, error) {
	var total int64
	if err := tx.Model(&Judgement{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return UserStats{}, err
	}

	var open int64
	if err := tx.Model(&Judgement{}).
		Where("user_id = ? AND status = ?", userID, StatusToJudge).
		Count(&open).Error; err != nil {
		return UserStats{}, err
	}

	return UserStats{TotalAssigned: int(total), OpenCount: int(open)}, nil
}

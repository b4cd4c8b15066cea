package judgement

import "gorm.io/gorm"

// NextRotationFlag decides the presentation-order flag for the next batch of
// judgements. It returns true only while strictly fewer rotated than
// unrotated judgements exist, counted across all users and statuses, so the
// two orientations stay roughly balanced over time. Ties resolve to false.
//
// The flag is computed once per sub-batch and applied to every row created in
// it, not recomputed per row.
func NextRotationFlag(tx *gorm.DB) (bool, error) {
	var rotated int64
	if err := tx.Model(&Judgement{}).
		Where("rotate = ?", true).
		Count(&rotated).Error; err != nil {
		return false, err
	}

	var unrotated int64
	if err := tx.Model(&Judgement{}).
		Where("rotate = ?", false).
		Count(&unrotated).Error; err != nil {
		return false, err
	}

	return rotated < unrotated, nil
}

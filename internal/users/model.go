package users

import "time"

// User is an annotator account. Provisioning happens out of band (admin CLI);
// this service only looks accounts up and records them.
type User struct {
	ID          string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	DisplayName string    `gorm:"column:display_name;size:320"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}

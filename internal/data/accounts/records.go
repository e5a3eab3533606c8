package accounts

import "time"

// UserRecord is the persisted bot user.
type UserRecord struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Name      string    `gorm:"size:255;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName defines the table name for bot users.
func (UserRecord) TableName() string {
	return "users"
}

// LoginTokenRecord is a single-user login link.
type LoginTokenRecord struct {
	Token     string    `gorm:"primaryKey;size:64"`
	UserID    string    `gorm:"size:64;not null;index:idx_login_tokens_user"`
	ExpiresAt time.Time `gorm:"not null;index:idx_login_tokens_expires_at"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName defines the table name for login tokens.
func (LoginTokenRecord) TableName() string {
	return "login_tokens"
}

// Models lists every record type managed by this package, for migrations.
func Models() []any {
	return []any{&UserRecord{}, &LoginTokenRecord{}}
}

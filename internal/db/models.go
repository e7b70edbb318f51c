package db

import (
	"time"
)

const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// User is the account keyed by the Telegram identity, with the profile
// attributes inlined.
//
// A user "has a profile" once FirstName, Birthdate and Gender are set.
type User struct {
	ID                uint64 `gorm:"primaryKey;autoIncrement"`
	TelegramUserID    int64  `gorm:"uniqueIndex;not null"`
	TelegramUsername  string `gorm:"size:64"`
	InstagramUsername string `gorm:"size:64;index"`
	FirstName         string `gorm:"size:128"`
	Birthdate         *time.Time
	Gender            string `gorm:"size:16;index"`
	About             string `gorm:"type:text"`
	Country           string `gorm:"size:64"`
	City              string `gorm:"size:64"`
	District          string `gorm:"size:64"`
	Latitude          *float64
	Longitude         *float64
	IsPremium         bool `gorm:"not null;default:false"`
	PremiumExpiresAt  *time.Time
	CreatedAt         time.Time `gorm:"autoCreateTime"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`
}

// HasProfile reports whether the required profile attributes are filled.
func (u *User) HasProfile() bool {
	return u != nil && u.FirstName != "" && u.Birthdate != nil && u.Gender != ""
}

// Photo belongs to exactly one user. S3Key is the opaque storage key.
type Photo struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserID    uint64    `gorm:"not null;index:idx_photo_user_active,priority:1"`
	S3Key     string    `gorm:"size:512;not null"`
	IsGeneral bool      `gorm:"not null;default:false"`
	IsActive  bool      `gorm:"not null;index:idx_photo_user_active,priority:2"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Like is a directed edge liker -> liked.
//
// Indexes:
//   - uq_like_pair(liker_id, liked_id): one row per ordered pair.
//   - idx_like_liked_created(liked_id, created_at DESC, liker_id): "who liked me"
//     lists with cursor pagination.
type Like struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	LikerID   uint64    `gorm:"not null;uniqueIndex:uq_like_pair,priority:1;index:idx_like_liked_created,priority:3"`
	LikedID   uint64    `gorm:"not null;uniqueIndex:uq_like_pair,priority:2;index:idx_like_liked_created,priority:1"`
	IsIgnored bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_like_liked_created,priority:2,sort:desc"`
}

// Match is an undirected pairing stored canonically with User1ID < User2ID.
type Match struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	User1ID   uint64    `gorm:"not null;uniqueIndex:uq_match_pair,priority:1"`
	User2ID   uint64    `gorm:"not null;uniqueIndex:uq_match_pair,priority:2;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// FeedView marks a candidate as already shown to (or dismissed by) a viewer.
type FeedView struct {
	ID       uint64    `gorm:"primaryKey;autoIncrement"`
	ViewerID uint64    `gorm:"not null;uniqueIndex:uq_feed_view_pair,priority:1"`
	ViewedID uint64    `gorm:"not null;uniqueIndex:uq_feed_view_pair,priority:2"`
	ViewedAt time.Time `gorm:"autoCreateTime"`
}

const (
	ConnectionSubscription = "subscription"
	ConnectionFollower     = "follower"
)

// InstagramConnection is a directed social-graph edge sourced from the
// Instagram connector.
type InstagramConnection struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	UserID      uint64    `gorm:"not null;uniqueIndex:uq_igconn_user_connected_type,priority:1"`
	ConnectedID uint64    `gorm:"not null;uniqueIndex:uq_igconn_user_connected_type,priority:2;index"`
	Type        string    `gorm:"size:16;not null;uniqueIndex:uq_igconn_user_connected_type,priority:3"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// BattleSession is one owner's battle for one UTC day. LeftID/RightID are
// cleared once FinalWinnerID is set.
type BattleSession struct {
	ID              uint64 `gorm:"primaryKey;autoIncrement"`
	OwnerID         uint64 `gorm:"not null;uniqueIndex:uq_battle_owner_date,priority:1"`
	BattleDate      string `gorm:"size:10;not null;uniqueIndex:uq_battle_owner_date,priority:2"`
	LeftID          *uint64
	RightID         *uint64
	CompletedRounds int `gorm:"not null;default:0"`
	FinalWinnerID   *uint64
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

type BattleResult struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	WinnerID  uint64    `gorm:"not null;index"`
	LoserID   uint64    `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

const (
	ModerationPending  = "pending"
	ModerationApproved = "approved"
	ModerationDeclined = "declined"
)

// Redaction flags applied on approve.
const (
	FlagHidePhoto = 1 << iota
	FlagHideName
	FlagHideBio
)

// ModerationCase is the persisted state of an admin review.
type ModerationCase struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	UserID    uint64 `gorm:"not null;uniqueIndex"`
	Status    string `gorm:"size:16;not null;index"`
	Flags     int    `gorm:"not null;default:0"`
	ChatID    int64
	MessageID int
	DecidedBy int64
	DecidedAt *time.Time
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Models lists every table in migration order.
func Models() []any {
	return []any{
		&User{},
		&Photo{},
		&Like{},
		&Match{},
		&FeedView{},
		&InstagramConnection{},
		&BattleSession{},
		&BattleResult{},
		&ModerationCase{},
	}
}

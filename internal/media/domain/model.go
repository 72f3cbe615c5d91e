package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Media is an uploaded file sold per view. Price is in minor units of Currency.
type Media struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	Code        string       `json:"code" gorm:"type:text;not null;uniqueIndex"`
	OwnerID     snowflake.ID `json:"owner_id" gorm:"not null;index"`
	Price       int64        `json:"price" gorm:"not null"`
	Currency    string       `json:"currency" gorm:"type:text;not null"`
	SingleView  bool         `json:"single_view" gorm:"not null;default:false"`
	MimeType    string       `json:"mime_type" gorm:"type:text;not null"`
	Size        int64        `json:"size" gorm:"not null"`
	OriginalKey string       `json:"-" gorm:"type:text;not null"`
	OriginalURL string       `json:"-" gorm:"type:text;not null"`
	BlurredKey  string       `json:"-" gorm:"type:text"`
	BlurredURL  string       `json:"blurred_url" gorm:"type:text;not null"`
	Flagged     bool         `json:"flagged" gorm:"not null;default:false"`
	ModeratedAt *time.Time   `json:"moderated_at,omitempty"`
	Version     int64        `json:"-" gorm:"not null;default:0"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null"`
}

func (Media) TableName() string { return "media" }

func (m *Media) IsImage() bool {
	return m != nil && len(m.MimeType) > 6 && m.MimeType[:6] == "image/"
}

// View grants one payer IP access to a media after a settled payment.
type View struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	MediaID      snowflake.ID `json:"media_id" gorm:"not null;uniqueIndex:ux_views_media_ip,priority:1"`
	IP           string       `json:"ip" gorm:"type:text;not null;uniqueIndex:ux_views_media_ip,priority:2"`
	Payment      bool         `json:"payment" gorm:"not null;default:false"`
	LeftFeedback bool         `json:"left_feedback" gorm:"not null;default:false"`
	LastSeen     time.Time    `json:"last_seen" gorm:"not null"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null"`
}

func (View) TableName() string { return "views" }

// Rating is the feedback a paid viewer left for the media owner.
type Rating struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID    snowflake.ID `json:"user_id" gorm:"not null;index"`
	MediaID   snowflake.ID `json:"media_id" gorm:"not null;index"`
	ViewID    snowflake.ID `json:"view_id" gorm:"not null;uniqueIndex"`
	Score     int          `json:"score" gorm:"not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (Rating) TableName() string { return "ratings" }

// MediaView is what a visitor sees for a media code.
type MediaView struct {
	Code       string      `json:"code"`
	URL        string      `json:"url"`
	MimeType   string      `json:"mime_type"`
	Price      int64       `json:"price"`
	Currency   string      `json:"currency"`
	SingleView bool        `json:"single_view"`
	TotalViews int64       `json:"total_views"`
	Viewer     ViewerState `json:"viewer"`
	Owner      OwnerInfo   `json:"owner"`
}

type ViewerState struct {
	HasPaid      bool `json:"has_paid"`
	LeftFeedback bool `json:"left_feedback"`
}

type OwnerInfo struct {
	Nickname      string  `json:"nickname"`
	AverageRating float64 `json:"average_rating"`
	Ratings       int64   `json:"ratings"`
}

// OwnerMedia is a media row in the creator dashboard.
type OwnerMedia struct {
	Media
	OriginalURL string `json:"original_url"`
	TotalViews  int64  `json:"total_views"`
	Earnings    int64  `json:"earnings"`
}

type UploadRequest struct {
	OwnerID    snowflake.ID
	Filename   string
	Body       []byte
	Price      int64
	SingleView bool
}

type FeedbackRequest struct {
	Code   string `json:"code" binding:"required,alphanum"`
	Rating int    `json:"rating" binding:"required,min=1,max=5"`
	IP     string `json:"-"`
}

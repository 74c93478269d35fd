package models

// Emoticon classifications written by the emoticon pass
const (
	EmoticonPositive = ":)"
	EmoticonNegative = ":("
)

// Tweet represents the database model for a harvested tweet.
// ID, Text, Terms and the author/reply fields are written once at ingestion;
// only the annotation fields change afterwards.
type Tweet struct {
	ID    int64  `gorm:"primaryKey;autoIncrement:false;column:id"`
	Text  string `gorm:"column:text;not null"`
	Terms string `gorm:"column:terms;not null"`

	// Author Information
	FromUser   string `gorm:"column:from_user;not null"`
	FromUserID int64  `gorm:"column:from_user_id;not null"`

	// Reply Tracking
	InReplyToStatus *int64 `gorm:"column:in_reply_to_status"`
	InReplyToUser   *int64 `gorm:"column:in_reply_to_user"`

	Retweeted       bool    `gorm:"column:retweeted;not null;default:false"`
	RetweetCount    int     `gorm:"column:retweet_count;not null;default:0"`
	CreatedAt       string  `gorm:"column:created_at;not null"`
	ISOLanguageCode *string `gorm:"column:iso_language_code"`
	Geo             *string `gorm:"column:geo"`

	// Annotation Fields
	CleanText    *string `gorm:"column:clean_text"`
	Emoticon     *string `gorm:"column:emoticon"`
	Subjectivity *int    `gorm:"column:subjectivity"`
	Polarity     *int    `gorm:"column:polarity"`
}

// TableName specifies the table name for the Tweet model
func (Tweet) TableName() string {
	return "tweets"
}

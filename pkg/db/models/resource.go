package models

// Resource is a URL referenced from tweet text. LongURL and Title are
// reserved for an unshortening step that does not exist yet.
type Resource struct {
	URL     string  `gorm:"primaryKey;column:url"`
	LongURL *string `gorm:"column:long_url"`
	Title   *string `gorm:"column:title"`
}

func (Resource) TableName() string {
	return "resources"
}

// TweetMentionsResource links a tweet to a URL found in its text
type TweetMentionsResource struct {
	TweetID  int64  `gorm:"primaryKey;autoIncrement:false;column:tweet_id"`
	Resource string `gorm:"primaryKey;column:resource"`
}

func (TweetMentionsResource) TableName() string {
	return "tweet_mentions_resource"
}

// TweetMentionsUser links a tweet to a user named in its entity metadata
type TweetMentionsUser struct {
	TweetID int64  `gorm:"primaryKey;autoIncrement:false;column:tweet_id"`
	User    string `gorm:"column:user;not null"`
	UserID  int64  `gorm:"primaryKey;autoIncrement:false;column:user_id"`
}

func (TweetMentionsUser) TableName() string {
	return "tweet_mentions_user"
}

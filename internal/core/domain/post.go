package domain

import "time"

// Post is a single social post authored by a registered user. Posts are
// ephemeral: they are scored or parked for verification immediately after a
// fetch and never persisted beyond the pending-verification set.
type Post struct {
	UserIndex    uint64    `json:"userIndex"`
	Handle       string    `json:"handle"`
	ID           string    `json:"id"`
	Content      string    `json:"content"`
	LikesCount   int       `json:"likesCount"`
	RepostsCount int       `json:"repostsCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Result is the per-user tally accumulated across all invocations of one
// epoch. It is flushed on-chain and deleted once the user's batch is fully
// drained and no posts of that user are held for verification.
type Result struct {
	UserIndex     uint64 `json:"userIndex"`
	Tweets        uint32 `json:"tweets"`
	HashtagTweets uint32 `json:"hashtagTweets"`
	CashtagTweets uint32 `json:"cashtagTweets"`
	SimpleTweets  uint32 `json:"simpleTweets"`
	Likes         uint32 `json:"likes"`
}

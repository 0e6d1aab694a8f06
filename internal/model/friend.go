package model

import "time"

// FriendEdge is the single canonical record for a pair of users. One row per
// unordered pair: LowID sorts before HighID, and RequesterID records which
// side asked. Accepted is false while the request awaits the other side.
type FriendEdge struct {
	LowID       UserID    `db:"LowID"`
	HighID      UserID    `db:"HighID"`
	RequesterID UserID    `db:"RequesterID"`
	Accepted    bool      `db:"Accepted"`
	CreatedAt   time.Time `db:"CreatedAt"`
}

// Other returns the user on the far side of the edge from id.
func (e *FriendEdge) Other(id UserID) UserID {
	if e.LowID == id {
		return e.HighID
	}
	return e.LowID
}

// NormalizePair orders two user ids into the (low, high) form edges are
// stored under.
func NormalizePair(a, b UserID) (UserID, UserID) {
	if b < a {
		return b, a
	}
	return a, b
}

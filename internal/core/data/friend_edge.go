package data

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// FriendEdge records the relationship between a pair of usernames. A row
// with Accepted == false is a pending request from Requester to Receiver;
// flipping Accepted turns the same row into a symmetric friendship. At most
// one row exists per unordered pair.
type FriendEdge struct {
	ID        uint64 `gorm:"primaryKey"`
	Requester string `gorm:"index;not null"`
	Receiver  string `gorm:"index;not null"`
	Accepted  bool   `gorm:"default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FindFriendEdge returns the edge between a and b in either direction, or
// nil if the pair has no relationship.
func FindFriendEdge(db *gorm.DB, a, b string) (*FriendEdge, error) {
	var edge FriendEdge
	err := db.Where(
		"(requester = ? AND receiver = ?) OR (requester = ? AND receiver = ?)",
		a, b, b, a,
	).First(&edge).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &edge, nil
}

// CreateFriendEdge persists a new pending request edge.
func CreateFriendEdge(db *gorm.DB, edge *FriendEdge) error {
	return db.Create(edge).Error
}

// AcceptFriendEdge promotes the pending request from requester to receiver
// into a friendship.
func AcceptFriendEdge(db *gorm.DB, requester, receiver string) error {
	return db.Model(&FriendEdge{}).
		Where("requester = ? AND receiver = ? AND accepted = ?", requester, receiver, false).
		Update("accepted", true).Error
}

// DeleteFriendEdge removes the edge between a and b regardless of direction
// or acceptance state.
func DeleteFriendEdge(db *gorm.DB, a, b string) error {
	return db.Where(
		"(requester = ? AND receiver = ?) OR (requester = ? AND receiver = ?)",
		a, b, b, a,
	).Delete(&FriendEdge{}).Error
}

// FindFriendEdgesFor returns every edge touching username, pending or accepted.
func FindFriendEdgesFor(db *gorm.DB, username string) ([]FriendEdge, error) {
	var edges []FriendEdge
	err := db.Where("requester = ? OR receiver = ?", username, username).
		Order("id").
		Find(&edges).Error
	if err != nil {
		return nil, err
	}
	return edges, nil
}

// Friends is the friend graph storage adapter handed to the friend service.
type Friends struct {
	db *gorm.DB
}

func NewFriends(db *gorm.DB) *Friends {
	return &Friends{db: db}
}

func (f *Friends) AccountExists(username string) (bool, error) {
	account, err := FindAccountByUsername(f.db, username)
	if err != nil {
		return false, err
	}
	return account != nil, nil
}

func (f *Friends) Edge(a, b string) (*FriendEdge, error) {
	return FindFriendEdge(f.db, a, b)
}

func (f *Friends) CreateRequest(from, to string) error {
	return CreateFriendEdge(f.db, &FriendEdge{Requester: from, Receiver: to})
}

func (f *Friends) AcceptRequest(from, to string) error {
	return AcceptFriendEdge(f.db, from, to)
}

func (f *Friends) DeleteEdge(a, b string) error {
	return DeleteFriendEdge(f.db, a, b)
}

func (f *Friends) EdgesFor(username string) ([]FriendEdge, error) {
	return FindFriendEdgesFor(f.db, username)
}

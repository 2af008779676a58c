package data

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrUsernameTaken is returned when an account creation loses the race for a
// username to an earlier registration.
var ErrUsernameTaken = errors.New("an account with that username already exists")

// Account contains the login information specific to each registered user.
type Account struct {
	ID uint64 `gorm:"primaryKey"`
	// Username is the unique name under which the user logs in.
	Username string `gorm:"unique;not null"`
	// Password holds the bcrypt hash of the user's password.
	Password         string `gorm:"not null"`
	RegistrationDate time.Time
	Banned           bool `gorm:"default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt
}

// FindAccountByUsername searches for an account with the specified username,
// returning the *Account instance if found or nil if there is no match.
func FindAccountByUsername(db *gorm.DB, username string) (*Account, error) {
	var account Account
	err := db.Where("username = ?", username).First(&account).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &account, nil
}

// CreateAccount persists the Account record to the database. The unique
// constraint on usernames is the final arbiter between concurrent
// registrations; its violation is reported as ErrUsernameTaken.
func CreateAccount(db *gorm.DB, account *Account) error {
	if err := db.Create(account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUsernameTaken
		}
		return err
	}
	return nil
}

// DeleteAccount soft-deletes an Account record from the database.
func DeleteAccount(db *gorm.DB, account *Account) error {
	return db.Delete(account).Error
}

// Accounts is the account storage adapter handed to the session handler.
type Accounts struct {
	db *gorm.DB
}

func NewAccounts(db *gorm.DB) *Accounts {
	return &Accounts{db: db}
}

func (a *Accounts) Find(username string) (*Account, error) {
	return FindAccountByUsername(a.db, username)
}

func (a *Accounts) Create(account *Account) error {
	return CreateAccount(a.db, account)
}

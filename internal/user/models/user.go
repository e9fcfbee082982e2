// Package models holds the user aggregate as the verification saga sees it.
// Identity and session management live elsewhere; this package carries only
// what account linking needs: the user and its platform account references.
package models

import (
	"time"

	"tunelink/internal/linkedaccount/models"
	id "tunelink/pkg/domain"
)

// AccountRef is one linked platform account owned by the user aggregate.
// Its existence, not the event log, answers "is this account linked at all".
type AccountRef struct {
	Platform   models.Platform
	AccountID  string
	ProfileURL string
}

// User is the aggregate root owning account references.
type User struct {
	ID          id.UserID
	Email       string
	DisplayName string
	Accounts    []AccountRef
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasAccount reports whether the user already holds a ref for the
// platform/account pair.
func (u *User) HasAccount(platform models.Platform, accountID string) bool {
	for _, ref := range u.Accounts {
		if ref.Platform == platform && ref.AccountID == accountID {
			return true
		}
	}
	return false
}

// FindAccountByID returns the ref matching the platform account id.
func (u *User) FindAccountByID(accountID string) (AccountRef, bool) {
	for _, ref := range u.Accounts {
		if ref.AccountID == accountID {
			return ref, true
		}
	}
	return AccountRef{}, false
}

// AddAccount appends a ref. Callers are expected to have checked HasAccount;
// adding a duplicate is refused.
func (u *User) AddAccount(ref AccountRef) bool {
	if u.HasAccount(ref.Platform, ref.AccountID) {
		return false
	}
	u.Accounts = append(u.Accounts, ref)
	return true
}

// RemoveAccountByID deletes the ref matching the account id. Returns false
// when no such ref existed.
func (u *User) RemoveAccountByID(accountID string) bool {
	for i, ref := range u.Accounts {
		if ref.AccountID == accountID {
			u.Accounts = append(u.Accounts[:i], u.Accounts[i+1:]...)
			return true
		}
	}
	return false
}

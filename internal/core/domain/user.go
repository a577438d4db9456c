package domain

import (
	"regexp"
	"strings"
	"time"
)

// AccountStatus is the persisted lifecycle flag of a user record.
type AccountStatus string

const (
	StatusActive  AccountStatus = "ACTIVE"
	StatusDeleted AccountStatus = "DELETED"
)

// AccountState is the derived position of an account in its lifecycle.
type AccountState string

const (
	StatePendingActivation AccountState = "PENDING_ACTIVATION"
	StateActive            AccountState = "ACTIVE"
	StateDeleted           AccountState = "DELETED"
)

// validTransitions defines the allowed account state machine transitions.
var validTransitions = map[AccountState][]AccountState{
	StatePendingActivation: {StateActive, StateDeleted},
	StateActive:            {StateDeleted},
}

// CanTransitionTo reports whether an account may move from s to next.
func (s AccountState) CanTransitionTo(next AccountState) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// User models an account holder.
type User struct {
	ID              string        `json:"id"`
	Email           string        `json:"email"`
	Username        string        `json:"username"`
	FirstName       string        `json:"first_name"`
	LastName        string        `json:"last_name"`
	PasswordHash    string        `json:"-"`
	Avatar          string        `json:"-"`
	IsActive        bool          `json:"-"`
	Status          AccountStatus `json:"-"`
	ActivationToken string        `json:"-"`
	CreatedAt       time.Time     `json:"-"`
	ModifiedAt      time.Time     `json:"-"`
}

// State derives the lifecycle state from the persisted flags.
func (u *User) State() AccountState {
	switch {
	case u.Status == StatusDeleted:
		return StateDeleted
	case u.IsActive:
		return StateActive
	default:
		return StatePendingActivation
	}
}

// ProfileUpdate carries the self-service editable fields. Nil means unchanged.
type ProfileUpdate struct {
	Email     *string
	Username  *string
	FirstName *string
	LastName  *string
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.Email == nil && p.Username == nil && p.FirstName == nil && p.LastName == nil
}

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// UsernameBase lower-cases the local part of email and strips every
// non-word character: "Jane.Doe+x@y.com" -> "janedoex".
func UsernameBase(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return nonWord.ReplaceAllString(strings.ToLower(local), "")
}

var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]{1,150}$`)

// ValidUsername reports whether name is an acceptable explicit username.
func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

// Package users is the in-memory user directory: registration, credential
// checks and topic preferences.
package users

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrDuplicateEmail     = errors.New("user already exists with this email")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotFound           = errors.New("user not found")
)

// ValidationError is returned for malformed registration or preference
// input. Message is safe to show to clients.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error { return &ValidationError{Message: msg} }

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	minPasswordLen = 6
	minNameLen     = 2
)

// User is a registered account. The password hash never leaves the package
// through JSON.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash []byte    `json:"-"`
	Preferences  []string  `json:"preferences"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt,omitzero"`
}

func (u *User) clone() User {
	c := *u
	c.Preferences = slices.Clone(u.Preferences)
	if c.Preferences == nil {
		c.Preferences = []string{}
	}
	return c
}

// Snapshot is a read-only copy of one user's preferences.
type Snapshot struct {
	UserID      string
	Preferences []string
}

// Directory stores users in memory. It is safe for concurrent use.
type Directory struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]string
	order   []string

	cost    int
	nowFunc func() time.Time
}

// NewDirectory creates an empty directory hashing passwords with the given
// bcrypt cost (bcrypt.DefaultCost when cost <= 0).
func NewDirectory(cost int) *Directory {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &Directory{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
		cost:    cost,
		nowFunc: time.Now,
	}
}

// Register validates the input and creates a user.
func (d *Directory) Register(email, password, name string, prefs []string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if email == "" || password == "" || name == "" {
		return User{}, invalid("Missing required fields. Required: email, password, name")
	}
	if !emailPattern.MatchString(email) {
		return User{}, invalid("Invalid email format")
	}
	if utf8.RuneCountInString(password) < minPasswordLen {
		return User{}, invalid("Password must be at least 6 characters long")
	}
	if utf8.RuneCountInString(name) < minNameLen {
		return User{}, invalid("Name must be at least 2 characters long")
	}
	prefs, err := cleanPreferences(prefs)
	if err != nil {
		return User{}, err
	}
	if d.exists(email) {
		return User{}, ErrDuplicateEmail
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return User{}, invalid("Password must be at most 72 bytes long")
	}
	if err != nil {
		return User{}, fmt.Errorf("hashing password: %w", err)
	}

	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Preferences:  prefs,
		CreatedAt:    d.nowFunc().UTC(),
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, taken := d.byEmail[email]; taken {
		return User{}, ErrDuplicateEmail
	}
	d.byID[u.ID] = u
	d.byEmail[email] = u.ID
	d.order = append(d.order, u.ID)
	return u.clone(), nil
}

func (d *Directory) exists(email string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.byEmail[email]
	return ok
}

// Authenticate checks an email/password pair.
func (d *Directory) Authenticate(email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	d.mu.RLock()
	id, ok := d.byEmail[email]
	var u User
	if ok {
		u = d.byID[id].clone()
	}
	d.mu.RUnlock()

	if !ok {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Get returns a copy of the user with the given id.
func (d *Directory) Get(id string) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u.clone(), nil
}

// Preferences returns a copy of the user's preferences.
func (d *Directory) Preferences(id string) ([]string, error) {
	u, err := d.Get(id)
	if err != nil {
		return nil, err
	}
	return u.Preferences, nil
}

// SetPreferences replaces the user's preferences and returns the stored list.
func (d *Directory) SetPreferences(id string, prefs []string) ([]string, error) {
	if prefs == nil {
		return nil, invalid("Preferences must be an array of strings")
	}
	prefs, err := cleanPreferences(prefs)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.Preferences = prefs
	u.UpdatedAt = d.nowFunc().UTC()
	return slices.Clone(prefs), nil
}

// WithPreferences snapshots every user with at least one preference, in
// registration order.
func (d *Directory) WithPreferences() []Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Snapshot, 0, len(d.order))
	for _, id := range d.order {
		u := d.byID[id]
		if len(u.Preferences) == 0 {
			continue
		}
		out = append(out, Snapshot{UserID: id, Preferences: slices.Clone(u.Preferences)})
	}
	return out
}

// Len returns the number of registered users.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}

func cleanPreferences(prefs []string) ([]string, error) {
	out := make([]string, 0, len(prefs))
	for _, p := range prefs {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, invalid("Preferences must be non-empty strings")
		}
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out, nil
}

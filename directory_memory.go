package credcore

import (
	"context"
	"errors"
	"sync"
)

// MemoryDirectory is an in-process [UserDirectory] and [PasswordHashUpdater].
// It backs the memory deployment mode and tests.
type MemoryDirectory struct {
	mu         sync.RWMutex
	byID       map[string]UserRecord
	byUsername map[string]string
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		byID:       make(map[string]UserRecord),
		byUsername: make(map[string]string),
	}
}

// Add stores u. IDs and usernames must be unique.
func (d *MemoryDirectory) Add(u UserRecord) error {
	if u.ID == "" || u.Username == "" {
		return errors.New("user id and username are required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.byID[u.ID]; ok {
		return errors.New("user id already exists")
	}
	if _, ok := d.byUsername[u.Username]; ok {
		return errors.New("username already exists")
	}
	d.byID[u.ID] = u
	d.byUsername[u.Username] = u.ID
	return nil
}

// Remove deletes the user with id. Missing users are ignored.
func (d *MemoryDirectory) Remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if u, ok := d.byID[id]; ok {
		delete(d.byUsername, u.Username)
		delete(d.byID, id)
	}
}

func (d *MemoryDirectory) FindByUsername(_ context.Context, username string) (UserRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.byUsername[username]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return d.byID[id], nil
}

func (d *MemoryDirectory) FindByID(_ context.Context, id string) (UserRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.byID[id]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (d *MemoryDirectory) UpdatePasswordHash(_ context.Context, userID, encodedHash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = encodedHash
	d.byID[userID] = u
	return nil
}

// Package directory resolves user identities and group memberships for
// confirmation constraints and privileged operations.
package directory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/aussiebroadwan/confirm/internal/confirm/domain"
)

var ErrUserNotFound = errors.New("directory: user not found")

type Directory interface {
	// UserInGroup reports whether userID is a member of group.
	UserInGroup(ctx context.Context, userID, group string) (bool, error)

	// FindUser resolves an id, mention name (with or without a leading @)
	// or display name to a user.
	FindUser(ctx context.Context, query string) (domain.User, error)
}

// Memory is an in-process directory. Group names are case-insensitive.
type Memory struct {
	mu     sync.RWMutex
	users  map[string]domain.User
	groups map[string]map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		users:  make(map[string]domain.User),
		groups: make(map[string]map[string]struct{}),
	}
}

// AddUser registers or replaces a user.
func (m *Memory) AddUser(u domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users[u.ID] = u
}

func (m *Memory) AddUserToGroup(userID, group string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := strings.ToLower(group)
	if m.groups[g] == nil {
		m.groups[g] = make(map[string]struct{})
	}
	m.groups[g][userID] = struct{}{}
}

func (m *Memory) RemoveUserFromGroup(userID, group string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.groups[strings.ToLower(group)], userID)
}

func (m *Memory) UserInGroup(ctx context.Context, userID, group string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.groups[strings.ToLower(group)][userID]
	return ok, nil
}

func (m *Memory) FindUser(ctx context.Context, query string) (domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	query = strings.TrimSpace(query)
	if u, ok := m.users[query]; ok {
		return u, nil
	}

	handle := strings.TrimPrefix(query, "@")
	for _, u := range m.users {
		if u.MentionName != "" && strings.EqualFold(u.MentionName, handle) {
			return u, nil
		}
	}
	for _, u := range m.users {
		if u.Name != "" && strings.EqualFold(u.Name, query) {
			return u, nil
		}
	}

	return domain.User{}, ErrUserNotFound
}

// InAnyGroup reports whether userID belongs to at least one of groups.
func InAnyGroup(ctx context.Context, dir Directory, userID string, groups []string) (bool, error) {
	for _, g := range groups {
		ok, err := dir.UserInGroup(ctx, userID, g)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

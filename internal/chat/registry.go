// The chat package owns the named chat groups and routes private, room, and
// group messages between sessions.
package chat

import (
	"errors"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"

	"github.com/sethcallen/harbinger/internal/client"
)

// GeneralGroup is the distinguished group that always exists. Unlike every
// other group it survives losing its last member.
const GeneralGroup = "General"

var (
	ErrNoSuchGroup   = errors.New("chat group does not exist")
	ErrNotMember     = errors.New("user is not a member of the chat group")
	ErrAlreadyMember = errors.New("user is already a member of the chat group")
)

// foldKey normalizes a group name for case-insensitive lookup. A fresh
// Caser per call: cases.Caser carries state and is not safe to share.
func foldKey(name string) string {
	return cases.Fold().String(name)
}

type group struct {
	// name preserves the casing from the group's first join.
	name    string
	members map[string]*client.Client
}

func (g *group) memberNames() []string {
	names := make([]string, 0, len(g.members))
	for name := range g.members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry tracks the active chat groups keyed by folded name.
type Registry struct {
	mu     sync.Mutex
	logger *logrus.Logger
	groups map[string]*group
}

func NewRegistry(logger *logrus.Logger) *Registry {
	r := &Registry{
		logger: logger,
		groups: make(map[string]*group),
	}
	r.groups[foldKey(GeneralGroup)] = &group{
		name:    GeneralGroup,
		members: make(map[string]*client.Client),
	}
	return r
}

// Join adds username to the named group, creating the group if it does not
// exist. It returns the group's display name and full member list.
func (r *Registry) Join(username string, c *client.Client, name string) (string, []string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := foldKey(name)
	g, ok := r.groups[key]
	if !ok {
		g = &group{name: name, members: make(map[string]*client.Client)}
		r.groups[key] = g
		r.logger.Infof("chat group %q created by %q", name, username)
	}

	if _, member := g.members[username]; member {
		return g.name, nil, ErrAlreadyMember
	}
	g.members[username] = c

	return g.name, g.memberNames(), nil
}

// Leave removes username from the named group. A group other than General
// is deleted the moment its membership reaches zero.
func (r *Registry) Leave(username string, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := foldKey(name)
	g, ok := r.groups[key]
	if !ok {
		return "", ErrNoSuchGroup
	}
	if _, member := g.members[username]; !member {
		return g.name, ErrNotMember
	}

	delete(g.members, username)
	r.deleteIfEmpty(key, g)
	return g.name, nil
}

// Recipients returns the connections of every member of the named group,
// provided username is itself a member.
func (r *Registry) Recipients(username string, name string) (string, []*client.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[foldKey(name)]
	if !ok {
		return "", nil, ErrNotMember
	}
	if _, member := g.members[username]; !member {
		return g.name, nil, ErrNotMember
	}

	recipients := make([]*client.Client, 0, len(g.members))
	for _, member := range g.members {
		recipients = append(recipients, member)
	}
	return g.name, recipients, nil
}

// ActiveGroups returns the display names of all active groups in ordinal
// string order.
func (r *Registry) ActiveGroups() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.groups))
	for _, g := range r.groups {
		names = append(names, g.name)
	}
	sort.Strings(names)
	return names
}

// RemoveAll removes username from every group they belong to, applying the
// usual delete-if-empty rule. Invoked on logout and disconnect.
func (r *Registry) RemoveAll(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, g := range r.groups {
		if _, member := g.members[username]; !member {
			continue
		}
		delete(g.members, username)
		r.deleteIfEmpty(key, g)
	}
}

func (r *Registry) deleteIfEmpty(key string, g *group) {
	if len(g.members) == 0 && g.name != GeneralGroup {
		delete(r.groups, key)
		r.logger.Infof("chat group %q deleted", g.name)
	}
}

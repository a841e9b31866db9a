// Package namecache is the process-lifetime display-name cache: who a
// context (friend or group) is called, and who a particular sender is
// called within a group. Entries are filled lazily on lookup and
// opportunistically from inbound event metadata; there is no invalidation.
package namecache

import (
	"context"
	"fmt"
	"sync"

	"github.com/rakunlabs/nezumi/internal/gateway"
)

type memberKey struct {
	context int64
	sender  int64
}

// Cache holds friend/group display names and group member cards.
type Cache struct {
	client *gateway.Client

	mu       sync.RWMutex
	contexts map[int64]string
	members  map[memberKey]string
}

func New(client *gateway.Client) *Cache {
	return &Cache{
		client:   client,
		contexts: make(map[int64]string),
		members:  make(map[memberKey]string),
	}
}

// Context returns the display name for a friend (positive context) or
// group (negative context), fetching and caching it on first use.
func (c *Cache) Context(ctx context.Context, convContext int64) (string, error) {
	if name, ok := c.getContext(convContext); ok {
		return name, nil
	}

	if convContext > 0 {
		friends, err := c.client.GetFriendList(ctx)
		if err != nil {
			return "", fmt.Errorf("namecache: load friend list: %w", err)
		}
		c.mu.Lock()
		for _, f := range friends {
			c.contexts[f.UserID] = f.Nickname
		}
		c.mu.Unlock()
	} else {
		info, err := c.client.GetGroupInfo(ctx, -convContext)
		if err != nil {
			return "", fmt.Errorf("namecache: load group info: %w", err)
		}
		c.setContext(convContext, info.GroupName)
	}

	name, _ := c.getContext(convContext)
	return name, nil
}

// Member returns the card-or-nickname of sender within the group
// identified by context (must be negative), fetching and caching it on
// first use.
func (c *Cache) Member(ctx context.Context, convContext, sender int64) (string, error) {
	key := memberKey{context: convContext, sender: sender}

	c.mu.RLock()
	name, ok := c.members[key]
	c.mu.RUnlock()
	if ok {
		return name, nil
	}

	info, err := c.client.GetGroupMemberInfo(ctx, -convContext, sender)
	if err != nil {
		return "", fmt.Errorf("namecache: load group member info: %w", err)
	}

	name = info.DisplayName()
	c.mu.Lock()
	c.members[key] = name
	c.mu.Unlock()
	return name, nil
}

// Observe opportunistically records a sender's nickname/card from an
// inbound event, without a gateway round trip. An empty nickname and card
// leaves the cache untouched.
func (c *Cache) Observe(convContext, sender int64, nickname, card string) {
	name := card
	if name == "" {
		name = nickname
	}
	if name == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if convContext < 0 {
		c.members[memberKey{context: convContext, sender: sender}] = name
	} else {
		c.contexts[sender] = name
	}
}

func (c *Cache) getContext(convContext int64) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.contexts[convContext]
	return name, ok
}

func (c *Cache) setContext(convContext int64, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contexts[convContext] = name
}

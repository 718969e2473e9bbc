package auth

import (
	"crypto/subtle"
	"slices"
	"sort"
	"strings"
)

// GrantTypePassword is the only grant the token endpoint implements.
const GrantTypePassword = "password"

// Client is a registered OAuth2 client.
type Client struct {
	ID         string
	Secret     string
	GrantTypes []string
}

// ClientStore is the static registry of OAuth2 clients.
// It is immutable after construction and safe for concurrent reads.
type ClientStore struct {
	clients map[string]Client
}

// NewClientStore copies the given clients into a new store.
// Later entries with a duplicate ID replace earlier ones.
func NewClientStore(clients []Client) *ClientStore {
	m := make(map[string]Client, len(clients))
	for _, c := range clients {
		c.GrantTypes = slices.Clone(c.GrantTypes)
		m[c.ID] = c
	}
	return &ClientStore{clients: m}
}

// Lookup returns the client with the given id when the secret matches exactly.
func (s *ClientStore) Lookup(clientID, clientSecret string) (Client, bool) {
	c, ok := s.clients[clientID]
	if !ok {
		return Client{}, false
	}
	if subtle.ConstantTimeCompare([]byte(c.Secret), []byte(clientSecret)) != 1 {
		return Client{}, false
	}
	return c, true
}

// LookupByID returns the client with the given id without checking its secret.
// Only trusted internal flows may use it.
func (s *ClientStore) LookupByID(clientID string) (Client, bool) {
	c, ok := s.clients[clientID]
	return c, ok
}

// IsGrantTypeAllowed reports whether grantType is registered for clientID.
// The client id is compared case-insensitively.
func (s *ClientStore) IsGrantTypeAllowed(clientID, grantType string) bool {
	for id, c := range s.clients {
		if !strings.EqualFold(id, clientID) {
			continue
		}
		if slices.Contains(c.GrantTypes, grantType) {
			return true
		}
	}
	return false
}

// Clients lists the registered clients ordered by id.
func (s *ClientStore) Clients() []Client {
	out := make([]Client, 0, len(s.clients))
	for _, c := range s.clients {
		c.GrantTypes = slices.Clone(c.GrantTypes)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

package chain

import (
	"fmt"
)

// Registry holds the per-chain clients, built once at startup and passed by
// reference to every component needing chain access.
type Registry struct {
	clients map[string]*Client
	order   []string
	main    *Client
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

// Register adds a client. At most one registered client may be the main chain.
func (r *Registry) Register(client *Client) error {
	name := client.Name()
	if _, exists := r.clients[name]; exists {
		return fmt.Errorf("chain %s already registered", name)
	}
	if client.IsMain() {
		if r.main != nil {
			return fmt.Errorf("main chain already registered as %s", r.main.Name())
		}
		r.main = client
	}
	r.clients[name] = client
	r.order = append(r.order, name)
	return nil
}

// Get returns the client for a chain name
func (r *Registry) Get(name string) (*Client, bool) {
	client, ok := r.clients[name]
	return client, ok
}

// Main returns the main-chain client, or nil when none was registered
func (r *Registry) Main() *Client {
	return r.main
}

// All returns clients in registration order
func (r *Registry) All() []*Client {
	clients := make([]*Client, 0, len(r.order))
	for _, name := range r.order {
		clients = append(clients, r.clients[name])
	}
	return clients
}

// Close closes every registered client
func (r *Registry) Close() {
	for _, client := range r.clients {
		client.Close()
	}
}

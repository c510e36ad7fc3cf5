package notification

import (
	"context"
	"sort"
)

// Message is what a channel delivers
type Message struct {
	Category   Category
	Recipient  string
	Subject    string
	Body       string
	CaseNumber string
}

// Contact holds the addresses known for a party
type Contact struct {
	Name  string
	Email string
	Phone string
}

// Channel delivers messages over one medium
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// CategoryFilter is implemented by channels that only carry some categories
type CategoryFilter interface {
	Supports(category Category) bool
}

// RecipientResolver is implemented by channels that pick their own address
// from a contact. ok is false when the contact cannot be reached on the channel.
type RecipientResolver interface {
	Recipient(contact Contact) (address string, ok bool)
}

// Delivery is one planned send
type Delivery struct {
	Channel   string
	Recipient string
}

// Registry holds the enabled channels. It is built once at startup and
// passed to whatever needs to send.
type Registry struct {
	channels map[string]Channel
}

// NewRegistry creates a registry from channels. A later channel with the
// same name replaces an earlier one.
func NewRegistry(channels ...Channel) *Registry {
	r := &Registry{channels: make(map[string]Channel, len(channels))}
	for _, ch := range channels {
		r.Register(ch)
	}
	return r
}

// Register adds a channel
func (r *Registry) Register(ch Channel) {
	if ch == nil {
		return
	}
	r.channels[ch.Name()] = ch
}

// Channel returns the channel registered under name
func (r *Registry) Channel(name string) (Channel, bool) {
	ch, ok := r.channels[name]
	return ch, ok
}

// Names returns the registered channel names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered channels
func (r *Registry) Len() int {
	return len(r.channels)
}

// Plan lists the deliveries for category to contact: one per channel that
// supports the category and can resolve a recipient. Channels without a
// RecipientResolver are addressed by email.
func (r *Registry) Plan(category Category, contact Contact) []Delivery {
	var out []Delivery
	for _, name := range r.Names() {
		ch := r.channels[name]
		if f, ok := ch.(CategoryFilter); ok && !f.Supports(category) {
			continue
		}
		var (
			addr string
			ok   bool
		)
		if rr, isResolver := ch.(RecipientResolver); isResolver {
			addr, ok = rr.Recipient(contact)
		} else {
			addr, ok = contact.Email, contact.Email != ""
		}
		if !ok {
			continue
		}
		out = append(out, Delivery{Channel: name, Recipient: addr})
	}
	return out
}

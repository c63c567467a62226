// Package cafe holds the domain value types which move through the
// order pipeline: beverage categories, ordered items, customer
// identities, and the tickets which track a single item instance
// from the waiting area through brewing and into the pickup tray.
package cafe

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
)

// Category is a beverage category. The set is closed: a category
// determines both the brew duration and the capacity counter which
// bounds how many items of it may brew at once.
type Category string

const (
	Tea    Category = "tea"
	Coffee Category = "coffee"
)

// ParseCategory normalizes and validates a category token.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case Tea, Coffee:
		return c, nil
	default:
		return "", fmt.Errorf("%q is not an orderable category", s)
	}
}

// Item is one line of a customer's order: a positive quantity of a
// single category. Its text form is "<quantity> <category>".
type Item struct {
	Quantity int      `json:"quantity"`
	Category Category `json:"category"`
}

func (i Item) String() string {
	return fmt.Sprintf("%d %s", i.Quantity, i.Category)
}

// Validate returns an error if the Item is malformed.
func (i Item) Validate() error {
	if i.Quantity <= 0 {
		return fmt.Errorf("item quantity must be positive (got %d)", i.Quantity)
	}
	if _, err := ParseCategory(string(i.Category)); err != nil {
		return err
	}
	return nil
}

// Normalize lower-cases the item category in place.
func (i *Item) Normalize() {
	i.Category = Category(strings.ToLower(string(i.Category)))
}

// ParseItem parses the "<quantity> <category>" text form of an Item.
func ParseItem(text string) (Item, error) {
	var fields = strings.Fields(text)
	if len(fields) != 2 {
		return Item{}, fmt.Errorf("malformed item %q (expected \"<quantity> <category>\")", text)
	}
	qty, err := strconv.Atoi(fields[0])
	if err != nil {
		return Item{}, fmt.Errorf("malformed item quantity %q: %w", fields[0], err)
	}
	category, err := ParseCategory(fields[1])
	if err != nil {
		return Item{}, err
	}
	var item = Item{Quantity: qty, Category: category}
	if err = item.Validate(); err != nil {
		return Item{}, err
	}
	return item, nil
}

// ParseOrderLine parses free-form order text of the shape
// "order 2 tea and 1 coffee" (the leading "order" is optional)
// into its component Items.
func ParseOrderLine(line string) ([]Item, error) {
	line = strings.TrimSpace(line)
	if rest, ok := strings.CutPrefix(line, "order "); ok {
		line = rest
	}
	if line == "" {
		return nil, nil
	}

	var items []Item
	for _, part := range strings.Split(line, " and ") {
		var item, err = ParseItem(part)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Customer identifies a connected customer. The ID is chosen by the
// client and must be unique among currently connected sessions.
type Customer struct {
	Name  string `json:"name"`
	ID    int    `json:"id"`
	Items []Item `json:"items"`
}

// NotifySink receives asynchronous "ready for pickup" notifications
// on behalf of a ticket's owning session. Implementations must be
// safe for concurrent use and must tolerate delivery after their
// session has closed (by dropping the notification).
type NotifySink interface {
	Notify(text string)
}

// Ticket is the pipeline's unit of work: one item instance owned by
// one customer. Its Key is unique per instance, so two identical
// items from the same customer remain distinct as they move through
// the stages. The sink reference is never mutated after creation.
type Ticket struct {
	Owner int
	Item  Item
	Key   string

	sink NotifySink
}

// ticketSeq distinguishes otherwise-identical item instances.
var ticketSeq atomic.Uint64

// KeyPrefix is the portion of a ticket Key shared by every instance
// of `item` owned by `owner`.
func KeyPrefix(owner int, item Item) string {
	return fmt.Sprintf("%d:%s#", owner, item)
}

// NewTicket builds a Ticket for one item instance of `owner`,
// delivering its eventual notification through `sink`.
func NewTicket(owner int, item Item, sink NotifySink) *Ticket {
	return &Ticket{
		Owner: owner,
		Item:  item,
		Key:   fmt.Sprintf("%s%d", KeyPrefix(owner, item), ticketSeq.Add(1)),
		sink:  sink,
	}
}

// Notify delivers `text` to the ticket's owning session.
func (t *Ticket) Notify(text string) { t.sink.Notify(text) }

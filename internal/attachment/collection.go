package attachment

import (
	"context"
	"slices"

	"github.com/tphakala/pushcore/internal/errors"
)

// Collection is an ordered set of attachments restricted to the access
// classes its policy allows. Order is delivery order.
type Collection struct {
	policy AccessClass
	items  []*Attachment
	opts   []Option
}

// NewCollection creates a collection that accepts sources allowed by policy.
// opts are applied to attachments created with AddURL.
func NewCollection(policy AccessClass, opts ...Option) *Collection {
	return &Collection{policy: policy, opts: opts}
}

// Add appends a, failing with ErrInaccessible when the policy forbids its
// access class.
func (c *Collection) Add(a *Attachment) error {
	if a == nil {
		return errors.Newf("nil attachment").
			Component(component).
			Category(errors.CategoryValidation).
			Build()
	}
	if !c.policy.Allows(a.AccessClass()) {
		return inaccessibleError(a.String(), a.AccessClass(), c.policy)
	}
	c.items = append(c.items, a)
	return nil
}

// AddURL builds an attachment from ref and appends it.
func (c *Collection) AddURL(ref string, opts ...Option) (*Attachment, error) {
	a, err := New(ref, append(slices.Clone(c.opts), opts...)...)
	if err != nil {
		return nil, err
	}
	if err := c.Add(a); err != nil {
		return nil, err
	}
	return a, nil
}

// Len returns the number of attachments.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// At returns the attachment at index i.
func (c *Collection) At(i int) *Attachment {
	return c.items[i]
}

// All returns the attachments in order.
func (c *Collection) All() []*Attachment {
	if c == nil {
		return nil
	}
	return slices.Clone(c.items)
}

// Remove deletes the attachment at index i, reporting whether it existed.
func (c *Collection) Remove(i int) bool {
	if i < 0 || i >= len(c.items) {
		return false
	}
	c.items = slices.Delete(c.items, i, i+1)
	return true
}

// First returns a collection holding only the first attachment.
func (c *Collection) First() *Collection {
	out := &Collection{policy: c.policy, opts: c.opts}
	if len(c.items) > 0 {
		out.items = []*Attachment{c.items[0]}
	}
	return out
}

// TotalSize sums the sizes of resolved attachments.
func (c *Collection) TotalSize() int64 {
	if c == nil {
		return 0
	}
	var total int64
	for _, a := range c.items {
		total += a.Size()
	}
	return total
}

// ResolveAll resolves every attachment in order and stops at the first failure.
func (c *Collection) ResolveAll(ctx context.Context) error {
	if c == nil {
		return nil
	}
	for _, a := range c.items {
		if _, err := a.Resolve(ctx); err != nil {
			return err
		}
	}
	return nil
}

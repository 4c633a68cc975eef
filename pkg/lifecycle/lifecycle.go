// Package lifecycle opens and closes groups of resources in order.
package lifecycle

import (
	"io"

	"go.uber.org/multierr"
)

// Resource is something that can be opened and closed.
type Resource interface {
	Open() error
	io.Closer
}

// Opener opens resources one after another and stops at the first failure.
// Done then closes, newest first, whatever was opened before the failure so
// that a half-started process releases its listeners.
type Opener struct {
	opened []io.Closer
	err    error
}

// Open opens res unless an earlier Open failed.
func (o *Opener) Open(res Resource) {
	if o.err != nil {
		return
	}
	if o.err = res.Open(); o.err == nil {
		o.opened = append(o.opened, res)
	}
}

// Done returns nil if every Open succeeded. Otherwise it closes the opened
// resources and returns the open error combined with any close errors.
func (o *Opener) Done() error {
	if o.err == nil {
		return nil
	}
	err := o.err
	for len(o.opened) > 0 {
		last := o.opened[len(o.opened)-1]
		o.opened = o.opened[:len(o.opened)-1]
		err = multierr.Append(err, last.Close())
	}
	return err
}

// Closer closes resources and keeps every error.
type Closer struct {
	err error
}

// Close closes cl and records its error.
func (c *Closer) Close(cl io.Closer) {
	multierr.AppendInto(&c.err, cl.Close())
}

// Done returns the combined errors of every Close.
func (c *Closer) Done() error { return c.err }

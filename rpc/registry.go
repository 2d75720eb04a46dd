// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package rpc

import (
	"sync"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
)

// entry is a registry slot. Parent and children are held as guids,
// never as pointers, so the tree can only change through the
// registry.
type entry struct {
	channel  *Channel
	parent   string
	children set.Strings
}

// registry maps guids to live remote objects. Every object other than
// the root has a parent that is also in the registry.
type registry struct {
	mu      sync.RWMutex
	rootID  string
	objects map[string]*entry
}

func newRegistry(root *Channel) *registry {
	return &registry{
		rootID: root.guid,
		objects: map[string]*entry{
			root.guid: {channel: root, children: set.NewStrings()},
		},
	}
}

func (r *registry) get(guid string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.objects[guid]
	if !ok {
		return nil, false
	}
	return e.channel, true
}

// parent returns the parent of the object with the given guid.
func (r *registry) parent(guid string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.objects[guid]
	if !ok || guid == r.rootID {
		return nil, false
	}
	return r.objects[e.parent].channel, true
}

// children returns the children of the object, ordered by guid.
func (r *registry) children(guid string) []*Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.objects[guid]
	if !ok {
		return nil
	}
	var result []*Channel
	for _, child := range e.children.SortedValues() {
		result = append(result, r.objects[child].channel)
	}
	return result
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

// create registers ch under parent.
func (r *registry) create(parent string, ch *Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.objects[ch.guid]; ok {
		return errors.AlreadyExistsf("object %q", ch.guid)
	}
	p, ok := r.objects[parent]
	if !ok {
		return errors.NotFoundf("parent %q of %q", parent, ch.guid)
	}
	r.objects[ch.guid] = &entry{
		channel:  ch,
		parent:   parent,
		children: set.NewStrings(),
	}
	p.children.Add(ch.guid)
	return nil
}

// dispose removes the object and its whole subtree. The returned
// channels are ordered so that every child precedes its parent.
func (r *registry) dispose(guid string) ([]*Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if guid == r.rootID {
		return nil, errors.NotValidf("disposing the root object")
	}
	e, ok := r.objects[guid]
	if !ok {
		return nil, errors.NotFoundf("object %q", guid)
	}
	r.objects[e.parent].children.Remove(guid)
	return r.removeSubtree(guid, nil), nil
}

// disposeAll removes every object including the root.
func (r *registry) disposeAll() []*Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.objects[r.rootID]; !ok {
		return nil
	}
	return r.removeSubtree(r.rootID, nil)
}

func (r *registry) removeSubtree(guid string, removed []*Channel) []*Channel {
	e := r.objects[guid]
	for _, child := range e.children.SortedValues() {
		removed = r.removeSubtree(child, removed)
	}
	delete(r.objects, guid)
	return append(removed, e.channel)
}

// adopt moves the object under a new parent, keeping its guid,
// identity and children.
func (r *registry) adopt(guid, newParent string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if guid == r.rootID {
		return errors.NotValidf("adopting the root object")
	}
	e, ok := r.objects[guid]
	if !ok {
		return errors.NotFoundf("object %q", guid)
	}
	p, ok := r.objects[newParent]
	if !ok {
		return errors.NotFoundf("new parent %q of %q", newParent, guid)
	}
	for ancestor := newParent; ancestor != r.rootID; ancestor = r.objects[ancestor].parent {
		if ancestor == guid {
			return errors.NotValidf("adopting %q into its own subtree", guid)
		}
	}
	r.objects[e.parent].children.Remove(guid)
	p.children.Add(guid)
	e.parent = newParent
	return nil
}

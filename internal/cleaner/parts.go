// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package cleaner

import "slices"

// Parts is the ordered content of an Office container: part name -> raw bytes.
// Insertion order is kept so that a repacked archive lists its entries in
// the same order as the original.
type Parts struct {
	names []string
	data  map[string][]byte
}

// NewParts creates an empty Parts
func NewParts() *Parts {
	return &Parts{data: make(map[string][]byte)}
}

// Set stores data under name, appending name if it is new
func (p *Parts) Set(name string, data []byte) {
	if _, ok := p.data[name]; !ok {
		p.names = append(p.names, name)
	}
	p.data[name] = data
}

// Get returns the bytes stored under name
func (p *Parts) Get(name string) ([]byte, bool) {
	data, ok := p.data[name]
	return data, ok
}

// Has reports whether name is present
func (p *Parts) Has(name string) bool {
	_, ok := p.data[name]
	return ok
}

// Delete removes name, keeping the order of the remaining parts
func (p *Parts) Delete(name string) {
	if _, ok := p.data[name]; !ok {
		return
	}
	delete(p.data, name)
	p.names = slices.DeleteFunc(p.names, func(n string) bool { return n == name })
}

// Names returns part names in order
func (p *Parts) Names() []string {
	return slices.Clone(p.names)
}

// Len returns the number of parts
func (p *Parts) Len() int {
	return len(p.names)
}

// Clone returns a shallow copy; part bytes are shared, not copied
func (p *Parts) Clone() *Parts {
	out := &Parts{
		names: slices.Clone(p.names),
		data:  make(map[string][]byte, len(p.data)),
	}
	for k, v := range p.data {
		out.data[k] = v
	}
	return out
}

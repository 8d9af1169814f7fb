// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package security

// Wipe zeroes buf in place. It is used on buffers that held a document
// before redaction once nothing refers to them any more.
//
// Limitations: the garbage collector may already have copied the memory, and
// any string converted from buf is an immutable copy that Wipe cannot reach.
// This shortens the window of exposure and nothing more.
func Wipe(buf []byte) {
	clear(buf)
}

// Buffer holds the raw bytes of a sensitive document until Release
type Buffer struct {
	data []byte
}

// NewBuffer takes ownership of data. The caller must not keep using data
// after Release.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Bytes returns the held bytes, or nil after Release
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Release wipes and drops the held bytes. Calling it again is a no-op.
func (b *Buffer) Release() {
	if b.data == nil {
		return
	}
	Wipe(b.data)
	b.data = nil
}

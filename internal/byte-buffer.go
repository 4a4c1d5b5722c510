// elPrep: a high-performance tool for analyzing SAM/BAM files.
// Copyright (c) 2017-2020 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elprep/blob/master/LICENSE.txt>.

package internal

import (
	"bytes"
	"sync"
)

var bufPool = sync.Pool{New: func() interface{} {
	return new(bytes.Buffer)
}}

/*
ReserveBuffer uses a sync.Pool to either reuse or allocate a
*bytes.Buffer, reset to empty. Used by pfor workers as their per-chunk
output accumulator.

Use ReleaseBuffer to return buffers to the internal pool.
*/
func ReserveBuffer() *bytes.Buffer {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

/*
ReleaseBuffer returns the given buffer to the internal sync.Pool from
which ReserveBuffer can fetch it again.
*/
func ReleaseBuffer(buf *bytes.Buffer) {
	bufPool.Put(buf)
}

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
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
)

// FileOpen opens filename for reading, returning an error rather than
// panicking so that callers at a package boundary can turn it into a
// diagnostic of their own.
func FileOpen(filename string) (*os.File, error) {
	return os.Open(filename)
}

// FileCreate creates filename for writing, creating parent directories
// as needed.
func FileCreate(filename string) (*os.File, error) {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return os.Create(filename)
}

// Close closes c, discarding the error the way defer-only cleanup code
// in short-lived CLI commands typically does.
func Close(c io.Closer) {
	_ = c.Close()
}

// HandleCompressed transparently unwraps a gzip/bgzf stream. bgzf files
// are valid, block-structured gzip streams, so the stdlib gzip reader
// reads them correctly; it just cannot exploit the block index for
// random access, which none of this package's sequential readers need.
func HandleCompressed(r io.Reader) (io.Reader, error) {
	buf := bufio.NewReader(r)
	magic, err := buf.Peek(2)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(buf)
		if err != nil {
			return nil, err
		}
		return gz, nil
	}
	return buf, nil
}

func Directory(file string) (files []string, err error) {
	info, err := os.Stat(file)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{filepath.Base(file)}, nil
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer func() {
		nerr := f.Close()
		if err == nil {
			err = nerr
		}
	}()
	return f.Readdirnames(0)
}

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

package container

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/raj347/nanocall/events"
	"github.com/raj347/nanocall/internal"
	"github.com/raj347/nanocall/pmodel"
)

// ReadHandle exposes one read's identity and its lazily-loaded events.
type ReadHandle interface {
	ReadID() string
	BaseFileName() string
	HaveEDEvents() bool
	StrandBounds() [4]int // start0, end0, start1, end1
	LoadEvents() error
	PersistedParams() map[int]map[string]pmodel.Params
	DropEvents()
	Events(strand int) events.Sequence
}

// File groups the reads found in one container path.
type File interface {
	Valid() bool
	Reads() ([]ReadHandle, error)
	Close() error
}

// ParseError reports a malformed container record.
type ParseError struct {
	Filename string
	Line     int
	Text     string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s: %q", e.Filename, e.Line, e.Reason, e.Text)
}

type record struct {
	sourceFile string
	id         string
	baseFile   string
	rawEvents  [2][]byte
	persisted  map[int]map[string]pmodel.Params
}

type readHandle struct {
	rec    *record
	loaded bool
	evs    [2]events.Sequence
}

func (h *readHandle) ReadID() string       { return h.rec.id }
func (h *readHandle) BaseFileName() string { return h.rec.baseFile }
func (h *readHandle) HaveEDEvents() bool {
	return len(h.rec.rawEvents[0]) > 0 || len(h.rec.rawEvents[1]) > 0
}

func (h *readHandle) StrandBounds() [4]int {
	n0 := bytes.Count(h.rec.rawEvents[0], []byte("\n"))
	n1 := bytes.Count(h.rec.rawEvents[1], []byte("\n"))
	return [4]int{0, n0, 0, n1}
}

func (h *readHandle) PersistedParams() map[int]map[string]pmodel.Params {
	return h.rec.persisted
}

// LoadEvents parses this read's raw event lines into events.Sequence
// for both strands. Safe to call again after DropEvents.
func (h *readHandle) LoadEvents() error {
	if h.loaded {
		return nil
	}
	for strand := 0; strand < 2; strand++ {
		evs, err := parseEvents(h.rec.sourceFile, h.rec.rawEvents[strand])
		if err != nil {
			return err
		}
		h.evs[strand] = events.New(evs)
	}
	h.loaded = true
	return nil
}

// DropEvents releases the loaded event sequences, keeping only the raw
// bytes they can be reloaded from.
func (h *readHandle) DropEvents() {
	h.evs[0] = events.Sequence{}
	h.evs[1] = events.Sequence{}
	h.loaded = false
}

func (h *readHandle) Events(strand int) events.Sequence {
	return h.evs[strand]
}

func parseEvents(filename string, raw []byte) ([]events.Event, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var evs []events.Event
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		fields := bytes.Fields(line)
		if len(fields) != 4 {
			return nil, &ParseError{Filename: filename, Line: lineNo, Text: string(line), Reason: "expected 4 fields (mean stdv start length)"}
		}
		mean, err1 := strconv.ParseFloat(string(fields[0]), 64)
		stdv, err2 := strconv.ParseFloat(string(fields[1]), 64)
		start, err3 := strconv.ParseFloat(string(fields[2]), 64)
		length, err4 := strconv.ParseFloat(string(fields[3]), 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			return nil, &ParseError{Filename: filename, Line: lineNo, Text: string(line), Reason: "non-numeric event field"}
		}
		evs = append(evs, events.Event{Mean: mean, Stdv: stdv, Start: start, Length: length})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return evs, nil
}

// TextFile is a concrete File/ReadHandle-producing implementation of
// the line-oriented format documented in doc.go.
type TextFile struct {
	path  string
	valid bool
}

// Open resolves path to a readable file or a directory of files.
// Validity is checked eagerly; actual parsing happens in Reads.
func Open(path string) (*TextFile, error) {
	if _, err := os.Stat(path); err != nil {
		return &TextFile{path: path, valid: false}, err
	}
	return &TextFile{path: path, valid: true}, nil
}

func (f *TextFile) Valid() bool { return f.valid }

func (f *TextFile) Close() error { return nil }

// Reads discovers the underlying files (a single file, or every
// regular file inside a directory, mirroring internal.Directory's
// contract) and parses every record from each into a ReadHandle.
func (f *TextFile) Reads() ([]ReadHandle, error) {
	names, err := internal.Directory(f.path)
	if err != nil {
		return nil, err
	}
	base := f.path
	info, err := os.Stat(f.path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		base = filepath.Dir(f.path)
	}

	var out []ReadHandle
	for _, name := range names {
		full := filepath.Join(base, name)
		recs, err := parseFile(full)
		if err != nil {
			return nil, err
		}
		for _, r := range recs {
			out = append(out, &readHandle{rec: r})
		}
	}
	return out, nil
}

func parseFile(filename string) ([]*record, error) {
	fh, err := internal.FileOpen(filename)
	if err != nil {
		return nil, err
	}
	defer internal.Close(fh)

	stream, err := internal.HandleCompressed(fh)
	if err != nil {
		return nil, err
	}

	var out []*record
	var cur *record
	var curStrand = -1
	var buf bytes.Buffer

	flushStrand := func() {
		if cur != nil && curStrand >= 0 {
			cur.rawEvents[curStrand] = append([]byte(nil), buf.Bytes()...)
		}
		buf.Reset()
	}

	scanner := bufio.NewScanner(stream)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		trimmed := bytes.TrimSpace(line)
		switch {
		case len(trimmed) == 0:
			continue
		case trimmed[0] == '>':
			flushStrand()
			curStrand = -1
			fields := bytes.SplitN(trimmed[1:], []byte("\t"), 2)
			if len(fields) != 2 {
				return nil, &ParseError{Filename: filename, Line: lineNo, Text: string(trimmed), Reason: "expected \">read_id\\tbase_file_name\""}
			}
			cur = &record{sourceFile: filename, id: string(fields[0]), baseFile: string(fields[1]), persisted: map[int]map[string]pmodel.Params{}}
			out = append(out, cur)
		case bytes.HasPrefix(trimmed, []byte("#params")):
			if cur == nil {
				return nil, &ParseError{Filename: filename, Line: lineNo, Text: string(trimmed), Reason: "params line before any read header"}
			}
			if err := parseParamsLine(cur, trimmed); err != nil {
				return nil, &ParseError{Filename: filename, Line: lineNo, Text: string(trimmed), Reason: err.Error()}
			}
		case trimmed[0] == '#':
			continue
		default:
			fields := bytes.Fields(trimmed)
			if len(fields) < 1 {
				continue
			}
			strand, err := strconv.Atoi(string(fields[0]))
			if err != nil || (strand != 0 && strand != 1) || cur == nil {
				return nil, &ParseError{Filename: filename, Line: lineNo, Text: string(trimmed), Reason: "expected event line \"strand mean stdv start length\""}
			}
			if strand != curStrand {
				flushStrand()
				curStrand = strand
			}
			buf.Write(bytes.Join(fields[1:], []byte("\t")))
			buf.WriteByte('\n')
		}
	}
	flushStrand()
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseParamsLine(rec *record, line []byte) error {
	fields := bytes.Fields(line)
	if len(fields) != 9 {
		return fmt.Errorf("expected 9 fields in params line, got %d", len(fields))
	}
	strand, err := strconv.Atoi(string(fields[1]))
	if err != nil {
		return err
	}
	model := string(fields[2])
	vals := make([]float64, 6)
	for i := 0; i < 6; i++ {
		v, err := strconv.ParseFloat(string(fields[3+i]), 64)
		if err != nil {
			return err
		}
		vals[i] = v
	}
	if rec.persisted[strand] == nil {
		rec.persisted[strand] = map[string]pmodel.Params{}
	}
	rec.persisted[strand][model] = pmodel.Params{
		Shift: vals[0], Scale: vals[1], Drift: vals[2],
		Var: vals[3], ScaleSD: vals[4], VarSD: vals[5],
	}
	return nil
}

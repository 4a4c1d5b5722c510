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

/*
Package container reads per-read raw event streams from an on-disk
container. Real signal containers vary by vendor and are outside this
package's scope; TextFile implements a small line-oriented text format
so the rest of the pipeline is exercisable end to end without a vendor
library.

Format: one read per record. A record begins with a header line

	>read_id	base_file_name

followed by zero or more data lines

	strand	mean	stdv	start	length

where strand is 0 (template) or 1 (complement), in the order the events
occurred. A record may end with an optional persisted-parameter block,
one line per previously computed scaling result:

	#params	strand	model	shift	scale	drift	var	scale_sd	var_sd

where strand is 0, 1, or 2 (2 meaning "both strands scaled together").
Blank lines and lines starting with '#' outside of a params block are
ignored. Records are separated by their next '>' header line or by end
of file.
*/
package container

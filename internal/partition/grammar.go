package partition

import (
	"fmt"
	"strings"
)

const (
	namePrefix   = "partition"
	partedMarker = "-- parted "
	ddMarker     = " -- dd "
	msdosMarker  = "msdos"
)

// Archive suffixes accepted after a partition specification, longest first.
var archiveSuffixes = []string{".tar.gz", ".tar"}

// longName is a filename in long format.
type longName struct {
	index    int
	script   string
	fsType   string
	diskSize string
}

// shortName is a filename in short format.
type shortName struct {
	index  int
	msdos  bool
	end    string
	fsType string
}

// detectFormat decides the format of a partition set from its first file.
// Long format wins when both could apply.
func detectFormat(base string) Format {
	if _, ok, _ := matchLong(base); ok {
		return FormatLong
	}
	if _, ok := matchShort(base); ok {
		return FormatShort
	}
	return FormatUnknown
}

// matchLong reports whether base has the shape of a long format name. A
// name with that shape whose script does not end in "<fstype> <start> <end>"
// still matches, but err is set.
func matchLong(base string) (n longName, matched bool, err error) {
	at := strings.LastIndex(base, partedMarker)
	if at < 0 {
		return n, false, nil
	}
	index, _, ok := findIndex(base[:at])
	if !ok {
		return n, false, nil
	}

	n.index = index
	n.script, _ = trimArchiveSuffix(base[at+len(partedMarker):])
	n.diskSize = findDiskSize(base)

	fsType, ok := scriptFSType(n.script)
	if !ok {
		return n, true, fmt.Errorf("no filesystem type in parted script %q", n.script)
	}
	n.fsType = fsType
	return n, true, nil
}

// scriptFSType returns the token before the start and end offsets of the
// last mkpart statement in a parted script. At least one space must come
// before the filesystem type.
func scriptFSType(script string) (string, bool) {
	words := strings.Split(script, " ")
	if len(words) < 4 {
		return "", false
	}
	for _, w := range words[len(words)-3:] {
		if w == "" {
			return "", false
		}
	}
	return words[len(words)-3], true
}

// findDiskSize returns the token following the last " -- dd " that has one.
// The token ends at a space or a '$'.
func findDiskSize(base string) string {
	for end := len(base); end > 0; {
		at := strings.LastIndex(base[:end], ddMarker)
		if at < 0 {
			return ""
		}
		rest := base[at+len(ddMarker):]
		if i := strings.IndexAny(rest, " $"); i >= 0 {
			rest = rest[:i]
		}
		if rest != "" {
			return rest
		}
		end = at + len(ddMarker) - 1
	}
	return ""
}

// findIndex finds "partition" followed by one or two digits in s. It returns
// the parsed number and the offset just past the digits.
func findIndex(s string) (index, next int, ok bool) {
	for off := 0; off < len(s); {
		at := strings.Index(s[off:], namePrefix)
		if at < 0 {
			break
		}
		p := off + at + len(namePrefix)
		if d := digitsAt(s, p, 2); d > 0 {
			return atoi(s[p : p+d]), p + d, true
		}
		off = p
	}
	return 0, 0, false
}

// matchShort parses base as partition<NN><sep>[msdos<sep>]<end><sep><fstype>
// with an optional archive suffix.
func matchShort(base string) (shortName, bool) {
	for off := 0; off < len(base); {
		at := strings.Index(base[off:], namePrefix)
		if at < 0 {
			break
		}
		p := off + at + len(namePrefix)
		if n, ok := matchShortAt(base[p:]); ok {
			return n, true
		}
		off = p
	}
	return shortName{}, false
}

// matchShortAt parses the text following "partition". The index is one or
// two digits and must be followed by a separator.
func matchShortAt(s string) (shortName, bool) {
	for d := digitsAt(s, 0, 2); d > 0; d-- {
		if d < len(s) && isSeparator(s[d]) {
			if n, ok := matchShortFields(splitSeparators(s[d+1:])); ok {
				n.index = atoi(s[:d])
				return n, true
			}
		}
	}
	return shortName{}, false
}

func matchShortFields(fields []string) (shortName, bool) {
	var n shortName
	switch {
	case len(fields) == 3 && fields[0] == msdosMarker:
		n.msdos = true
		fields = fields[1:]
	case len(fields) != 2:
		return n, false
	}

	n.end = fields[0]
	if n.end == "" {
		return n, false
	}

	fsType, suffix := fields[1], ""
	if i := strings.IndexByte(fsType, '.'); i >= 0 {
		fsType, suffix = fsType[:i], fsType[i:]
	}
	if fsType == "" || (suffix != "" && !isArchiveSuffix(suffix)) {
		return n, false
	}
	n.fsType = fsType
	return n, true
}

func trimArchiveSuffix(s string) (string, bool) {
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(s, suffix) {
			return strings.TrimSuffix(s, suffix), true
		}
	}
	return s, false
}

func isArchiveSuffix(s string) bool {
	for _, suffix := range archiveSuffixes {
		if s == suffix {
			return true
		}
	}
	return false
}

// splitSeparators splits s at every '_' or ' ', keeping empty fields.
func splitSeparators(s string) []string {
	var fields []string
	start := 0
	for i := 0; i < len(s); i++ {
		if isSeparator(s[i]) {
			fields = append(fields, s[start:i])
			start = i + 1
		}
	}
	return append(fields, s[start:])
}

func isSeparator(c byte) bool {
	return c == '_' || c == ' '
}

// digitsAt counts the digits at s[p:], up to max.
func digitsAt(s string, p, max int) int {
	n := 0
	for p+n < len(s) && n < max && s[p+n] >= '0' && s[p+n] <= '9' {
		n++
	}
	return n
}

func atoi(digits string) int {
	n := 0
	for _, c := range digits {
		n = n*10 + int(c-'0')
	}
	return n
}

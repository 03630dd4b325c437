package configobj

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const indentUnit = "    "

// ParseError reports a malformed line.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Document is a parsed config file. Scalars of the root section are written
// before the first section header.
type Document struct {
	root *Section

	// FinalComment holds comment lines after the last entry.
	FinalComment []string
}

// New returns an empty document.
func New() *Document {
	return &Document{root: newSection("", nil)}
}

// Root returns the top-level section.
func (d *Document) Root() *Section { return d.root }

// Section returns the top-level section called name or nil.
func (d *Document) Section(name string) *Section { return d.root.Section(name) }

// Lookup resolves a path of nested section names from the root.
func (d *Document) Lookup(path ...string) *Section { return d.root.Lookup(path...) }

// Sections returns the top-level sections in file order.
func (d *Document) Sections() []*Section { return d.root.Sections() }

// AddSection appends a new top-level section.
func (d *Document) AddSection(name string) (*Section, error) { return d.root.AddSection(name) }

// EnsureSection returns the top-level section called name, creating it if needed.
func (d *Document) EnsureSection(name string) *Section { return d.root.EnsureSection(name) }

// DeleteSection removes a top-level section.
func (d *Document) DeleteSection(name string) bool { return d.root.DeleteSection(name) }

// SectionsOfKind returns the top-level sections of the given kind.
func (d *Document) SectionsOfKind(kind string) []*Section { return d.root.SectionsOfKind(kind) }

// SetComments sets the comment lines written before a top-level entry.
func (d *Document) SetComments(name string, lines ...string) { d.root.SetComments(name, lines...) }

// Comments returns the comment lines of a top-level entry.
func (d *Document) Comments(name string) []string { return d.root.Comments(name) }

var (
	headerRe = regexp.MustCompile(`^(\[+)\s*([^\[\]]+?)\s*(\]+)\s*(#.*)?$`)
	keyRe    = regexp.MustCompile(`^([^=\[\]#]+?)\s*=\s*(.*)$`)

	tdquotedRe = regexp.MustCompile(`^"""(.*?)"""\s*(#.*)?$`)
	tsquotedRe = regexp.MustCompile(`^'''(.*?)'''\s*(#.*)?$`)
	dquotedRe  = regexp.MustCompile(`^"([^"]*)"\s*(#.*)?$`)
	squotedRe  = regexp.MustCompile(`^'([^']*)'\s*(#.*)?$`)
	plainRe    = regexp.MustCompile(`^([^#]*?)\s*(#.*)?$`)
)

// Parse reads a document from r.
func Parse(r io.Reader) (*Document, error) {
	doc := New()
	cur := doc.root
	var pending []string

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())

		switch {
		case line == "":
			pending = append(pending, "")
			continue
		case strings.HasPrefix(line, "#"):
			pending = append(pending, line)
			continue
		}

		if m := headerRe.FindStringSubmatch(line); m != nil {
			depth := len(m[1])
			if depth != len(m[3]) {
				return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("unbalanced brackets in section header %q", line)}
			}
			if depth > cur.depth+1 {
				return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("section %q is nested too deeply", m[2])}
			}
			parent := cur
			for parent.depth >= depth {
				parent = parent.parent
			}
			sub, err := parent.AddSection(m[2])
			if err != nil {
				return nil, &ParseError{Line: lineNo, Msg: err.Error()}
			}
			if len(pending) > 0 {
				parent.comments[m[2]] = pending
				pending = nil
			}
			cur = sub
			continue
		}

		if m := keyRe.FindStringSubmatch(line); m != nil {
			key := m[1]
			if cur.Has(key) {
				return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("duplicate key %q in section %q", key, cur.name)}
			}
			value, comment := splitValue(m[2])
			cur.Set(key, value)
			if comment != "" {
				cur.inline[key] = comment
			}
			if len(pending) > 0 {
				cur.comments[key] = pending
				pending = nil
			}
			continue
		}

		return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("invalid line %q", line)}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	doc.FinalComment = pending
	return doc, nil
}

func splitValue(raw string) (value, comment string) {
	for _, re := range []*regexp.Regexp{tdquotedRe, tsquotedRe, dquotedRe, squotedRe, plainRe} {
		if m := re.FindStringSubmatch(raw); m != nil {
			return m[1], m[2]
		}
	}
	return raw, ""
}

// ParseBytes parses a document held in memory.
func ParseBytes(b []byte) (*Document, error) {
	return Parse(bytes.NewReader(b))
}

// ReadFile parses the file at path. A missing file yields an empty document.
func ReadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return doc, nil
}

// Bytes serializes the document. The output only depends on the content,
// so equal documents produce equal bytes.
func (d *Document) Bytes() []byte {
	var buf bytes.Buffer
	writeSection(&buf, d.root)
	for _, c := range d.FinalComment {
		writeComment(&buf, "", c)
	}
	return buf.Bytes()
}

// WriteTo implements io.WriterTo.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(d.Bytes())
	return int64(n), err
}

// WriteFile writes the document to path through a temporary file in the
// same directory, so readers never observe a partial file.
func (d *Document) WriteFile(path string, perm os.FileMode) error {
	if err := d.Check(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(d.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", tmpName, err)
	}
	return nil
}

// Reload serializes the document and parses it again in place. Values set
// programmatically end up exactly as a later read of the file would see them.
func (d *Document) Reload() error {
	if err := d.Check(); err != nil {
		return err
	}
	fresh, err := ParseBytes(d.Bytes())
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}
	d.root = fresh.root
	d.FinalComment = fresh.FinalComment
	return nil
}

// Reset drops all content.
func (d *Document) Reset() {
	d.root = newSection("", nil)
	d.FinalComment = nil
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	return &Document{
		root:         d.root.clone(nil),
		FinalComment: append([]string(nil), d.FinalComment...),
	}
}

// Empty reports whether the document has neither scalars nor sections.
func (d *Document) Empty() bool {
	return len(d.root.keys) == 0 && len(d.root.sections) == 0
}

func writeSection(buf *bytes.Buffer, s *Section) {
	indent := strings.Repeat(indentUnit, s.depth)
	for _, key := range s.keys {
		for _, c := range s.comments[key] {
			writeComment(buf, indent, c)
		}
		buf.WriteString(indent)
		buf.WriteString(key)
		buf.WriteString(" =")
		if v, _ := quoteValue(s.values[key]); v != "" {
			buf.WriteByte(' ')
			buf.WriteString(v)
		}
		if c := s.inline[key]; c != "" {
			buf.WriteByte(' ')
			buf.WriteString(commentText(c))
		}
		buf.WriteByte('\n')
	}
	for _, sub := range s.sections {
		for _, c := range s.comments[sub.name] {
			writeComment(buf, indent, c)
		}
		buf.WriteString(indent)
		buf.WriteString(strings.Repeat("[", sub.depth))
		buf.WriteString(sub.name)
		buf.WriteString(strings.Repeat("]", sub.depth))
		buf.WriteByte('\n')
		writeSection(buf, sub)
	}
}

func writeComment(buf *bytes.Buffer, indent, c string) {
	c = strings.TrimSpace(c)
	if c != "" {
		buf.WriteString(indent)
		buf.WriteString(commentText(c))
	}
	buf.WriteByte('\n')
}

func commentText(c string) string {
	c = strings.TrimSpace(c)
	if strings.HasPrefix(c, "#") {
		return c
	}
	return "# " + c
}

// quoteValue returns v as written to the file. ok is false if no quoting
// reads back as v.
func quoteValue(v string) (quoted string, ok bool) {
	if v == "" {
		return "", true
	}
	v = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(v)
	needsQuotes := strings.ContainsRune(v, '#') ||
		strings.TrimSpace(v) != v ||
		strings.HasPrefix(v, `"`) || strings.HasPrefix(v, "'")
	switch {
	case !needsQuotes:
		return v, true
	case !strings.ContainsRune(v, '"'):
		return `"` + v + `"`, true
	case !strings.ContainsRune(v, '\''):
		return "'" + v + "'", true
	case !strings.Contains(v, `"""`) && !strings.HasSuffix(v, `"`):
		return `"""` + v + `"""`, true
	case !strings.Contains(v, "'''") && !strings.HasSuffix(v, "'"):
		return "'''" + v + "'''", true
	}
	return "", false
}

// Check returns an error for the first value that can't be written so
// that it parses back unchanged.
func (d *Document) Check() error {
	return checkSection(d.root)
}

func checkSection(s *Section) error {
	for _, key := range s.keys {
		if _, ok := quoteValue(s.values[key]); !ok {
			name := s.name
			if name == "" {
				name = "<root>"
			}
			return fmt.Errorf("value of '%s' in section '%s' can't be represented: %q", key, name, s.values[key])
		}
	}
	for _, sub := range s.sections {
		if err := checkSection(sub); err != nil {
			return err
		}
	}
	return nil
}

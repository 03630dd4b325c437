package configobj

import (
	"fmt"
	"strings"
)

// Section is a named block of ordered scalars and ordered sub-sections.
// The root section of a Document has an empty name and depth 0.
type Section struct {
	name   string
	depth  int
	parent *Section

	keys     []string
	values   map[string]string
	sections []*Section

	// comment lines preceding a key or sub-section, keyed by its name
	comments map[string][]string
	inline   map[string]string
}

func newSection(name string, parent *Section) *Section {
	s := &Section{
		name:     name,
		parent:   parent,
		values:   make(map[string]string),
		comments: make(map[string][]string),
		inline:   make(map[string]string),
	}
	if parent != nil {
		s.depth = parent.depth + 1
	}
	return s
}

// Name returns the full section name, e.g. "Node : 11".
func (s *Section) Name() string { return s.name }

// Depth returns the nesting level, 1 for top-level sections.
func (s *Section) Depth() int { return s.depth }

// Parent returns the enclosing section or nil for the root.
func (s *Section) Parent() *Section { return s.parent }

// Kind returns the part of the name before the first ':', trimmed. Names
// without a ':' are their own kind.
func (s *Section) Kind() string {
	kind, _ := SplitName(s.name)
	return kind
}

// ID returns the part of the name after the first ':', trimmed, or "".
func (s *Section) ID() string {
	_, id := SplitName(s.name)
	return id
}

// SplitName splits "Kind : ID" into its parts.
func SplitName(name string) (kind, id string) {
	k, i, ok := strings.Cut(name, ":")
	if !ok {
		return strings.TrimSpace(name), ""
	}
	return strings.TrimSpace(k), strings.TrimSpace(i)
}

// JoinName builds a "Kind : ID" section name.
func JoinName(kind, id string) string {
	return kind + " : " + id
}

// Get returns the value of key and whether it exists.
func (s *Section) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// String returns the value of key or def if the key is missing.
func (s *Section) String(key, def string) string {
	if v, ok := s.values[key]; ok {
		return v
	}
	return def
}

// List splits the value of key at sep, trims every element and drops empty
// ones. A missing key yields nil.
func (s *Section) List(key, sep string) []string {
	v, ok := s.values[key]
	if !ok {
		return nil
	}
	return SplitList(v, sep)
}

// SplitList splits v at sep, trimming elements and dropping empty ones.
func SplitList(v, sep string) []string {
	var out []string
	for _, e := range strings.Split(v, sep) {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

// Has reports whether key is a scalar of this section.
func (s *Section) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Set assigns value to key. New keys are appended after the existing ones.
func (s *Section) Set(key, value string) {
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// SetList stores vals joined with sep.
func (s *Section) SetList(key string, vals []string, sep string) {
	s.Set(key, strings.Join(vals, sep))
}

// Delete removes key together with its comments.
func (s *Section) Delete(key string) bool {
	if _, ok := s.values[key]; !ok {
		return false
	}
	delete(s.values, key)
	delete(s.comments, key)
	delete(s.inline, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns the scalar keys in file order.
func (s *Section) Keys() []string {
	return append([]string(nil), s.keys...)
}

// Section returns the direct sub-section called name or nil.
func (s *Section) Section(name string) *Section {
	for _, sub := range s.sections {
		if sub.name == name {
			return sub
		}
	}
	return nil
}

// Lookup follows a path of nested section names and returns nil if any
// element is missing.
func (s *Section) Lookup(path ...string) *Section {
	cur := s
	for _, name := range path {
		if cur = cur.Section(name); cur == nil {
			return nil
		}
	}
	return cur
}

// AddSection appends a new empty sub-section.
func (s *Section) AddSection(name string) (*Section, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("empty section name")
	}
	if strings.ContainsAny(name, "[]\n") {
		return nil, fmt.Errorf("invalid section name %q", name)
	}
	if s.Section(name) != nil {
		return nil, fmt.Errorf("section %q already exists", name)
	}
	sub := newSection(name, s)
	s.sections = append(s.sections, sub)
	return sub, nil
}

// EnsureSection returns the sub-section called name, creating it if needed.
func (s *Section) EnsureSection(name string) *Section {
	if sub := s.Section(name); sub != nil {
		return sub
	}
	sub := newSection(name, s)
	s.sections = append(s.sections, sub)
	return sub
}

// DeleteSection removes the sub-section called name and its comments.
func (s *Section) DeleteSection(name string) bool {
	for i, sub := range s.sections {
		if sub.name == name {
			s.sections = append(s.sections[:i], s.sections[i+1:]...)
			delete(s.comments, name)
			sub.parent = nil
			return true
		}
	}
	return false
}

// Sections returns the direct sub-sections in file order.
func (s *Section) Sections() []*Section {
	return append([]*Section(nil), s.sections...)
}

// SectionsOfKind returns the direct sub-sections whose Kind equals kind.
func (s *Section) SectionsOfKind(kind string) []*Section {
	var out []*Section
	for _, sub := range s.sections {
		if sub.Kind() == kind && sub.ID() != "" {
			out = append(out, sub)
		}
	}
	return out
}

// SetComments replaces the comment lines written before the key or
// sub-section called name. An empty line is written as a blank line, other
// lines get a "# " prefix unless they already start with '#'.
func (s *Section) SetComments(name string, lines ...string) {
	if len(lines) == 0 {
		delete(s.comments, name)
		return
	}
	s.comments[name] = append([]string(nil), lines...)
}

// Comments returns the comment lines attached to name.
func (s *Section) Comments(name string) []string {
	return append([]string(nil), s.comments[name]...)
}

// SetInlineComment sets the comment written after the value of key.
func (s *Section) SetInlineComment(key, comment string) {
	if comment == "" {
		delete(s.inline, key)
		return
	}
	s.inline[key] = comment
}

// InlineComment returns the comment written after the value of key.
func (s *Section) InlineComment(key string) string {
	return s.inline[key]
}

// Clear removes all scalars, sub-sections and comments.
func (s *Section) Clear() {
	s.keys = nil
	s.values = make(map[string]string)
	s.sections = nil
	s.comments = make(map[string][]string)
	s.inline = make(map[string]string)
}

// clone returns a deep copy of s attached to parent.
func (s *Section) clone(parent *Section) *Section {
	c := newSection(s.name, parent)
	c.keys = append([]string(nil), s.keys...)
	for k, v := range s.values {
		c.values[k] = v
	}
	for k, v := range s.comments {
		c.comments[k] = append([]string(nil), v...)
	}
	for k, v := range s.inline {
		c.inline[k] = v
	}
	for _, sub := range s.sections {
		c.sections = append(c.sections, sub.clone(c))
	}
	return c
}

// Rename renames key in place, keeping its position and comments.
func (s *Section) Rename(oldKey, newKey string) bool {
	v, ok := s.values[oldKey]
	if !ok || s.Has(newKey) {
		return false
	}
	for i, k := range s.keys {
		if k == oldKey {
			s.keys[i] = newKey
			break
		}
	}
	delete(s.values, oldKey)
	s.values[newKey] = v
	if c, ok := s.comments[oldKey]; ok {
		s.comments[newKey] = c
		delete(s.comments, oldKey)
	}
	if c, ok := s.inline[oldKey]; ok {
		s.inline[newKey] = c
		delete(s.inline, oldKey)
	}
	return true
}

// Package doctree holds the structural model of a parsed resolution:
// a preamble, a tree of numbered sections and a trailing signature
// block.
package doctree

// Level orders the heading kinds of a resolution body, outermost first.
type Level int

const (
	LevelDieu   Level = iota // "Điều N." article
	LevelRoman               // "I." / "II." major part
	LevelArabic              // "1." / "2." numbered point
	LevelLetter              // "a)" .. "đ)" lettered point
	LevelDash                // "-" bullet
)

var levelNames = [...]string{"dieu", "roman", "arabic", "letter", "dash"}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return "unknown"
	}
	return levelNames[l]
}

// ParseLevel maps a stored level name back to its Level. The boolean
// reports whether the name was recognized.
func ParseLevel(s string) (Level, bool) {
	for i, name := range levelNames {
		if name == s {
			return Level(i), true
		}
	}
	return 0, false
}

// Section is a recursive node of the resolution body.
type Section struct {
	Level     Level      // Heading kind
	Number    string     // Marker as written: "2", "IV", "đ"
	Title     string     // Rest of the heading line
	Content   string     // Body text under this heading, child headings excluded
	SortOrder int        // Document-order index across the whole tree
	Children  []*Section // Subsections
}

// ParsedDocument is the complete structural parse of one document.
type ParsedDocument struct {
	Preamble       string     // Everything above the enacting clause
	Sections       []*Section // Top-level sections in document order
	SignatureBlock string     // Trailing signature / recipients block
}

// Text returns the section's own prose: the heading remainder plus
// the body lines under it. Lettered items usually carry their whole
// sentence on the heading line, so extraction must see the title too.
func (s *Section) Text() string {
	switch {
	case s.Title == "":
		return s.Content
	case s.Content == "":
		return s.Title
	}
	return s.Title + "\n" + s.Content
}

// Flatten returns every section in document order.
func (d *ParsedDocument) Flatten() []*Section {
	var out []*Section
	var walk func(s *Section)
	walk = func(s *Section) {
		out = append(out, s)
		for _, c := range s.Children {
			walk(c)
		}
	}
	for _, s := range d.Sections {
		walk(s)
	}
	return out
}

// Leaves returns the sections without children. These carry the body
// text that downstream extraction runs over.
func (d *ParsedDocument) Leaves() []*Section {
	var out []*Section
	for _, s := range d.Flatten() {
		if len(s.Children) == 0 {
			out = append(out, s)
		}
	}
	return out
}

// Package deck reads .pptx slide decks and rewrites {{KEY}} placeholder
// tokens inside text runs without disturbing any other part of the package.
// A .pptx is an OPC zip; substitution touches only the character data of
// existing <a:t> run elements, so run count, order, and styling survive.
package deck

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrNotDeck is returned when the input cannot be parsed as a slide deck.
var ErrNotDeck = errors.New("not a valid slide deck")

const presentationPart = "ppt/presentation.xml"

var (
	slidePattern = regexp.MustCompile(`^ppt/slides/slide([0-9]+)\.xml$`)
	runPattern   = regexp.MustCompile(`(?s)<a:t(?:\s[^>]*)?>.*?</a:t>`)
	tokenPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)
)

type part struct {
	name string
	data []byte
}

// Deck is an in-memory slide deck. The zero value is not usable; obtain one
// via Open or FromBytes. Fill returns a new Deck and never mutates the
// receiver, so one template can fill any number of rows.
type Deck struct {
	parts  []part // archive order, preserved byte-for-byte on Save
	slides []int  // indices into parts, sorted by slide number
}

// Open parses the .pptx file at path.
// PRE: path points to a readable file
// POST: Returns the parsed deck, or an error wrapping ErrNotDeck
func Open(path string) (*Deck, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open deck %s: %w", path, err)
	}
	d, err := FromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("open deck %s: %w", path, err)
	}
	return d, nil
}

// FromBytes parses raw .pptx bytes.
// PRE: data is the full content of a .pptx file
// POST: Returns the parsed deck, or an error wrapping ErrNotDeck
func FromBytes(data []byte) (*Deck, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDeck, err)
	}

	d := &Deck{}
	type numbered struct {
		num int
		idx int
	}
	var slides []numbered
	seenPresentation := false

	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrNotDeck, f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrNotDeck, f.Name, err)
		}
		d.parts = append(d.parts, part{name: f.Name, data: content})

		if f.Name == presentationPart {
			seenPresentation = true
		}
		if m := slidePattern.FindStringSubmatch(f.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			slides = append(slides, numbered{num: n, idx: len(d.parts) - 1})
		}
	}

	if !seenPresentation {
		return nil, fmt.Errorf("%w: missing %s", ErrNotDeck, presentationPart)
	}

	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })
	for _, s := range slides {
		d.slides = append(d.slides, s.idx)
	}
	return d, nil
}

// SlideCount returns the number of slides in the deck.
func (d *Deck) SlideCount() int {
	return len(d.slides)
}

// Fill returns a copy of the deck with {{KEY}} tokens in run text replaced
// by the matching value. Keys are matched case-insensitively against the
// value map; tokens with no matching column are left untouched, and a
// token split across two runs by a styling boundary is never matched.
// PRE: d was produced by Open or FromBytes
// POST: Returns a new deck; the receiver is unchanged
func (d *Deck) Fill(values map[string]string) *Deck {
	lookup := make(map[string]string, len(values))
	for k, v := range values {
		lookup[strings.ToUpper(strings.TrimSpace(k))] = v
	}

	out := &Deck{
		parts:  make([]part, len(d.parts)),
		slides: d.slides,
	}
	copy(out.parts, d.parts)

	for _, idx := range d.slides {
		out.parts[idx].data = substituteRuns(d.parts[idx].data, lookup)
	}
	return out
}

// substituteRuns rewrites placeholder tokens inside <a:t> elements only.
// Runs whose text contains no matching token are kept byte-identical.
func substituteRuns(slide []byte, lookup map[string]string) []byte {
	return runPattern.ReplaceAllFunc(slide, func(run []byte) []byte {
		open := bytes.IndexByte(run, '>') + 1
		closeTag := bytes.LastIndex(run, []byte("</a:t>"))
		inner := string(run[open:closeTag])

		replaced := tokenPattern.ReplaceAllStringFunc(inner, func(tok string) string {
			key := strings.ToUpper(strings.TrimSpace(tok[2 : len(tok)-2]))
			val, ok := lookup[key]
			if !ok {
				return tok
			}
			return escapeText(val)
		})
		if replaced == inner {
			return run
		}

		var b bytes.Buffer
		b.Write(run[:open])
		b.WriteString(replaced)
		b.Write(run[closeTag:])
		return b.Bytes()
	})
}

var (
	escaper   = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	unescaper = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'", "&amp;", "&")
)

// escapeText escapes a substituted value for XML character data.
func escapeText(s string) string {
	return escaper.Replace(s)
}

// SlideTexts returns the concatenated, unescaped run text of each slide in
// slide order. Intended for previews and verification, not for rendering.
func (d *Deck) SlideTexts() []string {
	out := make([]string, 0, len(d.slides))
	for _, idx := range d.slides {
		var b strings.Builder
		for _, run := range runPattern.FindAll(d.parts[idx].data, -1) {
			open := bytes.IndexByte(run, '>') + 1
			closeTag := bytes.LastIndex(run, []byte("</a:t>"))
			b.WriteString(unescaper.Replace(string(run[open:closeTag])))
		}
		out = append(out, b.String())
	}
	return out
}

// Bytes serializes the deck back into .pptx form. Parts are written in
// their original archive order with fixed headers, so the same deck always
// serializes to the same bytes.
// PRE: d was produced by Open, FromBytes, or Fill
// POST: Returns a complete .pptx archive
func (d *Deck) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range d.parts {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: p.name, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("write deck part %s: %w", p.name, err)
		}
		if _, err := w.Write(p.data); err != nil {
			return nil, fmt.Errorf("write deck part %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize deck: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the deck to path, creating or truncating the file.
// PRE: the parent directory of path exists
// POST: path contains the serialized deck
func (d *Deck) Save(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save deck %s: %w", path, err)
	}
	return nil
}

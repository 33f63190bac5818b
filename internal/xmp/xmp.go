package xmp

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"rawgallery/internal/filesystem"
)

// Namespaces of the elements and attributes the parser reacts to.
const (
	NamespaceRDF       = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NamespaceXMP       = "http://ns.adobe.com/xap/1.0/"
	NamespaceLightroom = "http://ns.adobe.com/lightroom/1.0/"
)

// MaxRating is the highest star rating accepted.
const MaxRating = 5

var (
	// ErrNoRating means the sidecar carries no rating at all. Such files are
	// treated as not yet curated and are not ingested.
	ErrNoRating = errors.New("no rating found")
	// ErrInvalidRating means a rating value is not an integer in 0..MaxRating.
	ErrInvalidRating = errors.New("invalid rating")
)

var (
	descriptionName = qualifiedName{space: NamespaceRDF, prefix: "rdf", local: "Description"}
	ratingName      = qualifiedName{space: NamespaceXMP, prefix: "xmp", local: "Rating"}
	subjectName     = qualifiedName{space: NamespaceLightroom, prefix: "lr", local: "hierarchicalSubject"}
)

// Metadata is what the gallery keeps from a sidecar.
type Metadata struct {
	Rating      int
	RawTagPaths []string
}

// ParseError reports a sidecar that is malformed or carries no usable rating.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parse sidecar: %v", e.Err)
	}
	return fmt.Sprintf("parse sidecar %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// qualifiedName matches an element or attribute by namespace URI, falling
// back to the conventional prefix when the document never declared it.
type qualifiedName struct {
	space  string
	prefix string
	local  string
}

func (q qualifiedName) matches(n xml.Name) bool {
	return n.Local == q.local && (n.Space == q.space || n.Space == q.prefix)
}

// Parse reads the sidecar at path.
func Parse(path string) (*Metadata, error) {
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer f.Close()

	meta, err := ParseReader(f)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return nil, err
	}
	return meta, nil
}

// ParseReader makes a single forward pass over the XML token stream of r.
//
// The rating is read from rating attributes of rdf:Description elements (or
// an xmp:Rating element); when several are present the last one wins. Every
// text node inside lr:hierarchicalSubject becomes one raw tag path. Paths are
// trimmed and blank ones dropped.
func ParseReader(r io.Reader) (*Metadata, error) {
	dec := xml.NewDecoder(r)
	p := &parser{}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Err: fmt.Errorf("malformed document: %w", err)}
		}

		if err := p.handle(tok); err != nil {
			return nil, &ParseError{Err: err}
		}
	}

	return p.result()
}

type parser struct {
	inSubject bool
	inRating  bool

	rating    int
	hasRating bool

	text  strings.Builder
	paths []string
}

func (p *parser) handle(tok xml.Token) error {
	switch t := tok.(type) {
	case xml.StartElement:
		if err := p.flush(); err != nil {
			return err
		}
		switch {
		case descriptionName.matches(t.Name):
			for _, attr := range t.Attr {
				if ratingName.matches(attr.Name) {
					if err := p.setRating(attr.Value); err != nil {
						return err
					}
				}
			}
		case subjectName.matches(t.Name):
			p.inSubject = true
		case ratingName.matches(t.Name):
			p.inRating = true
		}

	case xml.EndElement:
		if err := p.flush(); err != nil {
			return err
		}
		switch {
		case subjectName.matches(t.Name):
			p.inSubject = false
		case ratingName.matches(t.Name):
			p.inRating = false
		}

	case xml.CharData:
		if p.inSubject || p.inRating {
			p.text.Write(t)
		}
	}
	return nil
}

// flush closes the current text node, if any.
func (p *parser) flush() error {
	if p.text.Len() == 0 {
		return nil
	}
	text := p.text.String()
	p.text.Reset()

	if p.inRating {
		return p.setRating(text)
	}
	if p.inSubject {
		p.paths = append(p.paths, text)
	}
	return nil
}

func (p *parser) setRating(value string) error {
	rating, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || rating < 0 || rating > MaxRating {
		return fmt.Errorf("%w: %q", ErrInvalidRating, value)
	}
	p.rating = rating
	p.hasRating = true
	return nil
}

func (p *parser) result() (*Metadata, error) {
	if !p.hasRating {
		return nil, &ParseError{Err: ErrNoRating}
	}

	paths := make([]string, 0, len(p.paths))
	for _, raw := range p.paths {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			paths = append(paths, trimmed)
		}
	}

	return &Metadata{Rating: p.rating, RawTagPaths: paths}, nil
}

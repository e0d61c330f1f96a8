// Package datatype holds the catalog of verb data types and the scalar
// codecs that turn typed Go values into the text stored in claims.value and
// back. Link and inferred types have no codec: their facts carry a claim id
// or are never stored at all.
package datatype

import (
	"recall/claims/internal/apperr"
)

// Shape is the storage shape selected by a data type
type Shape int

const (
	ShapeScalar  Shape = iota // claims.value
	ShapeLink                 // claims.object_id
	ShapeDerived              // computed, never stored
)

func (s Shape) String() string {
	switch s {
	case ShapeScalar:
		return "scalar"
	case ShapeLink:
		return "link"
	case ShapeDerived:
		return "derived"
	default:
		return "unknown"
	}
}

// Data type tags as stored in verbs.data_type
const (
	String         = "string"
	Text           = "text"
	Number         = "number"
	Integer        = "integer"
	Boolean        = "boolean"
	Date           = "date"
	Location       = "location"
	Color          = "color"
	URL            = "url"
	Email          = "email"
	Choice         = "choice"
	Choices        = "choices"
	Social         = "social"
	DirectedLink   = "directed_link"
	UndirectedLink = "undirected_link"
	Inferred       = "inferred"
)

// Options carries the per-verb payload some codecs need
type Options struct {
	Choices  []string // allowed values for choice/choices
	Template string   // link template for social
}

// Codec converts between a typed value and its stored text
type Codec interface {
	Encode(v any, opts Options) (string, error)
	Decode(s string, opts Options) (any, error)
}

var codecs = map[string]Codec{
	String:   stringCodec{allowEmpty: false},
	Text:     stringCodec{allowEmpty: true, multiline: true},
	Number:   numberCodec{},
	Integer:  integerCodec{},
	Boolean:  booleanCodec{},
	Date:     dateCodec{},
	Location: locationCodec{},
	Color:    colorCodec{},
	URL:      urlCodec{},
	Email:    emailCodec{},
	Choice:   choiceCodec{},
	Choices:  choicesCodec{},
	Social:   socialCodec{},
}

// Known reports whether tag is a recognized data type
func Known(tag string) bool {
	if _, ok := codecs[tag]; ok {
		return true
	}
	switch tag {
	case DirectedLink, UndirectedLink, Inferred:
		return true
	}
	return false
}

// ShapeOf returns the storage shape for tag
func ShapeOf(tag string) (Shape, error) {
	switch tag {
	case DirectedLink, UndirectedLink:
		return ShapeLink, nil
	case Inferred:
		return ShapeDerived, nil
	}
	if _, ok := codecs[tag]; ok {
		return ShapeScalar, nil
	}
	return 0, apperr.TypeMismatch("unknown data type %q", tag)
}

// IsSymmetric reports whether facts of tag represent unordered pairs
func IsSymmetric(tag string) bool {
	return tag == UndirectedLink
}

// Lookup returns the codec for a scalar tag
func Lookup(tag string) (Codec, error) {
	c, ok := codecs[tag]
	if !ok {
		if Known(tag) {
			return nil, apperr.TypeMismatch("data type %q is not scalar", tag)
		}
		return nil, apperr.TypeMismatch("unknown data type %q", tag)
	}
	return c, nil
}

// Encode converts v to stored text under tag
func Encode(tag string, v any, opts Options) (string, error) {
	c, err := Lookup(tag)
	if err != nil {
		return "", err
	}
	return c.Encode(v, opts)
}

// Decode parses stored text under tag
func Decode(tag, s string, opts Options) (any, error) {
	c, err := Lookup(tag)
	if err != nil {
		return nil, err
	}
	return c.Decode(s, opts)
}

// Canonical validates raw text under tag and returns its canonical stored
// form (decode followed by encode), e.g. "#ABCDEF" becomes "#abcdef".
func Canonical(tag, s string, opts Options) (string, error) {
	c, err := Lookup(tag)
	if err != nil {
		return "", err
	}
	v, err := c.Decode(s, opts)
	if err != nil {
		return "", err
	}
	return c.Encode(v, opts)
}

// Tags returns every recognized data type tag
func Tags() []string {
	return []string{
		String, Text, Number, Integer, Boolean, Date, Location, Color, URL,
		Email, Choice, Choices, Social, DirectedLink, UndirectedLink, Inferred,
	}
}

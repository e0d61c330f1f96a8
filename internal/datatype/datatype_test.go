package datatype

import (
	"errors"
	"testing"
	"time"

	"recall/claims/internal/apperr"
)

func TestRoundTrip(t *testing.T) {
	opts := Options{Choices: []string{"red", "green", "blue"}, Template: "https://example.social/{handle}"}
	tests := []struct {
		tag string
		v   any
	}{
		{String, "Homer Simpson"},
		{Text, ""},
		{Text, "line one\nline two"},
		{Number, 3.25},
		{Number, -1e-9},
		{Number, 0.1},
		{Integer, int64(-42)},
		{Boolean, true},
		{Boolean, false},
		{Location, LatLng{Lat: 44.05, Lng: -123.09}},
		{Location, LatLng{Lat: -90, Lng: 180}},
		{Color, "#00ff7f"},
		{URL, "https://example.org/a?b=c"},
		{Email, "homer@example.org"},
		{Choice, "green"},
		{Choices, []string{"blue", "red"}},
		{Choices, []string{}},
		{Social, "chunkylover53"},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			s, err := Encode(tt.tag, tt.v, opts)
			if err != nil {
				t.Fatalf("Encode(%v): %v", tt.v, err)
			}
			got, err := Decode(tt.tag, s, opts)
			if err != nil {
				t.Fatalf("Decode(%q): %v", s, err)
			}
			switch want := tt.v.(type) {
			case []string:
				g := got.([]string)
				if len(g) != len(want) {
					t.Fatalf("got %v, want %v", g, want)
				}
				for i := range want {
					if g[i] != want[i] {
						t.Errorf("got %v, want %v", g, want)
					}
				}
			default:
				if got != tt.v {
					t.Errorf("got %#v, want %#v", got, tt.v)
				}
			}
		})
	}
}

func TestRoundTrip_Date(t *testing.T) {
	v := time.Date(1989, time.December, 17, 0, 0, 0, 0, time.UTC)
	s, err := Encode(Date, v, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if s != "1989-12-17" {
		t.Errorf("encoded %q", s)
	}
	got, err := Decode(Date, s, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !got.(time.Time).Equal(v) {
		t.Errorf("got %v, want %v", got, v)
	}
}

func TestEncodingErrors(t *testing.T) {
	opts := Options{Choices: []string{"a", "b"}}
	tests := []struct {
		name string
		tag  string
		raw  string
	}{
		{"empty string", String, "   "},
		{"newline in string", String, "a\nb"},
		{"number", Number, "twelve"},
		{"infinite number", Number, "Inf"},
		{"integer", Integer, "1.5"},
		{"boolean", Boolean, "maybe"},
		{"date", Date, "17/12/1989"},
		{"latitude", Location, "91,0"},
		{"longitude", Location, "0,-181"},
		{"location shape", Location, "12.5"},
		{"latitude nan", Location, "NaN,0"},
		{"color short", Color, "#fff"},
		{"color alpha", Color, "#ffaa0080"},
		{"color chars", Color, "#gg0000"},
		{"url scheme", URL, "ftp://example.org"},
		{"url relative", URL, "/just/a/path"},
		{"url no host", URL, "http://"},
		{"email", Email, "not an address"},
		{"email no domain", Email, "homer@"},
		{"choice", Choice, "c"},
		{"choices unknown", Choices, `["a","z"]`},
		{"choices dup", Choices, `["a","a"]`},
		{"choices json", Choices, `a,b`},
		{"social", Social, "two words"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.tag, tt.raw, opts)
			if !errors.Is(err, apperr.ErrEncoding) {
				t.Errorf("Decode(%s, %q) err = %v, want EncodingError", tt.tag, tt.raw, err)
			}
		})
	}
}

func TestEncode_WrongGoType(t *testing.T) {
	_, err := Encode(Number, "12", Options{})
	if !errors.Is(err, apperr.ErrEncoding) {
		t.Errorf("got %v, want EncodingError", err)
	}
}

func TestLookup_NonScalar(t *testing.T) {
	for _, tag := range []string{DirectedLink, UndirectedLink, Inferred, "hologram"} {
		if _, err := Lookup(tag); !errors.Is(err, apperr.ErrTypeMismatch) {
			t.Errorf("Lookup(%q) err = %v, want TypeMismatch", tag, err)
		}
	}
}

func TestShapeOf(t *testing.T) {
	tests := []struct {
		tag  string
		want Shape
	}{
		{String, ShapeScalar},
		{Choices, ShapeScalar},
		{DirectedLink, ShapeLink},
		{UndirectedLink, ShapeLink},
		{Inferred, ShapeDerived},
	}
	for _, tt := range tests {
		got, err := ShapeOf(tt.tag)
		if err != nil {
			t.Fatalf("ShapeOf(%q): %v", tt.tag, err)
		}
		if got != tt.want {
			t.Errorf("ShapeOf(%q) = %v, want %v", tt.tag, got, tt.want)
		}
	}
	if _, err := ShapeOf("nope"); err == nil {
		t.Error("expected error for unknown tag")
	}
}

func TestCanonical(t *testing.T) {
	got, err := Canonical(Color, "#ABCDEF", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got != "#abcdef" {
		t.Errorf("got %q", got)
	}
	got, err = Canonical(Social, "@bart", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got != "bart" {
		t.Errorf("got %q", got)
	}
	got, err = Canonical(Location, " 1.50 , 2 ", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got != "1.5,2" {
		t.Errorf("got %q", got)
	}
	got, err = Canonical(Email, "Homer Simpson <homer@example.org>", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got != "homer@example.org" {
		t.Errorf("got %q", got)
	}
}

func TestSocialLink(t *testing.T) {
	got := SocialLink("el barto", "https://example.social/{handle}")
	if got != "https://example.social/el%20barto" {
		t.Errorf("got %q", got)
	}
	if SocialLink("x", "") != "" {
		t.Error("empty template should render empty link")
	}
}

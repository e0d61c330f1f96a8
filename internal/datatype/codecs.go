package datatype

import (
	"encoding/json"
	"math"
	"net/mail"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"recall/claims/internal/apperr"
)

// DateLayout is the stored form of date values
const DateLayout = "2006-01-02"

// validate is safe for concurrent use and caches parsed tag rules
var validate = validator.New()

func wrongGoType(tag string, v any) error {
	return apperr.Encoding("%s: unsupported value type %T", tag, v)
}

// checkVar runs one validator rule against a scalar
func checkVar(tag string, v any, rule string) error {
	if err := validate.Var(v, rule); err != nil {
		return apperr.Wrap(apperr.KindEncoding, err, "%s: %v fails %s", tag, v, rule)
	}
	return nil
}

type stringCodec struct {
	allowEmpty bool
	multiline  bool
}

func (c stringCodec) check(s string) error {
	if !c.allowEmpty && strings.TrimSpace(s) == "" {
		return apperr.Encoding("string: empty value")
	}
	if !c.multiline && strings.ContainsAny(s, "\r\n") {
		return apperr.Encoding("string: value contains a line break")
	}
	return nil
}

func (c stringCodec) Encode(v any, _ Options) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", wrongGoType(String, v)
	}
	return s, c.check(s)
}

func (c stringCodec) Decode(s string, _ Options) (any, error) {
	if err := c.check(s); err != nil {
		return nil, err
	}
	return s, nil
}

type numberCodec struct{}

func (numberCodec) Encode(v any, _ Options) (string, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return "", wrongGoType(Number, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", apperr.Encoding("number: %v is not finite", f)
	}
	return strconv.FormatFloat(f, 'g', -1, 64), nil
}

func (numberCodec) Decode(s string, _ Options) (any, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindEncoding, err, "number: cannot parse %q", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, apperr.Encoding("number: %q is not finite", s)
	}
	return f, nil
}

type integerCodec struct{}

func (integerCodec) Encode(v any, _ Options) (string, error) {
	switch n := v.(type) {
	case int64:
		return strconv.FormatInt(n, 10), nil
	case int:
		return strconv.Itoa(n), nil
	default:
		return "", wrongGoType(Integer, v)
	}
}

func (integerCodec) Decode(s string, _ Options) (any, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindEncoding, err, "integer: cannot parse %q", s)
	}
	return n, nil
}

type booleanCodec struct{}

func (booleanCodec) Encode(v any, _ Options) (string, error) {
	b, ok := v.(bool)
	if !ok {
		return "", wrongGoType(Boolean, v)
	}
	return strconv.FormatBool(b), nil
}

func (booleanCodec) Decode(s string, _ Options) (any, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindEncoding, err, "boolean: cannot parse %q", s)
	}
	return b, nil
}

// dateCodec stores calendar dates; decoded values are UTC midnight
type dateCodec struct{}

func (dateCodec) Encode(v any, _ Options) (string, error) {
	t, ok := v.(time.Time)
	if !ok {
		return "", wrongGoType(Date, v)
	}
	if t.IsZero() {
		return "", apperr.Encoding("date: zero time")
	}
	return t.Format(DateLayout), nil
}

func (dateCodec) Decode(s string, _ Options) (any, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindEncoding, err, "date: cannot parse %q", s)
	}
	return t, nil
}

// LatLng is a decoded location value
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type locationCodec struct{}

func checkLatLng(p LatLng) error {
	if err := checkVar(Location, p.Lat, "latitude"); err != nil {
		return err
	}
	return checkVar(Location, p.Lng, "longitude")
}

func (locationCodec) Encode(v any, _ Options) (string, error) {
	p, ok := v.(LatLng)
	if !ok {
		return "", wrongGoType(Location, v)
	}
	if err := checkLatLng(p); err != nil {
		return "", err
	}
	return strconv.FormatFloat(p.Lat, 'g', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'g', -1, 64), nil
}

func (locationCodec) Decode(s string, _ Options) (any, error) {
	lat, lng, ok := strings.Cut(s, ",")
	if !ok {
		return nil, apperr.Encoding("location: expected \"lat,lng\", got %q", s)
	}
	var p LatLng
	var err error
	if p.Lat, err = strconv.ParseFloat(strings.TrimSpace(lat), 64); err != nil {
		return nil, apperr.Wrap(apperr.KindEncoding, err, "location: bad latitude %q", lat)
	}
	if p.Lng, err = strconv.ParseFloat(strings.TrimSpace(lng), 64); err != nil {
		return nil, apperr.Wrap(apperr.KindEncoding, err, "location: bad longitude %q", lng)
	}
	if err := checkLatLng(p); err != nil {
		return nil, err
	}
	return p, nil
}

type colorCodec struct{}

func (colorCodec) Encode(v any, _ Options) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", wrongGoType(Color, v)
	}
	// hexcolor alone also takes #rgb and #rrggbbaa
	if err := checkVar(Color, s, "hexcolor,len=7"); err != nil {
		return "", err
	}
	return strings.ToLower(s), nil
}

func (c colorCodec) Decode(s string, opts Options) (any, error) {
	out, err := c.Encode(strings.TrimSpace(s), opts)
	if err != nil {
		return nil, err
	}
	return out, nil
}

type urlCodec struct{}

func (urlCodec) Encode(v any, _ Options) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", wrongGoType(URL, v)
	}
	if err := checkVar(URL, s, "required,http_url"); err != nil {
		return "", err
	}
	return s, nil
}

func (c urlCodec) Decode(s string, opts Options) (any, error) {
	out, err := c.Encode(strings.TrimSpace(s), opts)
	if err != nil {
		return nil, err
	}
	return out, nil
}

type emailCodec struct{}

func (emailCodec) Encode(v any, _ Options) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", wrongGoType(Email, v)
	}
	// ParseAddress strips a display name; the bare address must still pass
	// the stricter email rule
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return "", apperr.Wrap(apperr.KindEncoding, err, "email: cannot parse %q", s)
	}
	if err := checkVar(Email, addr.Address, "email"); err != nil {
		return "", err
	}
	return addr.Address, nil
}

func (c emailCodec) Decode(s string, opts Options) (any, error) {
	out, err := c.Encode(strings.TrimSpace(s), opts)
	if err != nil {
		return nil, err
	}
	return out, nil
}

type choiceCodec struct{}

func (choiceCodec) Encode(v any, opts Options) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", wrongGoType(Choice, v)
	}
	if !slices.Contains(opts.Choices, s) {
		return "", apperr.Encoding("choice: %q is not one of %v", s, opts.Choices)
	}
	return s, nil
}

func (c choiceCodec) Decode(s string, opts Options) (any, error) {
	out, err := c.Encode(s, opts)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// choicesCodec stores a JSON array of distinct options
type choicesCodec struct{}

func (choicesCodec) check(vals []string, opts Options) error {
	seen := make(map[string]bool, len(vals))
	for _, s := range vals {
		if !slices.Contains(opts.Choices, s) {
			return apperr.Encoding("choices: %q is not one of %v", s, opts.Choices)
		}
		if seen[s] {
			return apperr.Encoding("choices: %q listed twice", s)
		}
		seen[s] = true
	}
	return nil
}

func (c choicesCodec) Encode(v any, opts Options) (string, error) {
	vals, ok := v.([]string)
	if !ok {
		return "", wrongGoType(Choices, v)
	}
	if vals == nil {
		vals = []string{}
	}
	if err := c.check(vals, opts); err != nil {
		return "", err
	}
	data, err := json.Marshal(vals)
	if err != nil {
		return "", apperr.Wrap(apperr.KindEncoding, err, "choices")
	}
	return string(data), nil
}

func (c choicesCodec) Decode(s string, opts Options) (any, error) {
	var vals []string
	if err := json.Unmarshal([]byte(s), &vals); err != nil {
		return nil, apperr.Wrap(apperr.KindEncoding, err, "choices: cannot parse %q", s)
	}
	if vals == nil {
		vals = []string{}
	}
	if err := c.check(vals, opts); err != nil {
		return nil, err
	}
	return vals, nil
}

// TemplatePlaceholder is replaced by the handle when rendering a social link
const TemplatePlaceholder = "{handle}"

type socialCodec struct{}

func (socialCodec) Encode(v any, _ Options) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", wrongGoType(Social, v)
	}
	s = strings.TrimPrefix(s, "@")
	if s == "" || strings.ContainsFunc(s, isSpace) || strings.Contains(s, "/") {
		return "", apperr.Encoding("social: %q is not a handle", v)
	}
	return s, nil
}

func (c socialCodec) Decode(s string, opts Options) (any, error) {
	out, err := c.Encode(s, opts)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SocialLink renders a stored handle through a verb's link template
func SocialLink(handle, template string) string {
	if template == "" {
		return ""
	}
	return strings.ReplaceAll(template, TemplatePlaceholder, url.PathEscape(handle))
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

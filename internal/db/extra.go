package db

import (
	"database/sql"
	"encoding/json"
	"strings"

	"recall/claims/internal/apperr"
	"recall/claims/internal/datatype"
	"recall/claims/internal/infer"
)

// Extra is the decoded verbs.extra payload. The concrete type is chosen by
// the verb's data type when the row is loaded.
type Extra interface {
	extra()
}

// NoExtra is used by data types that carry no payload
type NoExtra struct{}

// RuleExtra holds the rule of an inferred verb. A rule that failed to decode
// keeps its error so loading the verb still succeeds and evaluation reports
// it.
type RuleExtra struct {
	Rule infer.Rule
	Err  error
}

// ChoiceExtra lists the allowed values of choice and choices verbs. Like
// RuleExtra it keeps a decode failure, which writes through the verb report.
type ChoiceExtra struct {
	Options []string
	Err     error
}

// TemplateExtra is the link template of a social verb
type TemplateExtra struct {
	Template string
}

func (NoExtra) extra()       {}
func (RuleExtra) extra()     {}
func (ChoiceExtra) extra()   {}
func (TemplateExtra) extra() {}

// DecodeExtra interprets a stored payload for dataType
func DecodeExtra(dataType string, raw sql.NullString) Extra {
	switch dataType {
	case datatype.Inferred:
		if !raw.Valid || strings.TrimSpace(raw.String) == "" {
			return RuleExtra{Err: apperr.InvalidRule("inferred verb has no rule")}
		}
		r, err := infer.ParseRule([]byte(raw.String))
		return RuleExtra{Rule: r, Err: err}
	case datatype.Choice, datatype.Choices:
		var opts []string
		if raw.Valid && raw.String != "" {
			if err := json.Unmarshal([]byte(raw.String), &opts); err != nil {
				return ChoiceExtra{Err: apperr.Wrap(apperr.KindEncoding, err, "decoding %s options", dataType)}
			}
		}
		return ChoiceExtra{Options: opts}
	case datatype.Social:
		return TemplateExtra{Template: raw.String}
	}
	return NoExtra{}
}

// encodeExtra checks that e fits dataType and returns its stored form
func encodeExtra(dataType string, e Extra) (sql.NullString, error) {
	if e == nil {
		e = NoExtra{}
	}
	switch dataType {
	case datatype.Inferred:
		re, ok := e.(RuleExtra)
		if !ok {
			return sql.NullString{}, apperr.InvalidRule("inferred verb needs a rule")
		}
		if re.Err != nil {
			return sql.NullString{}, re.Err
		}
		data, err := json.Marshal(re.Rule)
		if err != nil {
			return sql.NullString{}, apperr.Wrap(apperr.KindInvalidRule, err, "encoding rule")
		}
		return sql.NullString{String: string(data), Valid: true}, nil

	case datatype.Choice, datatype.Choices:
		ce, ok := e.(ChoiceExtra)
		if ok && ce.Err != nil {
			return sql.NullString{}, ce.Err
		}
		if !ok || len(ce.Options) == 0 {
			return sql.NullString{}, apperr.TypeMismatch("%s verb needs at least one option", dataType)
		}
		seen := make(map[string]bool, len(ce.Options))
		for _, o := range ce.Options {
			if o == "" || seen[o] {
				return sql.NullString{}, apperr.Encoding("option list has an empty or repeated entry %q", o)
			}
			seen[o] = true
		}
		data, err := json.Marshal(ce.Options)
		if err != nil {
			return sql.NullString{}, apperr.Wrap(apperr.KindEncoding, err, "encoding options")
		}
		return sql.NullString{String: string(data), Valid: true}, nil

	case datatype.Social:
		switch te := e.(type) {
		case NoExtra:
			return sql.NullString{}, nil
		case TemplateExtra:
			if te.Template != "" && !strings.Contains(te.Template, datatype.TemplatePlaceholder) {
				return sql.NullString{}, apperr.Encoding("template %q lacks %s", te.Template, datatype.TemplatePlaceholder)
			}
			return sql.NullString{String: te.Template, Valid: te.Template != ""}, nil
		}
		return sql.NullString{}, apperr.TypeMismatch("social verb takes a template")
	}

	if _, ok := e.(NoExtra); !ok {
		return sql.NullString{}, apperr.TypeMismatch("data type %s takes no extra payload", dataType)
	}
	return sql.NullString{}, nil
}

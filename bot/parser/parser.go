// Package parser turns raw multi-line chat text into a validated key→value
// record for a workflow form.
//
// Parsing is pure: it never touches the session store or the row store, so a
// malformed message is rejected before any external call happens.
package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/BaSui01/staffline/types"
)

// Kind classifies a validation failure so the engine can pick the matching
// corrective message.
type Kind string

const (
	// KindMissingSeparator means a non-empty line has no key/value separator.
	KindMissingSeparator Kind = "missing_separator"

	// KindKeySetMismatch means the parsed keys differ from the form's keys.
	KindKeySetMismatch Kind = "key_set_mismatch"

	// KindInvalidDate means a date field is not DD-MM-YYYY.
	KindInvalidDate Kind = "invalid_date"

	// KindInvalidCategory means a category field names no known category.
	KindInvalidCategory Kind = "invalid_category"
)

// ValidationError reports why a message failed form validation.
type ValidationError struct {
	Kind   Kind
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed (%s) on field %q: %s", e.Kind, e.Field, e.Detail)
	}
	return fmt.Sprintf("validation failed (%s): %s", e.Kind, e.Detail)
}

// Form describes the exact field set a workflow expects.
type Form struct {
	// Name of the workflow the form belongs to, for logs.
	Name string

	// Fields are the required keys, canonical lower-case. The parsed key set
	// must equal this set exactly.
	Fields []string

	// DateFields are validated as DD-MM-YYYY (1-2 digit day/month tolerated).
	DateFields []string

	// CategoryFields are validated against the known category labels.
	CategoryFields []string
}

// Registration is the six-field employee registration form.
var Registration = Form{
	Name:           "registration",
	Fields:         []string{"name", "department", "branch", "position", "start date", "category"},
	DateFields:     []string{"start date"},
	CategoryFields: []string{"category"},
}

// Transfer is the five-field category transfer form. "category" names the
// target category; the source is resolved from the old code.
var Transfer = Form{
	Name:           "transfer",
	Fields:         []string{"code", "name", "position", "category", "effective date"},
	DateFields:     []string{"effective date"},
	CategoryFields: []string{"category"},
}

// datePattern tolerates 1-2 digit day and month with a 4-digit year.
var datePattern = regexp.MustCompile(`^\d{1,2}-\d{1,2}-\d{4}$`)

// separator splits a line into key and value.
const separator = ":"

// Parse validates text against the form and returns the key→value record.
// Keys are canonicalized to trimmed lower-case; values are trimmed. On
// failure the returned error is a *ValidationError.
func Parse(text string, form Form) (map[string]string, error) {
	values := make(map[string]string)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, found := strings.Cut(line, separator)
		if !found {
			return nil, &ValidationError{
				Kind:   KindMissingSeparator,
				Detail: fmt.Sprintf("line %q has no %q separator", line, separator),
			}
		}

		values[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	if err := checkKeySet(values, form); err != nil {
		return nil, err
	}

	for _, field := range form.DateFields {
		if !datePattern.MatchString(values[field]) {
			return nil, &ValidationError{
				Kind:   KindInvalidDate,
				Field:  field,
				Detail: fmt.Sprintf("%q is not a DD-MM-YYYY date", values[field]),
			}
		}
	}

	for _, field := range form.CategoryFields {
		if _, ok := types.ParseCategory(values[field]); !ok {
			return nil, &ValidationError{
				Kind:   KindInvalidCategory,
				Field:  field,
				Detail: fmt.Sprintf("%q is not a known category", values[field]),
			}
		}
	}

	return values, nil
}

// checkKeySet enforces exact equality between parsed keys and form fields,
// neither subset nor superset.
func checkKeySet(values map[string]string, form Form) error {
	var missing, unexpected []string

	expected := make(map[string]bool, len(form.Fields))
	for _, f := range form.Fields {
		expected[f] = true
		if _, ok := values[f]; !ok {
			missing = append(missing, f)
		}
	}
	for k := range values {
		if !expected[k] {
			unexpected = append(unexpected, k)
		}
	}

	if len(missing) == 0 && len(unexpected) == 0 {
		return nil
	}

	sort.Strings(missing)
	sort.Strings(unexpected)

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(missing, ", "))
	}
	if len(unexpected) > 0 {
		parts = append(parts, "unexpected: "+strings.Join(unexpected, ", "))
	}

	return &ValidationError{
		Kind:   KindKeySetMismatch,
		Detail: strings.Join(parts, "; "),
	}
}

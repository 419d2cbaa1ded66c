// Package changelog computes human-readable field diffs between two
// snapshots of a record.
package changelog

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/garyjia/proposal-review/internal/domain/entity"
)

// systemFields never produce changelog entries
var systemFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"version":    true,
	"created_by": true,
	"updated_by": true,
	"owner_id":   true,
}

var titleCaser = cases.Title(language.English)

// FieldChange is one differing field between two snapshots
type FieldChange struct {
	Field    string
	Previous string
	Current  string
	Category string
	Summary  string
}

// Diff compares two snapshots over the union of their field names and
// returns one change per differing non-system field, ordered by field name.
// Values are compared by their string form.
func Diff(previous, current entity.Snapshot) []FieldChange {
	fields := make(map[string]struct{}, len(previous)+len(current))
	for k := range previous {
		fields[k] = struct{}{}
	}
	for k := range current {
		fields[k] = struct{}{}
	}

	names := make([]string, 0, len(fields))
	for k := range fields {
		if !IsSystemField(k) {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	var changes []FieldChange
	for _, name := range names {
		prev := Stringify(previous[name])
		curr := Stringify(current[name])
		if prev == curr {
			continue
		}
		category := Categorize(name)
		changes = append(changes, FieldChange{
			Field:    name,
			Previous: prev,
			Current:  curr,
			Category: category,
			Summary:  Summarize(name, category, prev, curr),
		})
	}
	return changes
}

// IsSystemField reports whether field is excluded from diffs
func IsSystemField(field string) bool {
	return systemFields[field]
}

// Categorize infers the change category from a field name
func Categorize(field string) string {
	switch {
	case field == "status":
		return entity.ChangeStatusChange
	case strings.Contains(field, "content"), strings.HasPrefix(field, entity.CustomFieldPrefix):
		return entity.ChangeContentEdit
	default:
		return entity.ChangeFieldUpdate
	}
}

// Label turns a field name into display text, e.g. "allocated_hours" -> "Allocated Hours"
func Label(field string) string {
	name := strings.TrimPrefix(field, entity.CustomFieldPrefix)
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}

// Summarize renders the human-readable description of a change
func Summarize(field, category, prev, curr string) string {
	label := Label(field)

	switch category {
	case entity.ChangeStatusChange:
		return fmt.Sprintf("Status changed from %s to %s", orNone(prev), orNone(curr))
	case entity.ChangeContentEdit:
		before, after := utf8.RuneCountInString(prev), utf8.RuneCountInString(curr)
		switch {
		case prev == "":
			return fmt.Sprintf("%s added (%d characters)", label, after)
		case curr == "":
			return fmt.Sprintf("%s cleared (%d characters removed)", label, before)
		case after > before:
			return fmt.Sprintf("%s expanded by %d characters", label, after-before)
		case after < before:
			return fmt.Sprintf("%s condensed by %d characters", label, before-after)
		default:
			return fmt.Sprintf("%s revised (length unchanged)", label)
		}
	}

	switch {
	case prev == "":
		return fmt.Sprintf("%s set to %s", label, curr)
	case curr == "":
		return fmt.Sprintf("%s cleared (was %s)", label, prev)
	default:
		return fmt.Sprintf("%s changed from %s to %s", label, prev, curr)
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// Stringify renders a snapshot value in the canonical form used for
// comparison and storage
func Stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.UTC().Format(time.RFC3339)
	case *time.Time:
		if val == nil {
			return ""
		}
		return Stringify(*val)
	case *int64:
		if val == nil {
			return ""
		}
		return strconv.FormatInt(*val, 10)
	case fmt.Stringer:
		return val.String()
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		data, err := json.Marshal(v)
		if err == nil {
			return string(data)
		}
	}
	return fmt.Sprint(v)
}

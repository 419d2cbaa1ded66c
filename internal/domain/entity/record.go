package entity

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Record represents the business document under review
type Record struct {
	ID                  int64             `json:"id"`
	Title               string            `json:"title"`
	Client              string            `json:"client"`
	Pricing             float64           `json:"pricing"`
	Content             string            `json:"content"`
	Status              string            `json:"status"`
	AllocatedHours      float64           `json:"allocated_hours"`
	RequirementDisabled bool              `json:"requirement_disabled"`
	HoursRemoved        float64           `json:"hours_removed"`
	DisabledAt          *time.Time        `json:"disabled_at,omitempty"`
	DisabledBy          *int64            `json:"disabled_by,omitempty"`
	CustomFields        map[string]string `json:"custom_fields,omitempty"`
	Hidden              bool              `json:"hidden"`
	Version             int               `json:"version"`
	OwnerID             int64             `json:"owner_id"`
	CreatedBy           int64             `json:"created_by"`
	UpdatedBy           int64             `json:"updated_by"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// Snapshot is a flat view of a record's fields keyed by field name.
// Custom fields appear under their "custom_" prefixed name.
type Snapshot map[string]interface{}

// CustomFieldPrefix marks free-form fields in snapshots and patches
const CustomFieldPrefix = "custom_"

// Snapshot returns the record as a field map suitable for diffing
func (r *Record) Snapshot() Snapshot {
	s := Snapshot{
		"id":                   r.ID,
		"title":                r.Title,
		"client":               r.Client,
		"pricing":              r.Pricing,
		"content":              r.Content,
		"status":               r.Status,
		"allocated_hours":      r.AllocatedHours,
		"requirement_disabled": r.RequirementDisabled,
		"hidden":               r.Hidden,
		"version":              r.Version,
		"owner_id":             r.OwnerID,
		"created_by":           r.CreatedBy,
		"updated_by":           r.UpdatedBy,
		"created_at":           r.CreatedAt,
		"updated_at":           r.UpdatedAt,
	}
	for k, v := range r.CustomFields {
		s[CustomFieldPrefix+k] = v
	}
	return s
}

// ApplyPatch applies editable field values to the record.
// Workflow-owned fields (status, allocation flags, version) are rejected.
func (r *Record) ApplyPatch(patch map[string]interface{}) error {
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := patch[key]
		switch {
		case key == "title":
			s, err := asString(key, value)
			if err != nil {
				return err
			}
			r.Title = s
		case key == "client":
			s, err := asString(key, value)
			if err != nil {
				return err
			}
			r.Client = s
		case key == "content":
			s, err := asString(key, value)
			if err != nil {
				return err
			}
			r.Content = s
		case key == "pricing":
			f, err := asFloat(key, value)
			if err != nil {
				return err
			}
			r.Pricing = f
		case key == "allocated_hours":
			f, err := asFloat(key, value)
			if err != nil {
				return err
			}
			if f < 0 {
				return fmt.Errorf("field %q must not be negative", key)
			}
			if r.RequirementDisabled {
				return fmt.Errorf("field %q is locked while the requirement is disabled", key)
			}
			r.AllocatedHours = f
		case strings.HasPrefix(key, CustomFieldPrefix) && len(key) > len(CustomFieldPrefix):
			name := strings.TrimPrefix(key, CustomFieldPrefix)
			if r.CustomFields == nil {
				r.CustomFields = make(map[string]string)
			}
			if value == nil {
				delete(r.CustomFields, name)
				continue
			}
			r.CustomFields[name] = fmt.Sprint(value)
		default:
			return fmt.Errorf("field %q is not editable", key)
		}
	}
	return nil
}

// MissingRequiredFields lists the fields that must be filled before the
// record can enter review
func (r *Record) MissingRequiredFields() []string {
	var missing []string
	if strings.TrimSpace(r.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(r.Client) == "" {
		missing = append(missing, "client")
	}
	if r.OwnerID == 0 {
		missing = append(missing, "owner_id")
	}
	return missing
}

func asString(key string, v interface{}) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("field %q must be a string", key)
	}
}

func asFloat(key string, v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("field %q must be a number", key)
	}
}

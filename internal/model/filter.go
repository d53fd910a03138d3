package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// FilterType selects which issue attribute a filter matches against.
type FilterType string

const (
	FilterTypeCategory FilterType = "category"
	FilterTypePriority FilterType = "priority"
	FilterTypeSeverity FilterType = "severity"
	FilterTypeTag      FilterType = "tag"
	FilterTypeProject  FilterType = "project"
	FilterTypeCustom   FilterType = "custom"
)

// FilterAction is what a matched filter does with the notification.
type FilterAction string

const (
	ActionNotify     FilterAction = "notify"
	ActionIgnore     FilterAction = "ignore"
	ActionDigestOnly FilterAction = "digest_only"
)

// NotificationFilter is a user-owned rule refining the notify decision.
// ProjectID 0 means the rule applies to every project.
type NotificationFilter struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	UserID       int64          `json:"user_id" db:"user_id"`
	ProjectID    int64          `json:"project_id" db:"project_id"`
	Enabled      bool           `json:"enabled" db:"enabled"`
	FilterType   FilterType     `json:"filter_type" db:"filter_type"`
	FilterValue  string         `json:"filter_value" db:"filter_value"`
	Action       FilterAction   `json:"action" db:"action"`
	Channels     pq.StringArray `json:"channels" db:"channels"`
	DateCreated  int64          `json:"date_created" db:"date_created"`
	DateModified int64          `json:"date_modified" db:"date_modified"`
}

// ValueRange is a parsed numeric filter value, either a single integer or
// an inclusive "min-max" range.
type ValueRange struct {
	Min int
	Max int
}

// Contains reports whether v falls inside the range, bounds included.
func (r ValueRange) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// ParseValueRange parses a priority/severity filter value. Accepted forms
// are a bare integer ("40") or an inclusive range ("40-60") with min <= max.
func ParseValueRange(value string) (ValueRange, error) {
	value = strings.TrimSpace(value)
	if min, max, ok := strings.Cut(value, "-"); ok {
		lo, err := strconv.Atoi(strings.TrimSpace(min))
		if err != nil {
			return ValueRange{}, fmt.Errorf("invalid range lower bound %q: %w", min, err)
		}
		hi, err := strconv.Atoi(strings.TrimSpace(max))
		if err != nil {
			return ValueRange{}, fmt.Errorf("invalid range upper bound %q: %w", max, err)
		}
		if lo > hi {
			return ValueRange{}, fmt.Errorf("range %q has min > max", value)
		}
		return ValueRange{Min: lo, Max: hi}, nil
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return ValueRange{}, fmt.Errorf("invalid filter value %q: %w", value, err)
	}
	return ValueRange{Min: n, Max: n}, nil
}

// Validate checks structural invariants before a filter is persisted.
func (f *NotificationFilter) Validate() error {
	switch f.FilterType {
	case FilterTypeCategory, FilterTypeTag, FilterTypeProject, FilterTypeCustom:
		if f.FilterValue == "" {
			return fmt.Errorf("filter value is required for type %s", f.FilterType)
		}
	case FilterTypePriority, FilterTypeSeverity:
		if _, err := ParseValueRange(f.FilterValue); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported filter type: %s", f.FilterType)
	}

	switch f.Action {
	case ActionNotify, ActionIgnore, ActionDigestOnly:
	default:
		return fmt.Errorf("unsupported filter action: %s", f.Action)
	}

	return nil
}

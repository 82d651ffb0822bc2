// Copyright 2025 The fleetgov Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package labels

import (
	"fmt"
	"strings"
	"time"
)

const (
	// CreatedByKey holds the sanitized identity of the principal that created the instance.
	CreatedByKey = "created-by"
	// CreatedDateKey holds the creation date.
	CreatedDateKey = "created-date"
	// StopByKey holds the date on which the stop job acts on the instance.
	StopByKey = "stop-by"
	// DeleteByKey holds the date on which the delete job acts on the instance.
	DeleteByKey = "delete-by"

	// ManagedNodeKey marks an instance as a GKE worker node.
	ManagedNodeKey = "goog-gke-node"
	// ClusterNameKey holds the name of the cluster owning a managed node.
	ClusterNameKey = "goog-k8s-cluster-name"
	// ClusterLocationKey holds the location (zone or region) of that cluster.
	ClusterLocationKey = "goog-k8s-cluster-location"
	// NodePoolKey holds the name of the node pool owning a managed node.
	NodePoolKey = "goog-k8s-node-pool-name"

	// DateLayout is the YYYYMMDD encoding used by every date label.
	DateLayout = "20060102"

	// MaxValueLength is the longest label value Compute Engine accepts.
	MaxValueLength = 63

	// DefaultStopAfterDays is the stop-by offset from the creation date.
	DefaultStopAfterDays = 7
	// DefaultDeleteAfterDays is the delete-by offset from the creation date.
	DefaultDeleteAfterDays = 30

	truncateMarker = "iam"
)

// Offsets configures how far stop-by and delete-by lie from the creation date.
type Offsets struct {
	StopAfterDays   int
	DeleteAfterDays int
}

// DefaultOffsets returns the +7/+30 day policy.
func DefaultOffsets() Offsets {
	return Offsets{
		StopAfterDays:   DefaultStopAfterDays,
		DeleteAfterDays: DefaultDeleteAfterDays,
	}
}

// normalize keeps created-date <= stop-by <= delete-by for any input.
func (o Offsets) normalize() Offsets {
	if o.StopAfterDays < 0 {
		o.StopAfterDays = 0
	}
	if o.DeleteAfterDays < 0 {
		o.DeleteAfterDays = 0
	}
	if o.StopAfterDays > o.DeleteAfterDays {
		o.StopAfterDays = o.DeleteAfterDays
	}
	return o
}

// Governance is the set of labels stamped on a newly created instance.
type Governance struct {
	CreatedBy   string
	CreatedDate string
	StopBy      string
	DeleteBy    string
}

// Map returns the governance labels keyed by label name.
func (g Governance) Map() map[string]string {
	return map[string]string{
		CreatedByKey:   g.CreatedBy,
		CreatedDateKey: g.CreatedDate,
		StopByKey:      g.StopBy,
		DeleteByKey:    g.DeleteBy,
	}
}

// Compute derives the governance labels for an instance created by identity at now.
func Compute(identity string, now time.Time, offsets Offsets) Governance {
	offsets = offsets.normalize()
	day := startOfDay(now)
	return Governance{
		CreatedBy:   SanitizeIdentity(identity),
		CreatedDate: FormatDate(day),
		StopBy:      FormatDate(day.AddDate(0, 0, offsets.StopAfterDays)),
		DeleteBy:    FormatDate(day.AddDate(0, 0, offsets.DeleteAfterDays)),
	}
}

// SanitizeIdentity converts a principal email into a valid label value.
// Applying it to its own output returns the output unchanged.
func SanitizeIdentity(identity string) string {
	var b strings.Builder
	b.Grow(len(identity))
	for _, r := range strings.ToLower(identity) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			// covers "@" and "." plus anything else Compute Engine rejects
			b.WriteByte('_')
		}
	}
	s := b.String()

	if len(s) > MaxValueLength {
		if i := strings.Index(s, truncateMarker); i >= 0 {
			s = s[:i]
		}
	}
	if len(s) > MaxValueLength {
		s = s[:MaxValueLength]
	}
	return s
}

// Merge returns the union of existing and governance; governance wins on collisions.
// Neither input is modified.
func Merge(existing, governance map[string]string) map[string]string {
	merged := make(map[string]string, len(existing)+len(governance))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range governance {
		merged[k] = v
	}
	return merged
}

// FormatDate renders t as YYYYMMDD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a YYYYMMDD label value.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil || len(value) != len(DateLayout) {
		if err == nil {
			err = fmt.Errorf("expected %d digits", len(DateLayout))
		}
		return time.Time{}, &MalformedLabelError{Value: value, Err: err}
	}
	return t, nil
}

// IsDue reports whether the date in value has been reached on today.
func IsDue(value string, today time.Time) (bool, error) {
	date, err := ParseDate(value)
	if err != nil {
		return false, err
	}
	return !date.After(civilDate(today)), nil
}

// DaysBetween returns the absolute number of calendar days between value and today.
func DaysBetween(value string, today time.Time) (int, error) {
	date, err := ParseDate(value)
	if err != nil {
		return 0, err
	}
	// Both are UTC midnights. Duration arithmetic saturates past 292 years.
	const secondsPerDay = 24 * 60 * 60
	days := int((date.Unix() - civilDate(today).Unix()) / secondsPerDay)
	if days < 0 {
		days = -days
	}
	return days, nil
}

// civilDate returns today's calendar date as a UTC midnight, comparable with ParseDate results.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// MalformedLabelError reports a label value that is not a valid YYYYMMDD date.
type MalformedLabelError struct {
	Key   string
	Value string
	Err   error
}

func (e *MalformedLabelError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("malformed date label value %q: %v", e.Value, e.Err)
	}
	return fmt.Sprintf("malformed date label %s=%q: %v", e.Key, e.Value, e.Err)
}

func (e *MalformedLabelError) Unwrap() error {
	return e.Err
}

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

package labeler

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/saltysoup/ai-infra-scripts/internal/fleet"
)

// ErrIgnoredEvent is returned for well-formed audit entries of other methods.
var ErrIgnoredEvent = errors.New("audit entry is not an instance insertion")

// insertMethodSuffix matches v1, beta and alpha spellings of the insert method.
const insertMethodSuffix = "compute.instances.insert"

// Trigger is a parsed instance creation event.
type Trigger struct {
	// Principal is the email of the creator as reported by the audit log.
	Principal string
	Instance  fleet.InstanceRef
	Method    string
	Timestamp time.Time
}

// BadTriggerPayloadError reports a trigger payload that is missing fields or is malformed.
type BadTriggerPayloadError struct {
	Field  string
	Reason string
}

func (e *BadTriggerPayloadError) Error() string {
	if e.Field == "" {
		return "bad trigger payload: " + e.Reason
	}
	return fmt.Sprintf("bad trigger payload: %s: %s", e.Field, e.Reason)
}

// IsBadTriggerPayload reports whether err carries a *BadTriggerPayloadError.
func IsBadTriggerPayload(err error) bool {
	var bad *BadTriggerPayloadError
	return errors.As(err, &bad)
}

// auditLogEntry is the subset of a Cloud Audit Log entry the labeler reads.
type auditLogEntry struct {
	ProtoPayload *struct {
		AuthenticationInfo *struct {
			PrincipalEmail string `json:"principalEmail"`
		} `json:"authenticationInfo"`
		MethodName   string `json:"methodName"`
		ResourceName string `json:"resourceName"`
	} `json:"protoPayload"`
	Resource *struct {
		Type   string            `json:"type"`
		Labels map[string]string `json:"labels"`
	} `json:"resource"`
	Timestamp time.Time `json:"timestamp"`
}

// ParseAuditEvent extracts the creator and the instance from an audit log
// entry. The project and zone come from resource.labels, which must carry
// both; resourceName must have the form projects/{p}/zones/{z}/instances/{n}
// and agree with them.
func ParseAuditEvent(data []byte) (*Trigger, error) {
	var entry auditLogEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, &BadTriggerPayloadError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	payload := entry.ProtoPayload
	if payload == nil {
		return nil, &BadTriggerPayloadError{Field: "protoPayload", Reason: "missing"}
	}
	if payload.MethodName != "" && !strings.HasSuffix(payload.MethodName, insertMethodSuffix) {
		return nil, fmt.Errorf("%w: %s", ErrIgnoredEvent, payload.MethodName)
	}
	if payload.AuthenticationInfo == nil || payload.AuthenticationInfo.PrincipalEmail == "" {
		return nil, &BadTriggerPayloadError{Field: "protoPayload.authenticationInfo.principalEmail", Reason: "missing"}
	}

	named, err := parseInstanceName(payload.ResourceName)
	if err != nil {
		return nil, err
	}

	var resourceLabels map[string]string
	if entry.Resource != nil {
		resourceLabels = entry.Resource.Labels
	}
	project := resourceLabels["project_id"]
	if project == "" {
		return nil, &BadTriggerPayloadError{Field: "resource.labels.project_id", Reason: "missing"}
	}
	zone := resourceLabels["zone"]
	if zone == "" {
		return nil, &BadTriggerPayloadError{Field: "resource.labels.zone", Reason: "missing"}
	}
	if project != named.Project {
		return nil, &BadTriggerPayloadError{
			Field:  "resource.labels.project_id",
			Reason: fmt.Sprintf("%q does not match resource name project %q", project, named.Project),
		}
	}
	if zone != named.Zone {
		return nil, &BadTriggerPayloadError{
			Field:  "resource.labels.zone",
			Reason: fmt.Sprintf("%q does not match resource name zone %q", zone, named.Zone),
		}
	}
	ref := fleet.InstanceRef{Project: project, Zone: zone, Name: named.Name}

	return &Trigger{
		Principal: payload.AuthenticationInfo.PrincipalEmail,
		Instance:  ref,
		Method:    payload.MethodName,
		Timestamp: entry.Timestamp,
	}, nil
}

func parseInstanceName(name string) (fleet.InstanceRef, error) {
	const field = "protoPayload.resourceName"
	if name == "" {
		return fleet.InstanceRef{}, &BadTriggerPayloadError{Field: field, Reason: "missing"}
	}

	parts := strings.Split(name, "/")
	if len(parts) != 6 || parts[0] != "projects" || parts[2] != "zones" || parts[4] != "instances" {
		return fleet.InstanceRef{}, &BadTriggerPayloadError{
			Field:  field,
			Reason: fmt.Sprintf("%q is not of the form projects/{project}/zones/{zone}/instances/{name}", name),
		}
	}
	for _, p := range []string{parts[1], parts[3], parts[5]} {
		if p == "" {
			return fleet.InstanceRef{}, &BadTriggerPayloadError{Field: field, Reason: fmt.Sprintf("%q has an empty segment", name)}
		}
	}

	return fleet.InstanceRef{Project: parts[1], Zone: parts[3], Name: parts[5]}, nil
}

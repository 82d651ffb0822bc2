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

package webhook

import (
	"encoding/json"
	"errors"
)

// DirectSource is the rate limit key of deliveries that are not Pub/Sub envelopes.
const DirectSource = "direct"

// PushEnvelope is the body of a Pub/Sub push subscription request.
type PushEnvelope struct {
	Message      PushMessage `json:"message"`
	Subscription string      `json:"subscription"`
}

// PushMessage is one Pub/Sub message. Data is base64 on the wire.
type PushMessage struct {
	Data        []byte            `json:"data"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	MessageID   string            `json:"messageId"`
	PublishTime string            `json:"publishTime,omitempty"`
}

// Delivery is the audit log entry carried by a request, with its origin.
type Delivery struct {
	Data      []byte
	Source    string
	MessageID string
}

// DecodeDelivery unwraps a Pub/Sub push envelope. Any other JSON object is
// treated as the audit log entry itself.
func DecodeDelivery(payload []byte) (*Delivery, error) {
	var env PushEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, err
	}

	if env.Subscription == "" && env.Message.MessageID == "" && len(env.Message.Data) == 0 {
		return &Delivery{Data: payload, Source: DirectSource}, nil
	}
	if len(env.Message.Data) == 0 {
		return nil, errors.New("push message has no data")
	}

	source := env.Subscription
	if source == "" {
		source = DirectSource
	}
	return &Delivery{Data: env.Message.Data, Source: source, MessageID: env.Message.MessageID}, nil
}

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

package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// Conn is the subset of *nats.Conn used by Publisher.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher is a Sink backed by a NATS connection.
type Publisher struct {
	conn   Conn
	nc     *nats.Conn
	prefix string
}

// Connect dials url and returns a Publisher that reconnects forever.
func Connect(url, prefix string) (*Publisher, error) {
	log := logf.Log.WithName("events")
	opts := []nats.Option{
		nats.Name("fleetgov"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Error(err, "NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	p := NewPublisher(nc, prefix)
	p.nc = nc
	return p, nil
}

// NewPublisher wraps an existing connection.
func NewPublisher(conn Conn, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Publisher{conn: conn, prefix: prefix}
}

// Subject returns the subject events of action are published on.
func (p *Publisher) Subject(action string) string {
	return p.prefix + "." + action
}

// PublishAction implements Sink.
func (p *Publisher) PublishAction(_ context.Context, ev ActionEvent) error {
	return p.publish(p.Subject(ev.Action), ev)
}

// PublishBatch implements Sink.
func (p *Publisher) PublishBatch(_ context.Context, ev BatchEvent) error {
	return p.publish(p.Subject(ev.Action), ev)
}

func (p *Publisher) publish(subject string, v any) error {
	if p.nc != nil && p.nc.IsClosed() {
		return errors.New("nats connection is closed")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}

// Close drains and closes the connection opened by Connect.
func (p *Publisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

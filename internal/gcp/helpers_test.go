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

package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

func createMuxAndServer() (*http.ServeMux, *httptest.Server) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	return mux, server
}

func testRetryConfig() *RetryConfig {
	return &RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func createMuxServerAndComputeService(t *testing.T) (*http.ServeMux, *httptest.Server, *ComputeService) {
	t.Helper()
	mux, server := createMuxAndServer()
	svc, err := NewComputeService(context.Background(),
		option.WithHTTPClient(server.Client()),
		option.WithEndpoint(server.URL+"/compute/v1/"),
	)
	if err != nil {
		server.Close()
		t.Fatalf("NewComputeService() error: %v", err)
	}
	return mux, server, svc.WithRetryConfig(testRetryConfig())
}

func createMuxServerAndContainerService(t *testing.T) (*http.ServeMux, *httptest.Server, *ContainerService) {
	t.Helper()
	mux, server := createMuxAndServer()
	svc, err := NewContainerService(context.Background(),
		option.WithHTTPClient(server.Client()),
		option.WithEndpoint(server.URL+"/"),
	)
	if err != nil {
		server.Close()
		t.Fatalf("NewContainerService() error: %v", err)
	}
	return mux, server, svc.WithRetryConfig(testRetryConfig())
}

func handler(err *googleapi.Error, obj interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		handleTestRequest(w, err, obj)
	}
}

// capturingHandler decodes the request body into into before answering.
func capturingHandler(into interface{}, obj interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := json.NewDecoder(req.Body).Decode(into); err != nil {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}
		handleTestRequest(w, nil, obj)
	}
}

// sequenceHandler answers with errs in order, then with obj.
func sequenceHandler(calls *int32, errs []*googleapi.Error, obj interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		n := int(atomic.AddInt32(calls, 1)) - 1
		if n < len(errs) {
			handleTestRequest(w, errs[n], nil)
			return
		}
		handleTestRequest(w, nil, obj)
	}
}

// paginatedHandler maps page tokens to responses.
func paginatedHandler(googleErr *googleapi.Error, tokenToObj map[string]interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		values, err := url.ParseQuery(req.URL.RawQuery)
		if err != nil {
			panic(err)
		}
		token := values.Get("pageToken")
		obj, ok := tokenToObj[token]
		if !ok {
			http.Error(w, fmt.Sprintf("invalid / unregistered page token: %v", token), http.StatusInternalServerError)
			return
		}
		handleTestRequest(w, googleErr, obj)
	}
}

func handleTestRequest(w http.ResponseWriter, handleErr *googleapi.Error, obj interface{}) {
	if handleErr != nil {
		http.Error(w, errMsg(handleErr), handleErr.Code)
		return
	}
	res, err := json.Marshal(obj)
	if err != nil {
		http.Error(w, "json marshal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(res) //nolint:errcheck,gosec
}

func errMsg(e *googleapi.Error) string {
	res, err := json.Marshal(&errorReply{e})
	if err != nil {
		return "json marshal error"
	}
	return string(res)
}

type errorReply struct {
	Error *googleapi.Error `json:"error"`
}

/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package middleware

import "strings"

// Resource is a protected group of routes, named after the first path segment.
type Resource string

// Action is what a request does to a resource.
type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
	ActionAll   Action = "*"

	ResourceTransactions    Resource = "transactions"
	ResourceOperators       Resource = "operators"
	ResourceOperatorActions Resource = "operator-actions"
	ResourceProofs          Resource = "proofs"
	ResourceRates           Resource = "rates"
	ResourceSearch          Resource = "search"
	ResourceAll             Resource = "*"
)

var methodToAction = map[string]Action{
	"GET":   ActionRead,
	"HEAD":  ActionRead,
	"POST":  ActionWrite,
	"PUT":   ActionWrite,
	"PATCH": ActionWrite,
}

// MasterScopes grants everything.
var MasterScopes = []string{BuildScope(ResourceAll, ActionAll)}

// ChannelScopes is what the operator-channel gateway may do: deliver operator events and
// read back the proofs it forwarded.
var ChannelScopes = []string{
	BuildScope(ResourceOperatorActions, ActionWrite),
	BuildScope(ResourceProofs, ActionRead),
}

func BuildScope(resource Resource, action Action) string {
	return string(resource) + ":" + string(action)
}

func ParseScope(scope string) (Resource, Action) {
	parts := strings.Split(scope, ":")
	if len(parts) != 2 {
		return "", ""
	}
	return Resource(parts[0]), Action(parts[1])
}

// HasPermission checks if a set of scopes has permission for a given resource and HTTP method
func HasPermission(scopes []string, resource Resource, method string) bool {
	action := methodToAction[method]
	if action == "" {
		return false
	}

	for _, scope := range scopes {
		scopeResource, scopeAction := ParseScope(scope)
		if scopeResource != ResourceAll && scopeResource != resource {
			continue
		}
		if scopeAction == ActionAll || scopeAction == action {
			return true
		}
	}
	return false
}

func getResourceFromPath(path string) Resource {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) == 0 {
		return ""
	}
	switch r := Resource(parts[0]); r {
	case ResourceTransactions, ResourceOperators, ResourceOperatorActions, ResourceProofs, ResourceRates, ResourceSearch:
		return r
	}
	return ""
}

// Package property provides read-only access to a test plan's built-in and
// custom properties for parameter resolution.
package property

import (
	"strings"

	"testops/testplan-engine/pkg/types"
)

// CustomPrefix is the token prefix addressing custom properties, as in
// properties.<key>.
const CustomPrefix = "properties."

// Store is a read-only key/value view over a test plan's properties.
type Store interface {
	// Get returns the value for a property name, reporting whether the
	// name is known.
	Get(name string) (types.Value, bool)
}

// InstanceStore exposes a TestPlanInstance's built-in fields plus
// properties.<key> for every custom property. It never mutates the instance.
type InstanceStore struct {
	plan *types.TestPlanInstance
}

// NewInstanceStore creates a Store backed by the given instance.
func NewInstanceStore(plan *types.TestPlanInstance) *InstanceStore {
	return &InstanceStore{plan: plan}
}

// Get implements Store.
func (s *InstanceStore) Get(name string) (types.Value, bool) {
	if key, ok := strings.CutPrefix(name, CustomPrefix); ok {
		// Only the one-level properties.<key> form is supported.
		v, ok := s.plan.Properties[key]
		return v, ok
	}

	switch name {
	case "testPlanId":
		return types.String(s.plan.ID), true
	case "name":
		return types.String(s.plan.Name), true
	case "systemId":
		return types.String(s.plan.SystemID), true
	case "partNumber":
		return types.String(s.plan.PartNumber), true
	case "testProgram":
		return types.String(s.plan.TestProgram), true
	case "serialNumber":
		return types.String(s.plan.SerialNumber), true
	case "operator":
		return types.String(s.plan.Operator), true
	case "dutId":
		return types.String(s.plan.DUTID), true
	case "workspace":
		return types.String(s.plan.Workspace), true
	}
	return types.Null(), false
}

// MapStore is a plain map-backed Store, used in tests and for embedding the
// resolver outside a full test plan.
type MapStore map[string]types.Value

// Get implements Store.
func (s MapStore) Get(name string) (types.Value, bool) {
	v, ok := s[name]
	return v, ok
}

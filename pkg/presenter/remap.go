package presenter

import "cluster-portal/pkg/models"

// RemapKey matches a resolved code together with data.type
type RemapKey struct {
	Code     string
	DataType string
}

// Policy says how a matched failure is presented
type Policy struct {
	// Code replaces the resolved code
	Code string
	// TitleKey is used when the caller gives no title
	TitleKey string
}

// RemapTable maps (code, data.type) pairs to presentation policies. New
// mappings are added as entries, never as branches.
type RemapTable map[RemapKey]Policy

// DefaultRemapTable returns the built-in mappings
func DefaultRemapTable() RemapTable {
	return RemapTable{
		{Code: "400", DataType: "RepositoryAlreadyPresent"}: {Code: models.CodeRepositoryAlreadyPresent},
	}
}

// Lookup finds the policy for an exact (code, dataType) pair
func (t RemapTable) Lookup(code, dataType string) (Policy, bool) {
	if dataType == "" {
		return Policy{}, false
	}
	p, ok := t[RemapKey{Code: code, DataType: dataType}]
	return p, ok
}

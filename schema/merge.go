package schema

import (
	"github.com/crow-misia/jubatus-go-client"
)

// Merge merges the common schema into every other schema and returns the
// merged schemas (without the common one). Inputs are not modified.
//
// For each service: its own methods come first, followed by common methods
// whose rpc name does not appear in the service; definitions are the union
// of both with the service's own entries taking precedence.
func Merge(services map[string]*ServiceSchema) (map[string]*ServiceSchema, error) {
	common, found := services[CommonName]
	if !found {
		return nil, jubatus.Errorf(jubatus.ConfigurationError, "common schema %q not found", CommonName)
	}

	ret := make(map[string]*ServiceSchema, len(services)-1)
	for name, svc := range services {
		if name == CommonName {
			continue
		}
		merged, err := mergeOne(svc, common)
		if err != nil {
			return nil, err
		}
		ret[name] = merged
	}
	return ret, nil
}

func mergeOne(svc, common *ServiceSchema) (*ServiceSchema, error) {
	merged := svc.Clone()

	for k, v := range common.Definitions {
		if _, found := merged.Definitions[k]; !found {
			merged.Definitions[k] = v
		}
	}

	names := make(map[string]struct{}, len(merged.Methods))
	for _, m := range merged.Methods {
		if _, found := names[m.RPCName]; found {
			return nil, jubatus.Errorf(jubatus.ConfigurationError, "schema %q: duplicated method %q", svc.Name, m.RPCName)
		}
		names[m.RPCName] = struct{}{}
	}
	for _, m := range common.Methods {
		if _, found := names[m.RPCName]; found {
			continue
		}
		names[m.RPCName] = struct{}{}
		merged.Methods = append(merged.Methods, m)
	}
	return merged, nil
}

package criteria

import (
	"github.com/viant/approvalflow/service/dao"
)

// Match reports whether value satisfies every parameter named name. Absent
// parameters match everything.
func Match(name, value string, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter == nil || parameter.Name != name {
			continue
		}
		matched := false
		for _, candidate := range parameter.Values() {
			if candidate == value {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// FilterByStatus matches the Status parameter.
func FilterByStatus(status string, parameters []*dao.Parameter) bool {
	return Match(dao.ParameterStatus, status, parameters)
}

// Values collects the values of all parameters named name.
func Values(name string, parameters []*dao.Parameter) []string {
	var ret []string
	for _, parameter := range parameters {
		if parameter != nil && parameter.Name == name {
			ret = append(ret, parameter.Values()...)
		}
	}
	return ret
}

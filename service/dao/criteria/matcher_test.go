package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/approvalflow/service/dao"
)

func TestFilterByStatus(t *testing.T) {
	testCases := []struct {
		description string
		status      string
		parameters  []*dao.Parameter
		expect      bool
	}{
		{description: "no parameters", status: "pending", expect: true},
		{description: "single match", status: "pending", parameters: []*dao.Parameter{dao.NewParameter(dao.ParameterStatus, "pending")}, expect: true},
		{description: "single mismatch", status: "approved", parameters: []*dao.Parameter{dao.NewParameter(dao.ParameterStatus, "pending")}, expect: false},
		{description: "any of", status: "escalated", parameters: []*dao.Parameter{dao.NewParameter(dao.ParameterStatus, "pending", "escalated")}, expect: true},
		{description: "other parameter ignored", status: "approved", parameters: []*dao.Parameter{dao.NewParameter(dao.ParameterTemplate, "t1")}, expect: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			assert.Equal(t, testCase.expect, FilterByStatus(testCase.status, testCase.parameters))
		})
	}
}

func TestValues(t *testing.T) {
	parameters := []*dao.Parameter{
		dao.NewParameter(dao.ParameterStatus, "pending", "escalated"),
		dao.NewParameter(dao.ParameterTemplate, "t1"),
		dao.NewParameter(dao.ParameterStatus, "returned"),
	}
	assert.Equal(t, []string{"pending", "escalated", "returned"}, Values(dao.ParameterStatus, parameters))
	assert.Nil(t, Values("Other", parameters))
}

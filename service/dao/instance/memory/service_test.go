package memory

import (
	"testing"

	"github.com/viant/approvalflow/service/dao/instance"
	"github.com/viant/approvalflow/service/dao/instance/storetest"
)

func TestService(t *testing.T) {
	storetest.Run(t, func(t *testing.T) instance.Store {
		return New()
	})
}

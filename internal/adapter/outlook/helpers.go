package outlook

import (
	"errors"

	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"
)

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefBool(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}

// isNotFound reports whether err is a Graph 404/410 OData error.
func isNotFound(err error) bool {
	var odataErr *odataerrors.ODataError
	if errors.As(err, &odataErr) {
		code := odataErr.ResponseStatusCode
		return code == 404 || code == 410
	}
	return false
}

package mock

import (
	"github.com/ledgerlight/ledgerlight/rpc/coretypes"
)

// RewriteMethod applies fn to the result of every request for method.
func RewriteMethod(method string, fn func(*coretypes.Result)) Interceptor {
	return func(requests []coretypes.MethodRequest, results []coretypes.Result) ([]coretypes.Result, error) {
		for i, req := range requests {
			if req.Method() == method {
				fn(&results[i])
			}
		}
		return results, nil
	}
}

// DropLast answers a batch with one result less.
func DropLast() Interceptor {
	return func(_ []coretypes.MethodRequest, results []coretypes.Result) ([]coretypes.Result, error) {
		if len(results) == 0 {
			return results, nil
		}
		return results[:len(results)-1], nil
	}
}

// FailWith fails every batch with err.
func FailWith(err error) Interceptor {
	return func([]coretypes.MethodRequest, []coretypes.Result) ([]coretypes.Result, error) {
		return nil, err
	}
}

package services

import (
	httpClient "github.com/cyphera/cyphera-wallet/internal/client/http"
	"github.com/cyphera/cyphera-wallet/internal/query"
)

// transient lets retryable upstream failures through and marks the rest permanent.
func transient(err error) error {
	if err == nil || httpClient.IsRetryable(err) {
		return err
	}
	return query.Permanent(err)
}

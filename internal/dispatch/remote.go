package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ai-junction/internal/adapters"
	apperrors "ai-junction/internal/common/errors"
	httpclient "ai-junction/internal/common/http"
	"ai-junction/internal/models"
)

var errEmptyResponse = errors.New("backend returned an empty body")

// callRemote posts the request to the cached endpoint. The bearer token is
// read from the descriptor of this call, not from the cached connection.
// A 2xx response must carry a JSON body.
func (d *Dispatcher) callRemote(ctx context.Context, conn *connection, desc models.BackendDescriptor, req models.AnalyzedRequest) (any, error) {
	headers := map[string]string{"Accept": "application/json"}
	if key := desc.ConfigString(models.ConfigAPIKey); key != "" {
		headers["Authorization"] = "Bearer " + key
	}

	data, err := d.remote.PostJSONForBytes(ctx, conn.endpoint, headers, req)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			return nil, apperrors.NewDispatchStatusError(desc.ID, statusErr.StatusCode)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewDispatchTimeoutError(desc.ID, err)
		}
		stdErr := apperrors.NewDispatchFailedError(desc.ID, err)
		stdErr.Retryable = adapters.IsTransient(err)
		return nil, stdErr
	}

	if len(bytes.TrimSpace(data)) == 0 {
		stdErr := apperrors.NewDispatchFailedError(desc.ID, errEmptyResponse)
		stdErr.Retryable = false
		return nil, stdErr
	}

	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		stdErr := apperrors.NewDispatchFailedError(desc.ID, fmt.Errorf("decode response: %w", err))
		stdErr.Retryable = false
		return nil, stdErr
	}
	return out, nil
}

package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pastelnetwork/supernode-client/pkg/utils"
)

// HTTPSource is a PriceSource that GETs a JSON endpoint and extracts the
// price from a caller-named top-level field of the JSON reply.
type HTTPSource struct {
	name       string
	url        string
	field      string
	httpClient *http.Client
}

// NewHTTPSource builds an HTTPSource named name, fetching url and reading
// the numeric value at the top-level field key out of the JSON reply.
func NewHTTPSource(name, url, field string) *HTTPSource {
	return &HTTPSource{
		name:       name,
		url:        url,
		field:      field,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (h *HTTPSource) Name() string { return h.name }

func (h *HTTPSource) FetchUSDPrice(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return 0, utils.Wrap(err, "build price source request")
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return 0, utils.Wrap(err, "fetch price source")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price source %s: http %d", h.name, resp.StatusCode)
	}

	var parsed map[string]json.Number
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, utils.Wrap(err, "decode price source reply")
	}
	num, ok := parsed[h.field]
	if !ok {
		return 0, fmt.Errorf("price source %s: missing field %q", h.name, h.field)
	}
	return num.Float64()
}

package zipcode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/stormsignal/strike-alert/internal/model"
	"github.com/stormsignal/strike-alert/internal/resilience"
)

// remoteResponse matches the zippopotam.us response shape.
type remoteResponse struct {
	PostCode string `json:"post code"`
	Places   []struct {
		PlaceName string `json:"place name"`
		State     string `json:"state abbreviation"`
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"places"`
}

// lookupRemote fetches a ZIP from the configured provider, retrying
// transient failures.
func (c *client) lookupRemote(ctx context.Context, base string) (*Result, error) {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("zipcode", "lookup")

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Result, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		return c.fetch(ctx, base)
	})
}

func (c *client) fetch(ctx context.Context, base string) (*Result, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "zipcode: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "zipcode: request"), 0)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, eris.Wrapf(model.ErrNotFound, "zipcode: %s", base)
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("zipcode: provider returned %d", resp.StatusCode), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("zipcode: provider returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "zipcode: read response"), 0)
	}

	var rr remoteResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, eris.Wrap(err, "zipcode: decode response")
	}
	if len(rr.Places) == 0 {
		return nil, eris.Wrapf(model.ErrNotFound, "zipcode: %s", base)
	}

	place := rr.Places[0]
	lat, err := strconv.ParseFloat(place.Latitude, 64)
	if err != nil {
		return nil, eris.Wrap(err, "zipcode: parse latitude")
	}
	lon, err := strconv.ParseFloat(place.Longitude, 64)
	if err != nil {
		return nil, eris.Wrap(err, "zipcode: parse longitude")
	}

	return &Result{
		ZipCode:   base,
		City:      place.PlaceName,
		State:     place.State,
		Latitude:  lat,
		Longitude: lon,
	}, nil
}

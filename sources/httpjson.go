package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"shopscout/utils"
)

const maxResponseBytes = 16 << 20

// doJSON sends the request built by newReq and decodes a 200 response into
// out. newReq is called once per attempt so bodies can be replayed. 4xx
// responses other than 429 are not retried.
func doJSON(ctx context.Context, client *http.Client, retry *utils.RetryConfig, op string, newReq func() (*http.Request, error), out any) error {
	return retry.Do(ctx, op, func() error {
		req, err := newReq()
		if err != nil {
			return fmt.Errorf("build request: %w: %w", err, utils.ErrPermanent)
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %w", ctx.Err(), utils.ErrPermanent)
			}
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, snippet(body))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return fmt.Errorf("%w: %w", err, utils.ErrPermanent)
			}
			return err
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w: %w", err, utils.ErrPermanent)
		}
		return nil
	})
}

func snippet(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

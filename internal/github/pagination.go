package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
)

// PageIterator lazily walks a paginated endpoint by following the Link
// header. Not safe for concurrent use.
type PageIterator[T any] struct {
	client  *Client
	nextURL string
}

// Next fetches the next page. It returns nil, nil once every page has been
// consumed.
func (iterator *PageIterator[T]) Next(ctx context.Context) ([]T, error) {
	if iterator.nextURL == "" {
		return nil, nil
	}

	response, err := iterator.client.doRaw(ctx, iterator.nextURL)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
		return nil, parseAPIError(response.StatusCode, body)
	}

	items := []T{}
	if err := json.NewDecoder(response.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("github: decoding page: %w", err)
	}
	iterator.nextURL = parseLinkNext(response.Header.Get("Link"))
	return items, nil
}

// Collect fetches pages until the endpoint is exhausted or limit items have
// been gathered. limit <= 0 means no limit.
func (iterator *PageIterator[T]) Collect(ctx context.Context, limit int) ([]T, error) {
	var all []T
	for {
		items, err := iterator.Next(ctx)
		if err != nil {
			return all, err
		}
		if items == nil {
			return all, nil
		}
		all = append(all, items...)
		if limit > 0 && len(all) >= limit {
			return all[:limit], nil
		}
		if len(items) == 0 {
			return all, nil
		}
	}
}

// parseLinkNext extracts the rel="next" URL from an RFC 5988 Link header.
//
//	<https://api.github.com/...?page=2>; rel="next", <...>; rel="last"
func parseLinkNext(header string) string {
	for _, part := range strings.Split(header, ",") {
		target, params, ok := strings.Cut(strings.TrimSpace(part), ";")
		if !ok || !strings.Contains(params, `rel="next"`) {
			continue
		}
		target = strings.TrimSpace(target)
		if strings.HasPrefix(target, "<") && strings.HasSuffix(target, ">") {
			return target[1 : len(target)-1]
		}
	}
	return ""
}

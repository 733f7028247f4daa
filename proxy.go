package qarelay

import (
	"context"
	"errors"
)

// ProxyMiddleware implements Service on top of an EndpointSet, letting a
// remote caller (e.g. over NATS) use the same interface as a local service.
func ProxyMiddleware(endpoints *EndpointSet) ServiceMiddleware {
	return func(next Service) Service {
		return &proxyMiddleware{
			endpoints: endpoints,
		}
	}
}

type proxyMiddleware struct {
	endpoints *EndpointSet
}

func (mw *proxyMiddleware) Close() error {
	return errors.New("method not implemented")
}

func (mw *proxyMiddleware) Ask(ctx context.Context, q Question) (Reply, error) {
	req := AskRequest{
		UserID:   q.UserID,
		UserName: q.UserName,
		Message:  q.Text,
	}

	resp, err := mw.endpoints.Ask(ctx, req)
	if err != nil {
		return Reply{}, err
	}

	result, ok := resp.(AskResponse)
	if !ok {
		return Reply{}, errors.New("invalid response type")
	}

	return result.Reply, nil
}

func (mw *proxyMiddleware) ReloadKnowledgeBase(ctx context.Context) (int, error) {
	resp, err := mw.endpoints.Reload(ctx, nil)
	if err != nil {
		return 0, err
	}

	result, ok := resp.(ReloadResponse)
	if !ok {
		return 0, errors.New("invalid response type")
	}

	return result.Entries, nil
}

func (mw *proxyMiddleware) CountEntries(ctx context.Context) int {
	resp, err := mw.endpoints.Count(ctx, nil)
	if err != nil {
		return 0
	}

	result, ok := resp.(CountResponse)
	if !ok {
		return 0
	}

	return result.Entries
}

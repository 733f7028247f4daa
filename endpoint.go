package qarelay

import (
	"context"
	"errors"

	"github.com/go-kit/kit/endpoint"
)

type EndpointSet struct {
	Ask    endpoint.Endpoint
	Reload endpoint.Endpoint
	Count  endpoint.Endpoint
}

type AskRequest struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Message  string `json:"message"`
}

type AskResponse struct {
	Reply Reply `json:"reply"`
}

func AskEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(AskRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		q := Question{
			UserID:   req.UserID,
			UserName: req.UserName,
			Text:     req.Message,
		}

		if q.UserID == "" {
			q.UserID = DefaultUserID
		}

		if q.UserName == "" {
			q.UserName = DefaultUserName
		}

		reply, err := svc.Ask(ctx, q)
		if err != nil {
			return nil, err
		}

		return AskResponse{Reply: reply}, nil
	}
}

type ReloadResponse struct {
	Entries int `json:"entries"`
}

func ReloadEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		entries, err := svc.ReloadKnowledgeBase(ctx)
		if err != nil {
			return nil, err
		}

		return ReloadResponse{Entries: entries}, nil
	}
}

type CountResponse struct {
	Entries int `json:"entries"`
}

func CountEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		return CountResponse{Entries: svc.CountEntries(ctx)}, nil
	}
}

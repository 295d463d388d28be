package main

import (
	"context"
	"net/http"

	"github.com/bjaus/specbind"
	"github.com/bjaus/specbind/security"
)

// builtinHandlers serves the operation ids the command knows how to answer.
func builtinHandlers() specbind.Handlers {
	return specbind.Handlers{
		"health": health,
		"echo":   echo,
	}
}

func health(_ context.Context, _ *specbind.Request) (specbind.Result, error) {
	return specbind.Data(map[string]string{"status": "ok"}), nil
}

// echo returns the decoded body, path parameters and authenticated user.
func echo(_ context.Context, req *specbind.Request) (specbind.Result, error) {
	out := map[string]any{
		"method": req.Method,
		"params": req.PathParams,
		"query":  req.Query,
	}
	if req.JSON != nil {
		out["body"] = req.JSON
	} else if req.Body != nil {
		out["body"] = string(req.Body)
	}
	if user, ok := specbind.Value[string](req.Context, security.UserKey); ok {
		out["user"] = user
	}
	if id := specbind.RequestID(req); id != "" {
		out["request_id"] = id
	}
	return specbind.Status(out, http.StatusOK), nil
}

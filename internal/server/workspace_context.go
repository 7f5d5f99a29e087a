package server

import "context"

type workspaceCtxKey struct{}

func withWorkspace(ctx context.Context, workspaceID string) context.Context {
	return context.WithValue(ctx, workspaceCtxKey{}, workspaceID)
}

func currentWorkspace(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(workspaceCtxKey{}).(string)
	return id, ok && id != ""
}

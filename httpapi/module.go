package httpapi

import (
	"github.com/gostratum/blobx"
	"github.com/gostratum/core"
	"github.com/gostratum/core/logx"
	"go.uber.org/fx"
)

// Module provides the HTTP server and ties it to the fx lifecycle
func Module() fx.Option {
	return fx.Module("blobx-http",
		fx.Provide(
			newHandlerFromParams,
			newServerFromParams,
		),
		fx.Invoke(registerServer),
	)
}

type handlerParams struct {
	fx.In

	Gateway *blobx.Gateway
	Config  *blobx.Config
	Checks  []core.Check `group:"health_checkers"`
	Logger  logx.Logger  `optional:"true"`
}

func newHandlerFromParams(params handlerParams) *Handler {
	return NewHandler(params.Gateway, params.Checks, params.Logger, params.Config.HTTP.MaxUploadBytes)
}

type serverParams struct {
	fx.In

	Config  *blobx.Config
	Handler *Handler
	Logger  logx.Logger `optional:"true"`
}

func newServerFromParams(params serverParams) *Server {
	return NewServer(params.Config.HTTP, params.Handler, params.Logger)
}

func registerServer(lc fx.Lifecycle, s *Server) {
	lc.Append(fx.Hook{
		OnStart: s.Start,
		OnStop:  s.Shutdown,
	})
}

package api

import (
	"context"

	"go.uber.org/fx"

	lanpeer "github.com/dep2p/go-lanpeer"
	"github.com/dep2p/go-lanpeer/internal/config"
	"github.com/dep2p/go-lanpeer/internal/core/eventbus"
	"github.com/dep2p/go-lanpeer/internal/core/metrics"
)

// ============================================================================
// Fx 模块
// ============================================================================

// Params 服务器依赖
type Params struct {
	fx.In

	Config  *config.Config
	Service *lanpeer.PeerService
	Bus     *eventbus.Bus
	Metrics *metrics.Metrics
}

// Module 返回 Fx 模块，依赖 lanpeer.Module()
func Module() fx.Option {
	return fx.Module("api",
		fx.Provide(ProvideServer),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideServer 提供 HTTP 服务器
func ProvideServer(p Params) (*Server, error) {
	hub, err := NewHub(p.Bus)
	if err != nil {
		return nil, err
	}
	return NewServer(p.Config.HTTPAddr, p.Service, hub, p.Metrics)
}

type lifecycleInput struct {
	fx.In
	LC     fx.Lifecycle
	Server *Server
}

func registerLifecycle(in lifecycleInput) {
	in.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return in.Server.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return in.Server.Stop(ctx)
		},
	})
}

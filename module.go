package lanpeer

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-lanpeer/internal/config"
	"github.com/dep2p/go-lanpeer/internal/core/eventbus"
	"github.com/dep2p/go-lanpeer/internal/core/metrics"
)

// ============================================================================
// Fx 模块
// ============================================================================

// Params PeerService 依赖
type Params struct {
	fx.In

	Config  *config.Config
	Metrics *metrics.Metrics
	Bus     *eventbus.Bus

	// Handler 应用消息回调，可不提供
	Handler MessageHandler `optional:"true"`

	// Options 额外选项，通过 fx.Annotate(..., fx.ResultTags(`group:"lanpeer.options"`)) 提供
	Options []Option `group:"lanpeer.options"`
}

// Module 返回 Fx 模块
//
// 调用方需要提供 *config.Config。
func Module() fx.Option {
	return fx.Module("lanpeer",
		fx.Provide(
			metrics.New,
			eventbus.NewBus,
			ProvideService,
		),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideService 提供 PeerService
func ProvideService(p Params) (*PeerService, error) {
	opts := make([]Option, 0, len(p.Options)+2)
	opts = append(opts, WithMetrics(p.Metrics), WithEventBus(p.Bus))
	opts = append(opts, p.Options...)
	return New(p.Config, p.Handler, opts...)
}

type lifecycleInput struct {
	fx.In
	LC      fx.Lifecycle
	Service *PeerService
}

func registerLifecycle(in lifecycleInput) {
	in.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return in.Service.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return in.Service.Stop(ctx)
		},
	})
}

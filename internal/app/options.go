package app

import (
	"os"
	"time"

	"github.com/YouHyuksoo/HANES-sub002/internal/config"
	"github.com/YouHyuksoo/HANES-sub002/internal/logger"

	"go.uber.org/zap"
)

// 启动模式：api 只提供接口，worker 只消费出货事件
const (
	ModeAll    = "all"
	ModeAPI    = "api"
	ModeWorker = "worker"
)

const defaultShutdownTimeout = 15 * time.Second

// Options 应用启动选项
type Options struct {
	Config          *config.Config
	Logger          *zap.SugaredLogger
	Signals         []os.Signal
	ShutdownTimeout time.Duration
	Mode            string
}

// ValidMode 是否为支持的启动模式
func ValidMode(mode string) bool {
	switch mode {
	case ModeAll, ModeAPI, ModeWorker:
		return true
	default:
		return false
	}
}

func normalizeOptions(opts Options) Options {
	if opts.Logger == nil {
		opts.Logger = logger.S()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
		if opts.Config != nil && opts.Config.Server.ShutdownTimeoutSeconds > 0 {
			opts.ShutdownTimeout = time.Duration(opts.Config.Server.ShutdownTimeoutSeconds) * time.Second
		}
	}
	if opts.Mode == "" {
		opts.Mode = ModeAll
	}
	return opts
}

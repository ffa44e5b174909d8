// Package autoload configures the global logger from LOG_* variables when
// imported for side effects.
package autoload

import (
	configx "github.com/tanpawarit/Chative-Tool-Orchestrator/pkg/config"
	logx "github.com/tanpawarit/Chative-Tool-Orchestrator/pkg/logger"
)

func init() {
	conf, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*conf)
}

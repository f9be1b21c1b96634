// Package appcontext provides a structure to store the current application execution context.
//
// The use of this structure allows avoiding the use of global variables to share the states of variables across
// structures and functions.
package appcontext

import (
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/jayal13/nebo-release/internal/branch"
	"github.com/jayal13/nebo-release/internal/plugin"
)

type AppContext struct {
	Viper         *viper.Viper
	BranchesCfg   branch.Flag
	PluginsCfg    plugin.Flag
	Logger        zerolog.Logger
	Env           map[string]string
	CfgFile       string
	GitName       string
	GitEmail      string
	AccessToken   string
	RemoteName    string
	GPGKeyPath    string
	GPGPassphrase string
	DryRun        bool
	NoCI          bool
	JSON          bool
	Verbose       bool
}

// New returns an AppContext reading the environment of the current process.
func New() *AppContext {
	return &AppContext{
		Viper: viper.New(),
		Env:   plugin.EnvFromOS(),
	}
}

// Getenv returns the value of an environment variable of the execution context.
func (c *AppContext) Getenv(key string) string {
	return c.Env[key]
}

package module

import (
	log "github.com/sirupsen/logrus"
)

// ModuleLoader holds the registered DetectionModules and runs all of them
// over one Context, mirroring go-mythril's ModuleLoader/FireLasers split
// (analysis/module/loader.go, analysis/module/security.go) minus the
// whitelist/reflection machinery that existed only to let mythril's CLI
// name individual symbolic-execution modules - this detector runs a small,
// fixed set every time.
type ModuleLoader struct {
	Modules []DetectionModule
}

// NewModuleLoader returns a loader with every supplementary module
// registered.
func NewModuleLoader() *ModuleLoader {
	loader := &ModuleLoader{}
	loader.RegisterModule(&SensitiveSinkModule{})
	loader.RegisterModule(&SourceSupplementModule{})
	return loader
}

func (l *ModuleLoader) RegisterModule(m DetectionModule) {
	l.Modules = append(l.Modules, m)
}

// Run executes every registered module against ctx and concatenates their
// findings, in registration order.
func (l *ModuleLoader) Run(ctx *Context) []*Finding {
	findings := make([]*Finding, 0)
	for _, m := range l.Modules {
		log.Info("Entering detection module: ", m.Name())
		result := m.Execute(ctx)
		log.Info("Exiting detection module: ", m.Name())
		findings = append(findings, result...)
	}
	return findings
}

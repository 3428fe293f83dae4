package main

import (
	"github.com/sirupsen/logrus"

	"github.com/fortuna/boxscore/internal/pipeline"
)

// consoleReporter logs pipeline progress to the terminal.
type consoleReporter struct {
	log *logrus.Entry
}

func newConsoleReporter(log *logrus.Entry) *consoleReporter {
	return &consoleReporter{log: log}
}

func (c *consoleReporter) OnRunStart(spec pipeline.Spec) {
	c.log.Infof("Starting season %s (%s, dry_run=%v)", spec.Season, spec.Range, spec.DryRun)
}

func (c *consoleReporter) OnProgress(stage pipeline.Stage, message string, current int, total int) {
	c.log.Infof("[%s %d/%d] %s", stage, current, total, message)
}

func (c *consoleReporter) OnRunComplete(result *pipeline.Result) {
	c.log.Infof("Run complete: %s", result.Status)
}

func (c *consoleReporter) OnRunError(err error) {
	c.log.WithError(err).Error("Run failed")
}

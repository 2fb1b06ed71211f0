package service

import (
	"context"
	"port-scanner/config/constant"
	"sync"
)

// SaverEngine hands every finished host to the reporter, in arrival order.
type SaverEngine struct {
	// 引擎状态
	Status constant.EngineStatus

	// 存放主线程的 wait group
	mainWaitGroup *sync.WaitGroup

	// 接受任务的队列
	saverJobChan <-chan *HostResult
	reporter     Reporter

	hostCount int
	openCount int
}

// NewSaverEngine 创建一个新的 SaverEngine
func NewSaverEngine(mainWaitGroup *sync.WaitGroup, saverJobChan <-chan *HostResult, reporter Reporter) *SaverEngine {
	return &SaverEngine{
		Status:        constant.EngineInit,
		mainWaitGroup: mainWaitGroup,
		saverJobChan:  saverJobChan,
		reporter:      reporter,
	}
}

// Run drains the channel until the engine closes it. Results already
// queued are still reported after an interrupt.
func (engine *SaverEngine) Run(ctx context.Context) {
	defer func() {
		engine.Status = constant.EngineStop
		engine.mainWaitGroup.Done()
	}()

	engine.Status = constant.EngineRunning
	tag := "[SaverEngine]"
	logger.Debugf("%s worker start.", tag)

	for task := range engine.saverJobChan {
		logger.Debugf("%s Get result for %s (%d ports)", tag, task.Host, len(task.Results))

		engine.hostCount++
		engine.openCount += len(task.OpenPorts())
		if err := engine.reporter.Report(context.WithoutCancel(ctx), task); err != nil {
			logger.Errorf("%s Error when reporting %s: %v", tag, task.Host, err)
		}
	}

	logger.Debugf("%s worker stop.", tag)
}

// Totals returns hosts reported and open ports seen. Read after Run returns.
func (engine *SaverEngine) Totals() (hosts, openPorts int) {
	return engine.hostCount, engine.openCount
}

package service

import (
	"context"
	"port-scanner/config/constant"
	"sync"
)

// TaskBuilder feeds hosts from a HostIterator into the engine's job channel.
type TaskBuilder struct {

	// 引擎状态
	Status constant.EngineStatus

	// 存放主线程的 wg
	mainWaitGroup *sync.WaitGroup

	// 待扫描的主机
	hosts *HostIterator

	// 生成好的主机任务放到这个 channel 中
	hostJobChan chan<- string
}

// NewTaskBuilder creates a TaskBuilder; hostJobChan is closed when it ends.
func NewTaskBuilder(mainWg *sync.WaitGroup, hosts *HostIterator, hostJobChan chan<- string) *TaskBuilder {
	return &TaskBuilder{
		Status:        constant.EngineInit,
		mainWaitGroup: mainWg,
		hosts:         hosts,
		hostJobChan:   hostJobChan,
	}
}

// Run 启动 TaskBuilder 引擎
func (b *TaskBuilder) Run(ctx context.Context) {
	defer b.mainWaitGroup.Done()
	b.worker(ctx)
}

func (b *TaskBuilder) worker(ctx context.Context) {
	defer func() {
		logger.Debugf("TaskBuilder defer() called.")
		close(b.hostJobChan)
		b.Status = constant.EngineStop
	}()

	b.Status = constant.EngineRunning
	var successfulCount uint64

	b.hosts.Reset()
	for {
		host, ok := b.hosts.Next()
		if !ok {
			break
		}

		select {
		case b.hostJobChan <- host:
			successfulCount++
		case <-ctx.Done():
			logger.Debugf("TaskBuilder cancelled after %d jobs.", successfulCount)
			return
		}
	}

	logger.Debugf("%d jobs were successfully added.", successfulCount)
}

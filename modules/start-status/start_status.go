package start_status

import (
	"sync/atomic"

	"poll-node/lib/utils"

	"github.com/chebyrash/promise"
)

// startStatus tracks whether a plugin finished starting. Readers either wait
// on Started or poll Ready.
type startStatus struct {
	started atomic.Bool
	err     atomic.Pointer[error]

	startPromise *promise.Promise[any]

	resolvePromise func()
	rejectPromise  func(error)
}

type StartStatus = *startStatus

type Starter interface {
	Started() *promise.Promise[any]
	Ready() bool
}

var _ Starter = &startStatus{}

func New() StartStatus {
	s := &startStatus{}
	s.startPromise = promise.New(func(resolve func(any), reject func(error)) {
		s.resolvePromise = func() { resolve(nil) }
		s.rejectPromise = reject
	})

	return s
}

func (s *startStatus) TriggerStart() {
	s.started.Store(true)
	s.resolvePromise()
}

func (s *startStatus) TriggerStartFailure(err error) {
	s.err.Store(&err)
	s.rejectPromise(err)
}

func (s *startStatus) Started() *promise.Promise[any] {
	if s.started.Load() {
		return utils.PromiseResolve[any](nil)
	}
	if err := s.Err(); err != nil {
		return utils.PromiseReject[any](err)
	}
	return s.startPromise
}

func (s *startStatus) Ready() bool {
	return s.started.Load()
}

// Err is the start failure, if any.
func (s *startStatus) Err() error {
	if e := s.err.Load(); e != nil {
		return *e
	}
	return nil
}

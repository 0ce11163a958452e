package http1

import (
	"github.com/indigo-web/framer/task"
	"go.uber.org/zap"
)

// awaitingContinue reports whether the peer is still holding the body back, waiting for
// the interim response.
func (f *Frame) awaitingContinue() bool {
	return f.expectContinue && !f.continueSent && !f.body.Finished()
}

// onBodyDemand returns the callback invoked by the body the first time the handler waits
// for it. Unless the response has already started, the peer is invited to send the body by
// the interim 100 Continue response.
func (f *Frame) onBodyDemand(cycle uint64) func() {
	return func() {
		f.post(func() {
			if cycle != f.cycle || f.resultStarted || !f.awaitingContinue() {
				return
			}

			f.continueSent = true
			out := f.output
			task.Run(f.post, func(err error) {
				f.continueWritten(out, err)
			},
				func(func(error)) (task.Status, error) {
					_, err := f.transport.Write(continueResponse)
					return task.Done, err
				},
				f.transport.Flush,
			)
		})
	}
}

func (f *Frame) continueWritten(out *output, err error) {
	if err != nil {
		f.logger.Debug("failed to send 100 Continue", zap.Error(err))
		out.fail(err)
		return
	}

	f.metrics.ContinueSent()
}

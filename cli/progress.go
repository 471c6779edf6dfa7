package cli

import (
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/richinex/reportflow/workflow"
)

// Progress renders drafting progress per session as a bar over the task
// list. It implements workflow.Observer.
type Progress struct {
	mu   sync.Mutex
	out  io.Writer
	bars map[string]*progressbar.ProgressBar
}

var _ workflow.Observer = (*Progress)(nil)

// NewProgress creates a Progress writing to out.
func NewProgress(out io.Writer) *Progress {
	return &Progress{out: out, bars: make(map[string]*progressbar.ProgressBar)}
}

// OnStep advances the session's bar to its task cursor.
func (p *Progress) OnStep(e workflow.StepEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e.Next == workflow.NodeEnd {
		if bar, ok := p.bars[e.SessionID]; ok {
			_ = bar.Finish()
			delete(p.bars, e.SessionID)
		}
		return
	}
	if e.TaskCount == 0 {
		return
	}

	bar, ok := p.bars[e.SessionID]
	if !ok || bar.GetMax() != e.TaskCount {
		bar = progressbar.NewOptions(e.TaskCount,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription("Drafting "+e.SessionID),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(false),
		)
		p.bars[e.SessionID] = bar
	}
	_ = bar.Set(min(e.TaskCursor, e.TaskCount))
}

// Active reports how many sessions currently have a bar.
func (p *Progress) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.bars)
}

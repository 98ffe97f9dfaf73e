package agent

import (
	"time"

	"github.com/redskulldevv/omni-agi/internal/supervisor"
)

// Intervals sets how often each loop runs. A zero interval disables the
// loop, except for cognition which defaults to ten seconds.
type Intervals struct {
	Cognition  time.Duration
	Investment time.Duration
	Community  time.Duration
	Research   time.Duration
}

// Loops returns the supervisor loops for the enabled intervals.
func (a *Agent) Loops(iv Intervals) []supervisor.Loop {
	if iv.Cognition <= 0 {
		iv.Cognition = 10 * time.Second
	}
	loops := []supervisor.Loop{{Name: "cognition", Interval: iv.Cognition, Step: a.CognitionCycle}}
	if iv.Investment > 0 {
		loops = append(loops, supervisor.Loop{Name: "investment", Interval: iv.Investment, Step: a.InvestmentCycle})
	}
	if iv.Community > 0 {
		loops = append(loops, supervisor.Loop{Name: "community", Interval: iv.Community, Step: a.CommunityCycle})
	}
	if iv.Research > 0 {
		loops = append(loops, supervisor.Loop{Name: "research", Interval: iv.Research, Step: a.ResearchCycle})
	}
	return loops
}

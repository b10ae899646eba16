package health

import (
	"context"
	"fmt"
)

// Pinger is anything that can verify its connection, such as the Redis or
// PostgreSQL clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck reports down when p cannot be reached.
func PingCheck(p Pinger) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := p.Ping(ctx); err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// ConditionCheck reports up when ok returns true and down otherwise.
func ConditionCheck(ok func() bool, downMessage string) Check {
	return func(context.Context) ComponentHealth {
		if ok() {
			return ComponentHealth{Status: StatusUp}
		}
		return ComponentHealth{Status: StatusDown, Message: downMessage}
	}
}

// StateCheck reports degraded while state returns anything other than
// healthy. It suits circuit breakers, which recover on their own.
func StateCheck[S comparable](state func() S, healthy S) Check {
	return func(context.Context) ComponentHealth {
		if s := state(); s != healthy {
			return ComponentHealth{Status: StatusDegraded, Message: fmt.Sprint(s)}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

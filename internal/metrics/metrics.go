package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "duoplay"

// Move results.
const (
	MoveAccepted    = "accepted"
	MoveIllegal     = "illegal"
	MoveNotYourTurn = "not_your_turn"
	MoveWriteFailed = "write_failed"
)

// Finished outcomes.
const (
	OutcomeWin  = "win"
	OutcomeDraw = "draw"
)

var (
	Moves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_total",
			Help:      "Local moves attempted, by game and result",
		},
		[]string{"game", "result"},
	)
	StaleWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_writes_total",
			Help:      "Session writes rejected because another write landed first",
		},
		[]string{"game"},
	)
	SessionsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions created from accepted invites",
		},
		[]string{"game"},
	)
	SessionsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finished_total",
			Help:      "Sessions finished by a local terminal move",
		},
		[]string{"game", "outcome"},
	)
	StoreRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_retries_total",
			Help:      "Session writes retried after a transient store error",
		},
	)
)

func init() {
	prometheus.MustRegister(Moves)
	prometheus.MustRegister(StaleWrites)
	prometheus.MustRegister(SessionsCreated)
	prometheus.MustRegister(SessionsFinished)
	prometheus.MustRegister(StoreRetries)
}

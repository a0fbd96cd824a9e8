package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Answer results used as the label of AnswersSubmitted.
const (
	ResultCorrect   = "correct"
	ResultIncorrect = "incorrect"
	ResultTimeout   = "timeout"
)

var (
	SessionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trivia_sessions_created_total",
			Help: "Total number of game sessions created",
		},
		[]string{"scoring_mode"},
	)

	AnswersSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trivia_answers_submitted_total",
			Help: "Total number of answers accepted",
		},
		[]string{"result"},
	)

	SessionsFinished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trivia_sessions_finished_total",
			Help: "Total number of sessions that reached the last question",
		},
	)

	PointsAwarded = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trivia_points_awarded",
			Help:    "Points awarded per correct answer",
			Buckets: []float64{50, 75, 100, 150, 200, 300, 500, 750, 1000},
		},
		[]string{"scoring_mode"},
	)

	EventHandlerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trivia_event_handler_failures_total",
			Help: "Total number of event handlers that returned an error or panicked",
		},
		[]string{"event"},
	)
)

// Package metrics exposes Prometheus collectors for extraction and loading.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmylchreest/coursesched/pkg/llm"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics bundles the collectors on a dedicated registry.
type Metrics struct {
	Registry         *prometheus.Registry
	LLMCalls         *prometheus.CounterVec
	LLMCallDuration  *prometheus.HistogramVec
	Retries          *prometheus.CounterVec
	Fallbacks        prometheus.Counter
	CoursesProcessed *prometheus.CounterVec
	LoadCourses      *prometheus.CounterVec
	LoadCommits      prometheus.Counter
}

// New constructs and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	calls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursesched_llm_calls_total",
			Help: "Total LLM calls by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coursesched_llm_call_duration_seconds",
			Help:    "LLM call latency.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"provider"},
	)
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursesched_extraction_retries_total",
			Help: "Retry attempts scheduled per provider.",
		},
		[]string{"provider"},
	)
	fallbacks := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coursesched_fallbacks_total",
			Help: "Hand-overs from a failed extractor to the next one.",
		},
	)
	processed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursesched_courses_processed_total",
			Help: "Courses processed by the batch driver by outcome.",
		},
		[]string{"outcome"},
	)
	loaded := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursesched_load_courses_total",
			Help: "Course files handled by the loader by outcome.",
		},
		[]string{"outcome"},
	)
	commits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coursesched_load_commits_total",
			Help: "Loader transaction commits.",
		},
	)

	registry.MustRegister(calls, duration, retries, fallbacks, processed, loaded, commits)

	return &Metrics{
		Registry:         registry,
		LLMCalls:         calls,
		LLMCallDuration:  duration,
		Retries:          retries,
		Fallbacks:        fallbacks,
		CoursesProcessed: processed,
		LoadCourses:      loaded,
		LoadCommits:      commits,
	}
}

// ObserveLLMCall records one provider call.
func (m *Metrics) ObserveLLMCall(provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.LLMCalls.WithLabelValues(provider, outcome).Inc()
	m.LLMCallDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// IncRetry counts a scheduled retry for provider.
func (m *Metrics) IncRetry(provider string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(provider).Inc()
}

// IncFallback counts a hand-over to the next extractor.
func (m *Metrics) IncFallback() {
	if m == nil {
		return
	}
	m.Fallbacks.Inc()
}

// IncCourse counts a course handled by the batch driver.
func (m *Metrics) IncCourse(outcome string) {
	if m == nil {
		return
	}
	m.CoursesProcessed.WithLabelValues(outcome).Inc()
}

// IncLoad counts a course file handled by the loader.
func (m *Metrics) IncLoad(outcome string) {
	if m == nil {
		return
	}
	m.LoadCourses.WithLabelValues(outcome).Inc()
}

// IncCommit counts a loader commit.
func (m *Metrics) IncCommit() {
	if m == nil {
		return
	}
	m.LoadCommits.Inc()
}

// Observer adapts m to llm.LLMObserver. A nil receiver yields a nil observer.
func (m *Metrics) Observer() llm.LLMObserver {
	if m == nil {
		return nil
	}
	return llm.ObserverFunc(func(_ context.Context, e llm.LLMCallEvent) {
		err := e.Error
		if err == nil && e.Response == nil {
			err = errNoResponse
		}
		m.ObserveLLMCall(e.Provider, e.Duration, err)
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

var errNoResponse = errors.New("no response")

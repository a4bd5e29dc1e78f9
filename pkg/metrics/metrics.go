// Package metrics wires the process's Prometheus counters: chunks
// stored/retrieved on the provider side, challenges issued/resolved/slashed
// on the challenger/responder side, and dispersal outcomes on the dispenser
// side. The challenger and storage-provider commands expose these on
// /metrics via promhttp.Handler; the dispenser command increments its
// counters but serves no /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChunksStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poda",
		Name:      "chunks_stored_total",
		Help:      "Chunks accepted and persisted by the storage-provider verification gate.",
	}, []string{"result"})

	ChunksRetrieved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poda",
		Name:      "chunks_retrieved_total",
		Help:      "Chunks served by batch-retrieve.",
	}, []string{"result"})

	DispersalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poda",
		Name:      "dispersals_total",
		Help:      "submit() outcomes by result.",
	}, []string{"result"})

	RetrievalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poda",
		Name:      "retrievals_total",
		Help:      "retrieve() outcomes by result.",
	}, []string{"result"})

	ChallengesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poda",
		Name:      "challenges_issued_total",
		Help:      "issueChunkChallenge calls by result.",
	}, []string{"result"})

	ChallengesSlashed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poda",
		Name:      "challenges_slashed_total",
		Help:      "slashExpiredChallenge calls by result.",
	}, []string{"result"})

	ChallengeResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poda",
		Name:      "challenge_responses_total",
		Help:      "respondToChunkChallenge calls by result.",
	}, []string{"result"})
)

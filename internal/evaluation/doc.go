// Package evaluation scores a batch of run variants and publishes the result
// as an immutable round.
//
// An Evaluator resolves each requested run's exported parts, scores them on
// a bounded worker pool, aggregates one candidate per run, ranks the batch
// and writes the round artifacts. Runs that cannot be scored are recorded
// in the round manifest rather than dropped. When a history store is
// attached, every published round is also indexed there.
package evaluation

// Package pullstream is a demand-driven, single-process stream-processing
// engine with fan-out/fan-in combinators and bounded balancing buffers.
//
// Data flows downstream only against demand that was first signalled
// upstream: a consumer grants credits ("I can accept N more elements"), and
// a producer emits one element per credit. Broadcast requests an element from
// its input only when every output holds demand; Zip emits only when every
// input has delivered an element for the current round. The combination of
// the two rules deadlocks when branches between a fan-out and a fan-in
// consume at different rates; Buffer absorbs the rate offset so that the
// graph keeps making progress. See PlanBuffers for the sizing rule.
//
// Graphs are assembled with a GraphBuilder, validated at Build time
// (connectivity, port types, cycles, orphans) and executed with Run or
// Start. The engine is a single-threaded cooperative signal loop: a stage's
// callbacks are never invoked concurrently with themselves, and the engine
// itself adds no hidden lookahead anywhere - the only buffering in a graph
// is what its stages were explicitly configured with. A graph that cannot
// make progress is reported as a *StallError naming the stuck stages and
// ports instead of hanging.
package pullstream

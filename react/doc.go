// Package react implements a bounded reason-act-observe loop on top of a
// streaming chat model: the model's output is classified into thought and
// action segments on the fly, actions are dispatched against local and
// remote tool universes, and each round's observation is replayed into
// the next prompt until the model answers or the iteration budget runs
// out.
package react

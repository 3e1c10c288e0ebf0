// Package service implements an HTTP API service to query the state of a
// valproof node.
//
//  /stats      counters of the proof protocol
//  /peers      classification of every known peer
//  /validators the validator set peers are classified against
//  /session    proof exchange state of every connected peer
//  /metrics    Prometheus metrics
package service

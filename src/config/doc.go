// Package config defines the configuration for a valproof node.
//
// Regardless of how valproof is started, directly from Go code or as a
// standalone process from the command line, it uses the Config object defined
// in this package to store and forward configuration options. On top of these
// configuration options, valproof relies on a data directory, defined by
// Config.DataDir, where it expects to find a few additional files:
//
//  priv_key // the validator's secp256k1 private key (cf. valproof keygen).
//  node_key // the node's libp2p identity key, created on first start if missing.
//  validators.json // the current validator set.
//  valproof.toml // (optional) configuration file read by the command line.
package config

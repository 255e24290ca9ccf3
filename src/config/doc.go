// Package config defines the configuration for a polyferno node.
//
// Regardless of how polyferno is started, directly from Go code or as a
// standalone process from the command line, it uses the Config object defined
// in this package to store and forward configuration options. On top of these
// configuration options, polyferno relies on a data directory, defined by
// Config.DataDir, where it expects to find:
//
//  peers.json // a JSON file listing every node of the topology.
//  polyferno.toml // (optional) configuration file read by the command line.
//
// The capacity options, model-size and num-nodes, must be identical on every
// node of a deployment.
package config

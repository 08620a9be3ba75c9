// Package main provides the go-notarize CLI, which signs and notarizes
// audio plug-in bundles and installer packages with Apple's tools.
//
// For the pipeline API, see the notarize subpackage:
//
//	import "github.com/aluedeke/go-notarize/pkg/notarize"
//
// # Installation
//
//	go install github.com/aluedeke/go-notarize@latest
//
// # Usage
//
//	go-notarize notarize_config.yaml --type credentials
//	go-notarize notarize_config.yaml --type app
//	go-notarize notarize_config.yaml --type installer
package main

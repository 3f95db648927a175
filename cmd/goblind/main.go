// Command goblind runs the multi-agent orchestration server: it loads the
// agent catalog, wires the configured LLM providers, and serves the
// HTTP/WebSocket API described in the runtime's external interface.
//
// # Basic usage
//
//	goblind serve --config goblin.yaml
//	goblind validate-catalog --catalog goblins.yaml
//	goblind version
//
// # Environment variables
//
// Configuration is resolved from an optional YAML file plus environment
// variables, the latter always winning; see internal/runtime.Config for the
// full set (among them GOBLIN_CATALOG_PATH, GOBLIN_LOG_FORMAT,
// GOBLIN_LOG_LEVEL, GOBLIN_PERSISTENCE, ANTHROPIC_API_KEY, OPENAI_API_KEY,
// GEMINI_API_KEY, AWS_REGION, JWT_SECRET, API_RATE_LIMIT). DASHBOARD_USER and
// DASHBOARD_PASS are read separately by internal/authn.
package main

import (
	"fmt"
	"os"
)

// version, commit, and date are populated by ldflags at build time, e.g.:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Package configs provides embedded configuration templates for rubricrank.
//
// Templates are embedded at build time so every distribution carries them.
// They are written by:
//   - `rubricrank config init` → ~/.config/rubricrank/config.yaml
//   - `rubricrank config init --project` → .rubricrank.yaml
//
// Configuration hierarchy (see internal/config Load()):
//  1. Hardcoded defaults (internal/config NewConfig())
//  2. User config (~/.config/rubricrank/config.yaml)
//  3. Project config (.rubricrank.yaml)
//  4. Environment variables (RUBRICRANK_*)
package configs

import _ "embed"

// UserConfigTemplate holds machine-level settings: the scoring provider,
// its credentials and indexer throughput.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate holds project settings: corpus and rubric paths and
// search tuning.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string

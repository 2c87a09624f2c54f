// Package cleanse provides the business boundary for demoscrub's
// demographic cleansing pipeline. It defines the per-field Cleansers
// (canonical pre-check, LLM routing, post-validation), the Engine (pure
// per-record orchestration), the Runner (bounded worker pool over a record
// source), the Service (run lifecycle, persistence, async dispatch), the
// Store interface, and the domain models.
package cleanse

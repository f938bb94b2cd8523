// Package types provides core types shared across the autocompany framework:
// conversation messages, structured errors with unified codes, and the agent
// metadata (AgentInfo, ToolSchema) that the orchestrator renders into roster
// text for the manager.
//
// This package has ZERO dependencies on other autocompany packages to avoid
// circular imports. All other packages should import types from here.
package types

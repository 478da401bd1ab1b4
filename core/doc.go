// Package core provides the foundational types shared by the finmesh
// packages: role-based conversation content, per-run execution contexts,
// tool contexts, trace events and the turn budget applied to agent loops.
//
// Core deliberately knows nothing about concrete models, tools or tasks. It
// only carries the data those packages exchange so that agent, flow, tool and
// crew can depend on it without depending on each other.
package core

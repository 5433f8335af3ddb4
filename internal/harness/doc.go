// Package harness runs two-device sync scenarios against real engines.
//
// Each device is a complete engine with its own storage and link. A scenario
// drives the devices through user actions and moves share links between
// them the way two people sending each other links would, then checks the
// outcome of every step and the final state of every device.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: share_roundtrip
//	description: "A share link sent to the other device is imported"
//	users: { user1: Ann, user2: Ben }
//	devices: [ann, ben]
//	flow:
//	  - device: ann
//	    do: add
//	    args: { user: "1", list: short, content: "run 5k" }
//	  - device: ann
//	    do: share
//	    expect: { version: 1 }
//	  - do: send
//	    args: { from: ann, to: ben }
//	  - device: ben
//	    do: sync
//	    expect: { updated: true }
//	assertions:
//	  - type: final_state
//	    device: ben
//	    user: user1
//	    expect: { short_term: ["run 5k"] }
//	  - type: converged
//	    devices: [ann, ben]
//
// # Actions
//
//   - add, toggle, delete: plan items (args: user, list, content or id)
//   - star: today's star (args: user)
//   - share, doc: publish to the device's link
//   - sync: user-initiated check; check: background check
//   - load, resume: restart the device against its storage
//   - send: copy the link of one device into another (args: from, to)
//   - next_day, advance: move the shared clock (advance args: by)
//
// # Assertion Types
//
//   - final_state: device or user fields after the flow
//   - notice: a notice the device showed (substring match)
//   - trace_count: how often an action ran
//   - converged: the listed devices hold identical state
//
// # Deterministic Testing
//
// All devices share one fake clock starting at 2025-03-10 12:00 UTC unless
// the scenario sets start. Item and document ids are "<device>-001",
// "<device>-002", ... so traces are reproducible and can be compared with
// golden files.
package harness

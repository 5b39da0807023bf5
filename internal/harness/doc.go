// Package harness runs declarative conformance scenarios for the
// filter engine.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	fields:
//	  - name: age
//	    kind: int
//	  - name: status
//	    kind: enum:UserStatus
//	  - name: tags
//	    kind: "[]string"
//	enums:
//	  - name: UserStatus
//	    values: { active: 1, trial: 2 }
//	authorized: [age, status]     # omit for "all fields"
//	filter: '{"age": {"_gte": 18}}'
//	dataset:
//	  - { id: 1, age: 30, status: 1, tags: [] }
//	expect_ids: [1]
//
// The harness compiles the filter against the in-memory reference
// backend and checks which dataset rows match. A scenario may instead
// declare expect_error to assert that compilation is refused.
//
// Golden snapshots complement the scenarios: the same filter is
// compiled against every rendering backend and the SQL and search
// bodies are compared to checked-in golden files, so an accidental
// change to any backend's output is caught even when the semantics
// still agree.
package harness

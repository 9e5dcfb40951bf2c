// Package sourcetree provides a project-management tree kept in memory and
// persisted as a YAML snapshot.
//
// A snapshot lists the project, its custom attribute definitions and every
// entity with its parent id. Tasks are plain entities of kind Task.
//
//	project: Film
//	attributes:
//	  - key: fps
//	    is_hierarchical: true
//	entities:
//	  - id: p
//	    name: Film
//	    kind: Project
//	    hier_attributes: {fps: "24"}
//	  - id: sq1
//	    name: sq01
//	    kind: Sequence
//	    parent_id: p
//
// Open loads a snapshot into a Tree that saves itself back on Commit, so
// identifiers written by a synchronization survive the process.
package sourcetree

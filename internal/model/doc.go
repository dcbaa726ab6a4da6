// Package model defines domain data structures shared across the app: update
// documents, package entries, download tasks and their status enums.
// Structures are plain values so that snapshots can be handed to front-ends
// without sharing mutable state.
package model

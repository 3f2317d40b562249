// package models defines the data model for profile migration: the four
// migratable item variants, their identity keys, the snapshot container
// persisted by the store, and the run-journal record.
package models

// package repositories persists run accounting rows to the local SQLite
// journal so every import and export leaves an auditable record.
package repositories

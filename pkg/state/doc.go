// Package state persists environment records in a gateway's state backend.
// It opens sqlite or postgres state connections, applies embedded schema
// migrations, and backs the envs, invalidate and janitor commands.
package state

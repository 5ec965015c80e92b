// Package registry assigns per-session object ids, holds the live object
// set, and gates periodic syncs by interval and distance.
package registry

// Package datastore keeps the installation marker on the target host.
//
// The marker is the only record of a completed install. Its presence means
// "already installed"; the disk itself is never probed. A marker that exists
// but cannot be parsed still counts as present.
package datastore

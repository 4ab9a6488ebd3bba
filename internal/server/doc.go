// Package server exposes internal/resource's repository over HTTP: a
// chi-routed CRUD surface with JWT bearer auth, request logging and
// panic recovery middleware.
package server

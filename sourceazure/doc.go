// Package sourceazure loads environment variables that address slice
// elements with numeric segments, as Azure App Service settings do.
//
// The variables are collected by sourceenv; every numeric path segment
// is then rewritten into index notation the loader binds to slices:
//
//	APP_SCOPES__0=read     → scopes[0]
//	APP_CLIENTS__1__ID=abc → clients[1].id
//
// Variables that rewrite to the same key, such as APP_A__0 and APP_A[0],
// fail the load with ErrKeyCollision.
//
// Example:
//
//	source := sourceazure.WithPrefix("APP").Separator("__")
//	loader := envrig.NewLoader[Config]().WithSource(source)
package sourceazure

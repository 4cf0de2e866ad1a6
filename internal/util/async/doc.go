// Package async runs independent operations concurrently.
//
// [RunAll] reports the outcome of every task individually so callers can
// tell which ones succeeded, [RunParallel] folds the failures into a single
// error.
package async

// Package textutil sanitizes identifiers and path segments so participant
// supplied values (session IDs, experiment names, tracked object names) can be
// used safely as directory and file names.
package textutil

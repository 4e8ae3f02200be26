// Package storage is the byte-level object store that audio artifacts live
// in. Backends register a factory from init(); import the backend package
// for its side effect and select it with Config.Provider.
package storage

// Package dsp implements the offline audio transforms: peak normalization
// (enhancement) and a noise gate (noise reduction). Both split the buffer
// into chunks processed concurrently with errgroup and always return a new
// buffer.
package dsp

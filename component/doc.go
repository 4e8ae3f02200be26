// Package component defines lifecycle-managed pieces of the voicememo
// runtime: the state database, the redis connection, the pre-roll capture
// loop and the local control API.
//
// Components are started in registration order and stopped in reverse,
// so register dependencies first.
package component

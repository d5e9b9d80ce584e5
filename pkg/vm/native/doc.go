// Package native implements vm.Platform on the address space of the
// running process.
package native

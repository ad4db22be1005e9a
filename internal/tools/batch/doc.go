// Package batch runs one tool operation over several ids.
//
// Arguments may name a single id, a comma separated list or an array. Each
// id gets its own result so partial failures are reported per item.
package batch
